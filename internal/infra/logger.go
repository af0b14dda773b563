package infra

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so the rest of the codebase depends on one
// logging surface instead of importing the module everywhere.
type Logger = zerolog.Logger

// NewLogger builds the process logger. Development gets a human console
// writer at debug level; everything else emits JSON at info.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	var out = zerolog.LevelWriter(zerolog.MultiLevelWriter(os.Stdout))
	if appEnv == "development" {
		out = zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("app", "videogen").
		Logger()
}

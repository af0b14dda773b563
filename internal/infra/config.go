package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string

	// Worker pool size for pipeline jobs (asynq concurrency).
	WorkerConcurrency int
	// Max parallel reference-image / clip generations inside one stage.
	StageFanout int
	// Bounded per-clip retry budget inside the video_generator stage.
	ClipMaxRetries int

	// Per-job spend ceiling. Regenerations that would push total_cost past
	// it are rejected with a budget error.
	JobBudget float64
	// Fractional discount applied to multi-clip regeneration estimates.
	BatchDiscount float64

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	LLMTimeout    time.Duration

	AudioTimeout   time.Duration
	SceneTimeout   time.Duration
	ImageTimeout   time.Duration
	PromptTimeout  time.Duration
	ClipTimeout    time.Duration
	ComposeTimeout time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Per-subscriber event buffer; a subscriber that falls this far behind
	// is dropped and must reconnect.
	SubscriberBuffer int

	// Origins allowed to call the API and open event streams.
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 3),
		StageFanout:       getEnvInt("STAGE_FANOUT", 3),
		ClipMaxRetries:    getEnvInt("CLIP_MAX_RETRIES", 2),

		JobBudget:     getEnvFloat("JOB_BUDGET_USD", 25.0),
		BatchDiscount: getEnvFloat("BATCH_DISCOUNT", 0.15),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		LLMTimeout:    time.Second * time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 90)),

		AudioTimeout:   time.Second * time.Duration(getEnvInt("AUDIO_TIMEOUT_SECONDS", 120)),
		SceneTimeout:   time.Second * time.Duration(getEnvInt("SCENE_TIMEOUT_SECONDS", 90)),
		ImageTimeout:   time.Second * time.Duration(getEnvInt("IMAGE_TIMEOUT_SECONDS", 180)),
		PromptTimeout:  time.Second * time.Duration(getEnvInt("PROMPT_TIMEOUT_SECONDS", 90)),
		ClipTimeout:    time.Second * time.Duration(getEnvInt("CLIP_TIMEOUT_SECONDS", 600)),
		ComposeTimeout: time.Second * time.Duration(getEnvInt("COMPOSE_TIMEOUT_SECONDS", 300)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		SubscriberBuffer: getEnvInt("SUBSCRIBER_BUFFER", 64),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if cfg.BatchDiscount < 0 || cfg.BatchDiscount >= 1 {
		return nil, fmt.Errorf("BATCH_DISCOUNT must be in [0, 1)")
	}

	return cfg, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

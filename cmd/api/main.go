package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/eweinhaus/VideoGen-sub002/internal/adapter/repo"
	"github.com/eweinhaus/VideoGen-sub002/internal/db"
	"github.com/eweinhaus/VideoGen-sub002/internal/eventhub"
	"github.com/eweinhaus/VideoGen-sub002/internal/http/handlers"
	"github.com/eweinhaus/VideoGen-sub002/internal/http/httpapi"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
	"github.com/eweinhaus/VideoGen-sub002/internal/pipeline"
	"github.com/eweinhaus/VideoGen-sub002/internal/providers/media"
	"github.com/eweinhaus/VideoGen-sub002/internal/providers/prompt"
	"github.com/eweinhaus/VideoGen-sub002/internal/queue"
	"github.com/eweinhaus/VideoGen-sub002/internal/regen"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	if err := infra.Migrate(ctx, dbpool, db.Schema); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	jobs := repo.NewJobRepository(runner)
	stages := repo.NewStageRepository(runner)
	versions := repo.NewVersionRepository(runner)
	regens := repo.NewRegenRepository(runner)

	hub := eventhub.NewHub(cfg.SubscriberBuffer, logger)
	defer hub.Close()
	bridge := eventhub.NewRedisBridge(redisClient, hub, logger)
	go func() {
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("event bridge stopped")
		}
	}()

	tasks := queue.NewClient(infra.AsynqRedisOpt(cfg), logger)
	defer tasks.Close()

	synth := media.NewSynthetic()
	gateway := media.NewGateway(synth, synth, synth, synth, synth, synth, media.TimeoutsFromConfig(cfg))
	modifier := buildModifier(cfg, logger)

	orch := pipeline.NewOrchestrator(jobs, stages, versions, gateway, bridge, logger)
	orch.Fanout = cfg.StageFanout
	orch.ClipRetries = cfg.ClipMaxRetries
	engine := regen.NewEngine(jobs, stages, versions, regens, modifier, gateway, orch, tasks, bridge, logger, cfg)

	app := &handlers.App{
		Jobs:     jobs,
		Stages:   stages,
		Versions: versions,
		Regens:   regens,
		Engine:   engine,
		Hub:      hub,
		Snapshot: eventhub.SnapshotSource{Jobs: jobs, Stages: stages, Versions: versions, Regens: regens},
		Tasks:    tasks,
		Logger:   logger,
	}
	router := httpapi.NewRouter(app, logger, cfg.CORSAllowedOrigins)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildModifier uses the OpenAI-compatible LLM when a key is configured and
// the deterministic static modifier otherwise (and as the LLM's fallback).
func buildModifier(cfg *infra.Config, logger infra.Logger) prompt.Modifier {
	static := prompt.NewStaticModifier()
	if cfg.OpenAIAPIKey == "" {
		logger.Info().Msg("no OPENAI_API_KEY set, using static prompt modifier")
		return static
	}
	llm, err := prompt.NewOpenAIModifier(prompt.OpenAIOptions{
		APIKey:   cfg.OpenAIAPIKey,
		Model:    cfg.OpenAIModel,
		BaseURL:  cfg.OpenAIBaseURL,
		Fallback: static,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("llm fallback engaged")
		},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("openai modifier unavailable, using static prompt modifier")
		return static
	}
	return llm
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/eweinhaus/VideoGen-sub002/internal/adapter/repo"
	"github.com/eweinhaus/VideoGen-sub002/internal/db"
	"github.com/eweinhaus/VideoGen-sub002/internal/eventhub"
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

	ctx := context.Background()
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

	// Producer-only bridge: the API process runs the receive side.
	bridge := eventhub.NewRedisBridge(redisClient, nil, logger)

	tasks := queue.NewClient(infra.AsynqRedisOpt(cfg), logger)
	defer tasks.Close()

	synth := media.NewSynthetic()
	gateway := media.NewGateway(synth, synth, synth, synth, synth, synth, media.TimeoutsFromConfig(cfg))
	modifier := buildModifier(cfg, logger)

	orch := pipeline.NewOrchestrator(jobs, stages, versions, gateway, bridge, logger)
	orch.Fanout = cfg.StageFanout
	orch.ClipRetries = cfg.ClipMaxRetries
	engine := regen.NewEngine(jobs, stages, versions, regens, modifier, gateway, orch, tasks, bridge, logger, cfg)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypePipelineRun, func(ctx context.Context, task *asynq.Task) error {
		var p queue.PipelinePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", queue.TypePipelineRun, err)
		}
		status, err := orch.RunJob(ctx, p.JobID, p.StopAfter)
		if err != nil {
			// The job row already records the failure; the task itself is
			// done and must not be retried by the queue.
			logger.Error().Err(err).Str("job_id", p.JobID).Msg("worker: pipeline run failed")
			return nil
		}
		logger.Info().Str("job_id", p.JobID).Str("status", string(status)).Msg("worker: pipeline run finished")
		return nil
	})
	mux.HandleFunc(queue.TypeRegenerate, func(ctx context.Context, task *asynq.Task) error {
		var p queue.RegeneratePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", queue.TypeRegenerate, err)
		}
		if err := engine.Execute(ctx, p); err != nil {
			logger.Error().Err(err).Str("job_id", p.JobID).Int("clip_index", p.ClipIndex).Msg("worker: regeneration failed")
		}
		return nil
	})
	mux.HandleFunc(queue.TypeRecompose, func(ctx context.Context, task *asynq.Task) error {
		var p queue.RecomposePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", queue.TypeRecompose, err)
		}
		if err := engine.ExecuteRecompose(ctx, p); err != nil {
			logger.Error().Err(err).Str("job_id", p.JobID).Msg("worker: recomposition failed")
		}
		return nil
	})

	srv := asynq.NewServer(infra.AsynqRedisOpt(cfg), asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		ShutdownTimeout: cfg.ComposeTimeout,
	})

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker failed to start")
	}

	waitCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-waitCtx.Done()

	srv.Shutdown()
	logger.Info().Msg("worker stopped")
}

// buildModifier mirrors the API process: LLM when configured, static
// otherwise.
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

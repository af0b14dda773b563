// Package queue defines the durable task types exchanged between the API and
// the worker pool, and the typed enqueue client around asynq.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
	"github.com/eweinhaus/VideoGen-sub002/internal/providers/prompt"
)

const (
	TypePipelineRun = "pipeline:run"
	TypeRegenerate  = "regen:clip"
	TypeRecompose   = "pipeline:recompose"

	taskRetention = 24 * time.Hour
)

// PipelinePayload starts a full six-stage run for a queued job. StopAfter is
// the test/debug directive to halt cleanly after the named stage.
type PipelinePayload struct {
	JobID     string           `json:"job_id"`
	StopAfter domain.StageName `json:"stop_after,omitempty"`
}

// RegeneratePayload carries one per-clip regeneration. TemplateID is set when
// the API already matched a deterministic template; the worker then skips the
// LLM entirely.
type RegeneratePayload struct {
	JobID       string        `json:"job_id"`
	ClipIndex   int           `json:"clip_index"`
	Instruction string        `json:"instruction"`
	History     []prompt.Turn `json:"history,omitempty"`
	TemplateID  string        `json:"template_id,omitempty"`
}

// RecomposePayload re-runs the composer over the current clip set, e.g. after
// a revert. ClipIndex, when set, names the per-clip lock to release once the
// recomposition settles.
type RecomposePayload struct {
	JobID     string `json:"job_id"`
	ClipIndex *int   `json:"clip_index,omitempty"`
}

// Client is the typed enqueue side.
type Client struct {
	inner  *asynq.Client
	logger infra.Logger
}

func NewClient(opt asynq.RedisClientOpt, logger infra.Logger) *Client {
	return &Client{inner: asynq.NewClient(opt), logger: logger}
}

func (c *Client) Close() error {
	return c.inner.Close()
}

// EnqueuePipelineRun queues a full pipeline run. Stage failures are terminal
// for the job, so the task itself is never retried by the queue.
func (c *Client) EnqueuePipelineRun(ctx context.Context, p PipelinePayload) error {
	return c.enqueue(ctx, TypePipelineRun, p, asynq.Timeout(45*time.Minute))
}

// EnqueueRegeneration queues one clip regeneration.
func (c *Client) EnqueueRegeneration(ctx context.Context, p RegeneratePayload) error {
	return c.enqueue(ctx, TypeRegenerate, p, asynq.Timeout(20*time.Minute))
}

// EnqueueRecompose queues a composer-only sub-run.
func (c *Client) EnqueueRecompose(ctx context.Context, p RecomposePayload) error {
	return c.enqueue(ctx, TypeRecompose, p, asynq.Timeout(15*time.Minute))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	opts = append(opts, asynq.MaxRetry(0), asynq.Retention(taskRetention))
	info, err := c.inner.EnqueueContext(ctx, asynq.NewTask(taskType, raw), opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	c.logger.Info().Str("task_type", taskType).Str("task_id", info.ID).Msg("queue: task enqueued")
	return nil
}

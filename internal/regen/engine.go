package regen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/eventhub"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
	"github.com/eweinhaus/VideoGen-sub002/internal/pipeline"
	"github.com/eweinhaus/VideoGen-sub002/internal/providers/media"
	"github.com/eweinhaus/VideoGen-sub002/internal/providers/prompt"
	"github.com/eweinhaus/VideoGen-sub002/internal/queue"
)

// Enqueuer is the slice of the task client the engine needs.
type Enqueuer interface {
	EnqueueRegeneration(ctx context.Context, p queue.RegeneratePayload) error
	EnqueueRecompose(ctx context.Context, p queue.RecomposePayload) error
}

// Engine owns the clip regeneration flow end to end: the API-side accept path
// (resolve, match, lock, quote, enqueue) and the worker-side execution path
// (prompt edit, generation, versioning, recomposition).
type Engine struct {
	jobs     domain.JobRepository
	stages   domain.StageRepository
	versions domain.VersionRepository
	regens   domain.RegenRepository
	modifier prompt.Modifier
	gateway  *media.Gateway
	orch     *pipeline.Orchestrator
	tasks    Enqueuer
	pub      eventhub.Publisher
	logger   infra.Logger

	Budget        float64
	BatchDiscount float64
	ClipRetries   int
}

func NewEngine(
	jobs domain.JobRepository,
	stages domain.StageRepository,
	versions domain.VersionRepository,
	regens domain.RegenRepository,
	modifier prompt.Modifier,
	gateway *media.Gateway,
	orch *pipeline.Orchestrator,
	tasks Enqueuer,
	pub eventhub.Publisher,
	logger infra.Logger,
	cfg *infra.Config,
) *Engine {
	return &Engine{
		jobs:          jobs,
		stages:        stages,
		versions:      versions,
		regens:        regens,
		modifier:      modifier,
		gateway:       gateway,
		orch:          orch,
		tasks:         tasks,
		pub:           pub,
		logger:        logger,
		Budget:        cfg.JobBudget,
		BatchDiscount: cfg.BatchDiscount,
		ClipRetries:   cfg.ClipMaxRetries,
	}
}

// RequestResult is the synchronous answer to a regenerate call; the actual
// work continues on the worker.
type RequestResult struct {
	Targets         []int   `json:"targets"`
	EstimatedCost   float64 `json:"estimatedCost"`
	TemplateMatched bool    `json:"templateMatched"`
	TemplateID      string  `json:"templateId,omitempty"`
}

// PreviewResult is the dry-run answer for a multi-clip instruction. Nothing
// is locked or enqueued until the caller confirms.
type PreviewResult struct {
	Targets         []int             `json:"targets"`
	Clips           []ClipInstruction `json:"clips"`
	EstimatedCost   float64           `json:"estimatedCost"`
	TemplateMatched bool              `json:"templateMatched"`
	TemplateID      string            `json:"templateId,omitempty"`
}

// ClipInstruction is the per-clip work item a multi-clip instruction fans out
// into.
type ClipInstruction struct {
	ClipIndex   int    `json:"clipIndex"`
	Instruction string `json:"instruction"`
}

// Regenerate accepts a regeneration request: resolves targets, matches the
// template library, checks the budget, takes the per-clip locks and enqueues
// one worker task per target. Every lock is taken before any task is
// enqueued, so a conflicting request fails whole with no provider call made.
func (e *Engine) Regenerate(ctx context.Context, jobID string, clipIndices []int, instruction string, history []prompt.Turn) (*RequestResult, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, fmt.Errorf("%w: instruction is required", domain.ErrValidation)
	}

	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusCompleted {
		return nil, fmt.Errorf("%w: job %s is %s, regeneration needs a completed job", domain.ErrNotFound, jobID, job.Status)
	}

	scenes, err := e.loadScenes(ctx, jobID)
	if err != nil {
		return nil, err
	}
	targets, err := e.resolveTargets(ctx, jobID, clipIndices, instruction, scenes)
	if err != nil {
		return nil, err
	}

	tpl, matched := MatchTemplate(instruction)
	estimate := EstimateCost(len(targets), matched, e.BatchDiscount)
	if job.TotalCost+estimate > e.Budget {
		return nil, fmt.Errorf("%w: estimated $%.2f would exceed the $%.2f job budget (spent $%.2f)",
			domain.ErrBudgetExceeded, estimate, e.Budget, job.TotalCost)
	}

	if err := e.acquireAll(ctx, jobID, targets, instruction); err != nil {
		return nil, err
	}

	for _, idx := range targets {
		e.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventRegenerationStarted, map[string]any{
			"clip_index":  idx,
			"instruction": instruction,
		}))
		if matched {
			e.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventRegenerationTemplateMatched, map[string]any{
				"clip_index":  idx,
				"template_id": tpl.ID,
			}))
		}
	}

	payload := queue.RegeneratePayload{
		JobID:       jobID,
		Instruction: instruction,
		History:     prompt.TrimHistory(history),
	}
	if matched {
		payload.TemplateID = tpl.ID
	}
	for i, idx := range targets {
		payload.ClipIndex = idx
		if err := e.tasks.EnqueueRegeneration(ctx, payload); err != nil {
			// Targets already enqueued release their own locks when they
			// finish; everything from this one on never will, so release
			// them here and close out their started events.
			for _, orphan := range targets[i:] {
				e.releaseLock(ctx, jobID, orphan)
				e.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventRegenerationFailed, map[string]any{
					"clip_index": orphan,
					"error":      "could not queue regeneration",
					"retryable":  true,
				}))
			}
			e.logger.Error().Err(err).Str("job_id", jobID).Int("clip_index", idx).Msg("regen: enqueue failed")
			return nil, err
		}
	}

	result := &RequestResult{
		Targets:         targets,
		EstimatedCost:   estimate,
		TemplateMatched: matched,
	}
	if matched {
		result.TemplateID = tpl.ID
	}
	return result, nil
}

// Preview resolves a multi-clip instruction without mutating anything: no
// locks, no tasks, no events. Confirm with the returned target set to run it.
func (e *Engine) Preview(ctx context.Context, jobID, instruction string) (*PreviewResult, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, fmt.Errorf("%w: instruction is required", domain.ErrValidation)
	}
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusCompleted {
		return nil, fmt.Errorf("%w: job %s is %s, regeneration needs a completed job", domain.ErrNotFound, jobID, job.Status)
	}
	scenes, err := e.loadScenes(ctx, jobID)
	if err != nil {
		return nil, err
	}
	targets, ok, err := ResolveTargets(instruction, scenes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: instruction does not name any clips", domain.ErrValidation)
	}

	tpl, matched := MatchTemplate(instruction)
	out := &PreviewResult{
		Targets:         targets,
		EstimatedCost:   EstimateCost(len(targets), matched, e.BatchDiscount),
		TemplateMatched: matched,
	}
	if matched {
		out.TemplateID = tpl.ID
	}
	for _, idx := range targets {
		out.Clips = append(out.Clips, ClipInstruction{ClipIndex: idx, Instruction: instruction})
	}
	return out, nil
}

// Revert flips a clip back to an earlier version and re-runs only the
// composer. No new version row is created.
func (e *Engine) Revert(ctx context.Context, jobID string, clipIndex, versionNumber int) error {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusCompleted {
		return fmt.Errorf("%w: job %s is %s, revert needs a completed job", domain.ErrNotFound, jobID, job.Status)
	}

	if err := e.regens.AcquireLock(ctx, &domain.RegenLock{
		JobID:     jobID,
		ClipIndex: clipIndex,
		State:     domain.RegenStateRecomposing,
	}); err != nil {
		return err
	}
	if err := e.versions.SetCurrent(ctx, jobID, clipIndex, versionNumber); err != nil {
		e.releaseLock(ctx, jobID, clipIndex)
		return err
	}
	if err := e.tasks.EnqueueRecompose(ctx, queue.RecomposePayload{JobID: jobID, ClipIndex: &clipIndex}); err != nil {
		e.releaseLock(ctx, jobID, clipIndex)
		return err
	}
	return nil
}

// Execute runs one clip regeneration on the worker. The per-clip lock was
// taken by Regenerate; Execute drives it through its remaining states and
// releases it on any terminal outcome.
func (e *Engine) Execute(ctx context.Context, p queue.RegeneratePayload) error {
	defer e.releaseLock(context.WithoutCancel(ctx), p.JobID, p.ClipIndex)

	current, err := e.versions.Current(ctx, p.JobID, p.ClipIndex)
	if err != nil {
		e.failRegeneration(ctx, p, fmt.Errorf("load current version: %w", err))
		return err
	}
	job, err := e.jobs.GetByID(ctx, p.JobID)
	if err != nil {
		e.failRegeneration(ctx, p, err)
		return err
	}

	newPrompt, temperature, llmCost, err := e.resolvePrompt(ctx, p, current)
	if err != nil {
		e.failRegeneration(ctx, p, err)
		return err
	}

	seed := ChooseSeed(temperature, current.Seed)
	e.setLockState(ctx, p.JobID, p.ClipIndex, domain.RegenStateGenerating)
	e.pub.Publish(ctx, domain.NewEvent(p.JobID, domain.EventRegenerationVideoGenerating, map[string]any{
		"clip_index":  p.ClipIndex,
		"temperature": temperature,
		"seed_reused": seed == current.Seed,
	}))

	var asset *media.ClipAsset
	err = media.Retry(ctx, e.ClipRetries, func() error {
		var callErr error
		asset, callErr = e.gateway.GenerateClip(ctx, media.ClipRequest{
			JobID:       p.JobID,
			ClipIndex:   p.ClipIndex,
			Prompt:      newPrompt,
			Seed:        seed,
			Temperature: temperature,
			Duration:    current.Duration,
			VideoModel:  job.VideoModel,
			AspectRatio: job.AspectRatio,
		})
		return callErr
	}, func(count int, retryErr error) {
		e.pub.Publish(ctx, domain.NewEvent(p.JobID, domain.EventVideoGenerationRetry, map[string]any{
			"clip_index":  p.ClipIndex,
			"retry_count": count,
			"error":       retryErr.Error(),
		}))
	})
	if err != nil {
		e.failRegeneration(ctx, p, err)
		return err
	}

	realized := asset.Cost + llmCost
	versionNumber, err := e.versions.Append(ctx, &domain.ClipVersion{
		JobID:           p.JobID,
		ClipIndex:       p.ClipIndex,
		VideoURL:        asset.VideoURL,
		ThumbnailURL:    asset.ThumbnailURL,
		Prompt:          newPrompt,
		UserInstruction: p.Instruction,
		Seed:            asset.Seed,
		Cost:            realized,
		Duration:        asset.Duration,
	})
	if err != nil {
		e.failRegeneration(ctx, p, fmt.Errorf("append version: %w", err))
		return err
	}

	e.appendLedger(ctx, p, realized, true, "")
	if err := e.jobs.AddCost(ctx, p.JobID, realized); err != nil {
		e.logger.Error().Err(err).Str("job_id", p.JobID).Msg("regen: cost accumulation failed")
	} else {
		e.pub.Publish(ctx, domain.NewEvent(p.JobID, domain.EventCostUpdate, map[string]any{
			"total_cost": job.TotalCost + realized,
			"delta":      realized,
		}))
	}
	e.pub.Publish(ctx, domain.NewEvent(p.JobID, domain.EventRegenerationComplete, map[string]any{
		"clip_index":     p.ClipIndex,
		"version_number": versionNumber,
		"video_url":      asset.VideoURL,
		"thumbnail_url":  asset.ThumbnailURL,
	}))

	return e.recompose(ctx, p.JobID, &p.ClipIndex)
}

// ExecuteRecompose is the worker entry for composer-only sub-runs (revert).
func (e *Engine) ExecuteRecompose(ctx context.Context, p queue.RecomposePayload) error {
	err := e.recompose(ctx, p.JobID, p.ClipIndex)
	if p.ClipIndex != nil {
		e.releaseLock(context.WithoutCancel(ctx), p.JobID, *p.ClipIndex)
	}
	return err
}

// resolvePrompt picks the template or LLM path for the new clip prompt.
func (e *Engine) resolvePrompt(ctx context.Context, p queue.RegeneratePayload, current *domain.ClipVersion) (string, float64, float64, error) {
	if p.TemplateID != "" {
		tpl, ok := TemplateByID(p.TemplateID)
		if !ok {
			return "", 0, 0, fmt.Errorf("%w: unknown template %q", domain.ErrValidation, p.TemplateID)
		}
		e.setLockState(ctx, p.JobID, p.ClipIndex, domain.RegenStatePromptReady)
		return tpl.Apply(current.Prompt), tpl.Temperature, 0, nil
	}

	result, err := e.modifier.ModifyPrompt(ctx, prompt.ModifyRequest{
		OriginalPrompt: current.Prompt,
		Instruction:    p.Instruction,
		History:        prompt.TrimHistory(p.History),
	})
	if err != nil {
		return "", 0, 0, fmt.Errorf("modify prompt: %w", err)
	}
	temperature := ClampTemperature(p.Instruction, result.Temperature)
	e.setLockState(ctx, p.JobID, p.ClipIndex, domain.RegenStatePromptReady)
	e.pub.Publish(ctx, domain.NewEvent(p.JobID, domain.EventRegenerationPromptModified, map[string]any{
		"clip_index":  p.ClipIndex,
		"prompt":      result.Prompt,
		"temperature": temperature,
		"reasoning":   result.Reasoning,
	}))
	return result.Prompt, temperature, llmModifyCost, nil
}

// recompose re-runs the composer over the job's current clip set. The job
// shows as regenerating while the composer runs and returns to completed
// afterwards; a failed recomposition keeps the previous final video.
func (e *Engine) recompose(ctx context.Context, jobID string, clipIndex *int) error {
	if clipIndex != nil {
		e.setLockState(ctx, jobID, *clipIndex, domain.RegenStateRecomposing)
	}
	if err := e.jobs.UpdateStatus(ctx, jobID, domain.JobStatusRegenerating); err != nil {
		return err
	}
	e.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventRecompositionStarted, nil))

	composition, err := e.orch.Recompose(ctx, jobID)

	if statusErr := e.jobs.UpdateStatus(context.WithoutCancel(ctx), jobID, domain.JobStatusCompleted); statusErr != nil {
		e.logger.Error().Err(statusErr).Str("job_id", jobID).Msg("regen: restoring job status failed")
	}
	if err != nil {
		e.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventRecompositionFailed, map[string]any{
			"error":     err.Error(),
			"retryable": domain.Retryable(err),
		}))
		return err
	}

	e.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventRecompositionComplete, map[string]any{
		"video_url": composition.VideoURL,
		"duration":  composition.Duration,
	}))
	return nil
}

func (e *Engine) resolveTargets(ctx context.Context, jobID string, clipIndices []int, instruction string, scenes []domain.Scene) ([]int, error) {
	targets := dedupe(clipIndices)
	if len(targets) == 0 {
		resolved, ok, err := ResolveTargets(instruction, scenes)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: no clip index given and the instruction does not name any clips", domain.ErrValidation)
		}
		targets = resolved
	}
	for _, idx := range targets {
		if idx < 0 || idx >= len(scenes) {
			return nil, fmt.Errorf("%w: clip index %d out of range (job has %d clips)", domain.ErrValidation, idx, len(scenes))
		}
		if _, err := e.versions.Current(ctx, jobID, idx); err != nil {
			return nil, fmt.Errorf("%w: clip %d has no current version", domain.ErrNotFound, idx)
		}
	}
	return targets, nil
}

// acquireAll takes every target's lock or none of them.
func (e *Engine) acquireAll(ctx context.Context, jobID string, targets []int, instruction string) error {
	for i, idx := range targets {
		err := e.regens.AcquireLock(ctx, &domain.RegenLock{
			JobID:       jobID,
			ClipIndex:   idx,
			State:       domain.RegenStateMatching,
			Instruction: instruction,
		})
		if err != nil {
			for _, held := range targets[:i] {
				e.releaseLock(ctx, jobID, held)
			}
			return err
		}
	}
	return nil
}

func (e *Engine) loadScenes(ctx context.Context, jobID string) ([]domain.Scene, error) {
	rec, err := e.stages.Get(ctx, jobID, domain.StageScenePlanner)
	if err != nil {
		return nil, err
	}
	var plan domain.ScenePlan
	if err := json.Unmarshal(rec.Metadata, &plan); err != nil {
		return nil, fmt.Errorf("decode scene plan: %w", err)
	}
	return plan.Scenes, nil
}

func (e *Engine) failRegeneration(ctx context.Context, p queue.RegeneratePayload, cause error) {
	e.appendLedger(ctx, p, 0, false, cause.Error())
	e.pub.Publish(ctx, domain.NewEvent(p.JobID, domain.EventRegenerationFailed, map[string]any{
		"clip_index": p.ClipIndex,
		"error":      cause.Error(),
		"retryable":  domain.Retryable(cause),
	}))
	e.logger.Error().Err(cause).Str("job_id", p.JobID).Int("clip_index", p.ClipIndex).Msg("regen: regeneration failed")
}

func (e *Engine) appendLedger(ctx context.Context, p queue.RegeneratePayload, cost float64, success bool, message string) {
	err := e.regens.AppendEvent(ctx, &domain.RegenerationEvent{
		JobID:             p.JobID,
		ClipIndex:         p.ClipIndex,
		Instruction:       p.Instruction,
		MatchedTemplateID: p.TemplateID,
		Cost:              cost,
		Success:           success,
		Error:             message,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("job_id", p.JobID).Msg("regen: ledger append failed")
	}
}

func (e *Engine) setLockState(ctx context.Context, jobID string, clipIndex int, state domain.RegenState) {
	if err := e.regens.UpdateLockState(ctx, jobID, clipIndex, state); err != nil {
		e.logger.Error().Err(err).Str("job_id", jobID).Int("clip_index", clipIndex).Msg("regen: lock state update failed")
	}
}

func (e *Engine) releaseLock(ctx context.Context, jobID string, clipIndex int) {
	if err := e.regens.ReleaseLock(ctx, jobID, clipIndex); err != nil {
		e.logger.Error().Err(err).Str("job_id", jobID).Int("clip_index", clipIndex).Msg("regen: lock release failed")
	}
}

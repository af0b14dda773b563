// Package pipeline drives a job through the six fixed generation stages.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/eventhub"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
	"github.com/eweinhaus/VideoGen-sub002/internal/providers/media"
)

// Rough per-stage durations used for the client-visible remaining-time
// estimate. They only need to be the right order of magnitude.
var stageEstimateSeconds = map[domain.StageName]int{
	domain.StageAudioParser:        15,
	domain.StageScenePlanner:       10,
	domain.StageReferenceGenerator: 45,
	domain.StagePromptGenerator:    10,
	domain.StageVideoGenerator:     120,
	domain.StageComposer:           30,
}

// Orchestrator runs pipeline stages in order, persisting each stage's result
// and publishing progress events as it goes. Stages inside one job are
// strictly sequential; fan-out happens only inside the reference and clip
// stages, bounded by Fanout.
type Orchestrator struct {
	jobs     domain.JobRepository
	stages   domain.StageRepository
	versions domain.VersionRepository
	gateway  *media.Gateway
	pub      eventhub.Publisher
	logger   infra.Logger

	Fanout      int
	ClipRetries int
}

func NewOrchestrator(jobs domain.JobRepository, stages domain.StageRepository, versions domain.VersionRepository, gateway *media.Gateway, pub eventhub.Publisher, logger infra.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:        jobs,
		stages:      stages,
		versions:    versions,
		gateway:     gateway,
		pub:         pub,
		logger:      logger,
		Fanout:      3,
		ClipRetries: 2,
	}
}

// runState carries stage outputs forward through one run.
type runState struct {
	job      *domain.Job
	analysis domain.AudioAnalysis
	plan     domain.ScenePlan
	refs     domain.ReferenceSet
	prompts  domain.PromptSet
	clips    domain.ClipSet
}

// RunJob executes the full pipeline for jobID and returns the terminal
// status. Completed stages from an interrupted earlier run are restored from
// the stage store instead of being re-executed. stopAfter, when set, halts
// cleanly after the named stage without failing the job (test/debug only).
func (o *Orchestrator) RunJob(ctx context.Context, jobID string, stopAfter domain.StageName) (domain.JobStatus, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != domain.JobStatusQueued && job.Status != domain.JobStatusProcessing {
		return job.Status, fmt.Errorf("%w: job %s is %s", domain.ErrConflict, jobID, job.Status)
	}
	if err := o.jobs.UpdateStatus(ctx, jobID, domain.JobStatusProcessing); err != nil {
		return "", err
	}

	st := &runState{job: job}
	for idx, stage := range domain.StageOrder {
		o.reportProgress(ctx, jobID, idx)

		if err := o.runStage(ctx, st, stage); err != nil {
			o.failJob(ctx, jobID, stage, err)
			return domain.JobStatusFailed, err
		}

		if stopAfter != "" && stage == stopAfter {
			o.logger.Info().Str("job_id", jobID).Str("stage", string(stage)).Msg("pipeline: stopping after stage by directive")
			return domain.JobStatusProcessing, nil
		}
	}

	if err := o.jobs.SetProgress(ctx, jobID, 100, nil, nil); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: final progress update failed")
	}
	if err := o.jobs.UpdateStatus(ctx, jobID, domain.JobStatusCompleted); err != nil {
		return "", err
	}
	o.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventCompleted, map[string]any{
		"video_url": st.job.VideoURL,
		"duration":  st.job.Duration,
	}))
	return domain.JobStatusCompleted, nil
}

// runStage executes one stage, or restores it when a previous run already
// completed it.
func (o *Orchestrator) runStage(ctx context.Context, st *runState, stage domain.StageName) error {
	if rec, err := o.stages.Get(ctx, st.job.ID, stage); err == nil && rec.Status == domain.StageStatusCompleted {
		return o.restoreStage(st, stage, rec.Metadata)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if err := o.stages.Start(ctx, st.job.ID, stage); err != nil {
		return err
	}
	o.publishStageUpdate(ctx, st.job.ID, stage, domain.StageStatusProcessing, nil)

	var metadata any
	var cost float64
	var err error
	switch stage {
	case domain.StageAudioParser:
		metadata, cost, err = o.runAudioParser(ctx, st)
	case domain.StageScenePlanner:
		metadata, cost, err = o.runScenePlanner(ctx, st)
	case domain.StageReferenceGenerator:
		metadata, cost, err = o.runReferenceGenerator(ctx, st)
	case domain.StagePromptGenerator:
		metadata, cost, err = o.runPromptGenerator(ctx, st)
	case domain.StageVideoGenerator:
		metadata, cost, err = o.runVideoGenerator(ctx, st)
	case domain.StageComposer:
		metadata, cost, err = o.runComposer(ctx, st)
	default:
		err = fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, stage)
	}
	if err != nil {
		if failErr := o.stages.Fail(ctx, st.job.ID, stage, err.Error()); failErr != nil {
			o.logger.Error().Err(failErr).Str("job_id", st.job.ID).Msg("pipeline: marking stage failed failed")
		}
		o.publishStageUpdate(ctx, st.job.ID, stage, domain.StageStatusFailed, nil)
		return fmt.Errorf("stage %s: %w", stage, err)
	}

	raw, marshalErr := json.Marshal(metadata)
	if marshalErr != nil {
		return fmt.Errorf("stage %s: marshal metadata: %w", stage, marshalErr)
	}
	if err := o.stages.Complete(ctx, st.job.ID, stage, raw, cost); err != nil {
		return err
	}
	o.publishStageUpdate(ctx, st.job.ID, stage, domain.StageStatusCompleted, raw)
	if cost > 0 {
		o.addCost(ctx, st, cost)
	}
	return nil
}

func (o *Orchestrator) restoreStage(st *runState, stage domain.StageName, metadata json.RawMessage) error {
	var dst any
	switch stage {
	case domain.StageAudioParser:
		dst = &st.analysis
	case domain.StageScenePlanner:
		dst = &st.plan
	case domain.StageReferenceGenerator:
		dst = &st.refs
	case domain.StagePromptGenerator:
		dst = &st.prompts
	case domain.StageVideoGenerator:
		dst = &st.clips
	case domain.StageComposer:
		return nil
	}
	if err := json.Unmarshal(metadata, dst); err != nil {
		return fmt.Errorf("restore stage %s: %w", stage, err)
	}
	return nil
}

func (o *Orchestrator) runAudioParser(ctx context.Context, st *runState) (any, float64, error) {
	analysis, cost, err := o.gateway.AnalyzeAudio(ctx, media.AudioRequest{JobID: st.job.ID, SongURL: st.job.SongURL})
	if err != nil {
		return nil, 0, err
	}
	st.analysis = *analysis
	return st.analysis, cost, nil
}

func (o *Orchestrator) runScenePlanner(ctx context.Context, st *runState) (any, float64, error) {
	plan, cost, err := o.gateway.PlanScenes(ctx, media.SceneRequest{
		JobID:    st.job.ID,
		Prompt:   st.job.Prompt,
		Template: st.job.Template,
		Analysis: st.analysis,
	})
	if err != nil {
		return nil, 0, err
	}
	if len(plan.Scenes) == 0 {
		return nil, 0, media.Fatal(errors.New("scene planner returned no scenes"))
	}
	st.plan = *plan
	return st.plan, cost, nil
}

// runReferenceGenerator dispatches one image call per scene, bounded by
// Fanout. Each image retries independently; any image failing for good fails
// the stage.
func (o *Orchestrator) runReferenceGenerator(ctx context.Context, st *runState) (any, float64, error) {
	var mu sync.Mutex
	var images []domain.ReferenceImage
	var total float64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Fanout)
	for _, scene := range st.plan.Scenes {
		scene := scene
		g.Go(func() error {
			o.pub.Publish(gctx, domain.NewEvent(st.job.ID, domain.EventReferenceGenerationStart, map[string]any{
				"scene_index": scene.Index,
			}))
			var img *domain.ReferenceImage
			var cost float64
			err := media.Retry(gctx, o.ClipRetries, func() error {
				var callErr error
				img, cost, callErr = o.gateway.GenerateReferenceImage(gctx, media.ReferenceRequest{
					JobID:        st.job.ID,
					SceneIndex:   scene.Index,
					Description:  scene.Description,
					CharacterRef: st.job.CharacterRef,
					AspectRatio:  st.job.AspectRatio,
				})
				return callErr
			}, func(count int, retryErr error) {
				o.pub.Publish(gctx, domain.NewEvent(st.job.ID, domain.EventReferenceGenerationRetry, map[string]any{
					"scene_index": scene.Index,
					"retry_count": count,
					"error":       retryErr.Error(),
				}))
			})
			if err != nil {
				o.pub.Publish(gctx, domain.NewEvent(st.job.ID, domain.EventReferenceGenerationFailed, map[string]any{
					"scene_index": scene.Index,
					"error":       err.Error(),
					"retryable":   domain.Retryable(err),
				}))
				return err
			}
			mu.Lock()
			images = append(images, *img)
			total += cost
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Index < images[j].Index })
	st.refs = domain.ReferenceSet{Images: images}
	o.pub.Publish(ctx, domain.NewEvent(st.job.ID, domain.EventReferenceGenerationComplete, map[string]any{
		"images": images,
	}))
	return st.refs, total, nil
}

func (o *Orchestrator) runPromptGenerator(ctx context.Context, st *runState) (any, float64, error) {
	set, cost, err := o.gateway.GeneratePrompts(ctx, media.PromptRequest{
		JobID:     st.job.ID,
		Prompt:    st.job.Prompt,
		Template:  st.job.Template,
		Scenes:    st.plan.Scenes,
		Reference: st.refs.Images,
	})
	if err != nil {
		return nil, 0, err
	}
	if len(set.Prompts) != len(st.plan.Scenes) {
		return nil, 0, media.Fatal(fmt.Errorf("prompt generator returned %d prompts for %d scenes", len(set.Prompts), len(st.plan.Scenes)))
	}
	st.prompts = *set
	return st.prompts, cost, nil
}

// runVideoGenerator generates one clip per scene, bounded by Fanout. A clip
// that exhausts its retries is recorded as failed; the stage degrades to
// partial success and only fails outright when zero clips succeed.
func (o *Orchestrator) runVideoGenerator(ctx context.Context, st *runState) (any, float64, error) {
	results := make([]domain.ClipResult, len(st.plan.Scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Fanout)
	for i, scene := range st.plan.Scenes {
		i, scene := i, scene
		g.Go(func() error {
			results[i] = o.generateClip(gctx, st, scene, st.prompts.Prompts[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	clipSet := domain.ClipSet{Clips: results, Total: len(results)}
	var total float64
	for _, clip := range results {
		if !clip.Failed {
			clipSet.Successful++
			total += clip.Cost
		}
	}
	if clipSet.Successful == 0 {
		return nil, 0, media.Fatal(errors.New("all clips failed"))
	}

	for _, clip := range results {
		if clip.Failed {
			continue
		}
		if _, err := o.versions.Append(ctx, &domain.ClipVersion{
			JobID:        st.job.ID,
			ClipIndex:    clip.Index,
			VideoURL:     clip.VideoURL,
			ThumbnailURL: clip.ThumbnailURL,
			Prompt:       clip.Prompt,
			Seed:         clip.Seed,
			Cost:         clip.Cost,
			Duration:     clip.Duration,
		}); err != nil {
			return nil, 0, fmt.Errorf("record clip %d version: %w", clip.Index, err)
		}
	}

	st.clips = clipSet
	return st.clips, total, nil
}

func (o *Orchestrator) generateClip(ctx context.Context, st *runState, scene domain.Scene, clipPrompt string) domain.ClipResult {
	jobID := st.job.ID
	o.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventVideoGenerationStart, map[string]any{
		"clip_index": scene.Index,
	}))

	req := media.ClipRequest{
		JobID:        jobID,
		ClipIndex:    scene.Index,
		Prompt:       clipPrompt,
		Seed:         rand.Int63(),
		Duration:     scene.End - scene.Start,
		VideoModel:   st.job.VideoModel,
		AspectRatio:  st.job.AspectRatio,
		ReferenceURL: referenceURL(st.refs, scene.Index),
	}

	var asset *media.ClipAsset
	err := media.Retry(ctx, o.ClipRetries, func() error {
		var callErr error
		asset, callErr = o.gateway.GenerateClip(ctx, req)
		return callErr
	}, func(count int, retryErr error) {
		o.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventVideoGenerationRetry, map[string]any{
			"clip_index":  scene.Index,
			"retry_count": count,
			"error":       retryErr.Error(),
		}))
	})
	if err != nil {
		o.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventVideoGenerationFailed, map[string]any{
			"clip_index": scene.Index,
			"error":      err.Error(),
			"retryable":  domain.Retryable(err),
		}))
		return domain.ClipResult{Index: scene.Index, Prompt: clipPrompt, Failed: true, Error: err.Error(), Retries: o.ClipRetries}
	}

	o.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventVideoGenerationComplete, map[string]any{
		"clip_index":    scene.Index,
		"video_url":     asset.VideoURL,
		"thumbnail_url": asset.ThumbnailURL,
	}))
	return domain.ClipResult{
		Index:        scene.Index,
		VideoURL:     asset.VideoURL,
		ThumbnailURL: asset.ThumbnailURL,
		Prompt:       clipPrompt,
		Seed:         asset.Seed,
		Duration:     asset.Duration,
		Cost:         asset.Cost,
	}
}

func referenceURL(refs domain.ReferenceSet, index int) string {
	for _, img := range refs.Images {
		if img.Index == index {
			return img.URL
		}
	}
	return ""
}

func (o *Orchestrator) runComposer(ctx context.Context, st *runState) (any, float64, error) {
	composition, err := o.Compose(ctx, st.job)
	if err != nil {
		return nil, 0, err
	}
	return *composition, composition.Cost, nil
}

// Compose assembles the job's current clip set into the final video and
// stores the result on the job. It is also the recomposition entry point
// used after a clip version changes.
func (o *Orchestrator) Compose(ctx context.Context, job *domain.Job) (*domain.Composition, error) {
	clips, err := o.versions.ListCurrentByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, media.Fatal(errors.New("no clips to compose"))
	}
	composition, err := o.gateway.ComposeVideo(ctx, media.ComposeRequest{
		JobID:       job.ID,
		SongURL:     job.SongURL,
		AspectRatio: job.AspectRatio,
		Clips:       clips,
	})
	if err != nil {
		return nil, err
	}
	if err := o.jobs.SetResult(ctx, job.ID, composition.VideoURL, composition.Duration); err != nil {
		return nil, err
	}
	job.VideoURL = composition.VideoURL
	job.Duration = composition.Duration
	return composition, nil
}

// Recompose re-runs the composer over the current clip set after a version
// change. The composer stage record is refreshed in place with its cost
// accumulated; its status stays completed so the stage history never
// regresses.
func (o *Orchestrator) Recompose(ctx context.Context, jobID string) (*domain.Composition, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	composition, err := o.Compose(ctx, job)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(composition)
	if err != nil {
		return nil, err
	}
	stageCost := composition.Cost
	if rec, err := o.stages.Get(ctx, jobID, domain.StageComposer); err == nil {
		stageCost += rec.Cost
	}
	if err := o.stages.Complete(ctx, jobID, domain.StageComposer, raw, stageCost); err != nil {
		return nil, err
	}
	if composition.Cost > 0 {
		if err := o.jobs.AddCost(ctx, jobID, composition.Cost); err != nil {
			o.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: recompose cost accumulation failed")
		} else {
			o.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventCostUpdate, map[string]any{
				"total_cost": job.TotalCost + composition.Cost,
				"delta":      composition.Cost,
			}))
		}
	}
	return composition, nil
}

func (o *Orchestrator) reportProgress(ctx context.Context, jobID string, stageIdx int) {
	stage := domain.StageOrder[stageIdx]
	progress := stageIdx * 100 / len(domain.StageOrder)
	remaining := 0
	for _, s := range domain.StageOrder[stageIdx:] {
		remaining += stageEstimateSeconds[s]
	}
	if err := o.jobs.SetProgress(ctx, jobID, progress, &stage, &remaining); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: progress update failed")
	}
	o.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventProgress, map[string]any{
		"progress":                    progress,
		"current_stage":               stage,
		"estimated_remaining_seconds": remaining,
	}))
}

func (o *Orchestrator) publishStageUpdate(ctx context.Context, jobID string, stage domain.StageName, status domain.StageStatus, metadata json.RawMessage) {
	data := map[string]any{"stage": stage, "status": status}
	if len(metadata) > 0 {
		var decoded any
		if err := json.Unmarshal(metadata, &decoded); err == nil {
			data["metadata"] = decoded
		}
	}
	o.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventStageUpdate, data))
}

func (o *Orchestrator) addCost(ctx context.Context, st *runState, cost float64) {
	if err := o.jobs.AddCost(ctx, st.job.ID, cost); err != nil {
		o.logger.Error().Err(err).Str("job_id", st.job.ID).Msg("pipeline: cost accumulation failed")
		return
	}
	st.job.TotalCost += cost
	o.pub.Publish(ctx, domain.NewEvent(st.job.ID, domain.EventCostUpdate, map[string]any{
		"total_cost": st.job.TotalCost,
		"delta":      cost,
	}))
}

func (o *Orchestrator) failJob(ctx context.Context, jobID string, stage domain.StageName, cause error) {
	if err := o.jobs.UpdateStatus(ctx, jobID, domain.JobStatusFailed); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: marking job failed failed")
	}
	o.pub.Publish(ctx, domain.NewEvent(jobID, domain.EventError, map[string]any{
		"stage":     stage,
		"message":   cause.Error(),
		"retryable": domain.Retryable(cause),
	}))
	o.logger.Error().Err(cause).Str("job_id", jobID).Str("stage", string(stage)).Msg("pipeline: job failed")
}

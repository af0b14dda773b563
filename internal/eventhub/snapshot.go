package eventhub

import (
	"context"
	"encoding/json"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
)

// SnapshotSource is the read side the snapshot needs: the authoritative
// server-side projection of one job.
type SnapshotSource struct {
	Jobs     domain.JobRepository
	Stages   domain.StageRepository
	Versions domain.VersionRepository
	Regens   domain.RegenRepository
}

// BuildSnapshot reconstructs the observable state of a job as a sequence of
// synthetic events. A late subscriber that applies these, then the live
// stream, converges on the same projection a continuously-connected
// subscriber holds.
func (s SnapshotSource) BuildSnapshot(ctx context.Context, jobID string) ([]domain.Event, error) {
	job, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	events := []domain.Event{
		domain.NewEvent(jobID, domain.EventProgress, map[string]any{
			"status":                      job.Status,
			"progress":                    job.Progress,
			"current_stage":               job.CurrentStage,
			"estimated_remaining_seconds": job.EstimatedRemaining,
			"snapshot":                    true,
		}),
		domain.NewEvent(jobID, domain.EventCostUpdate, map[string]any{
			"total_cost": job.TotalCost,
			"snapshot":   true,
		}),
	}

	stages, err := s.Stages.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	for _, rec := range stages {
		var metadata any
		if len(rec.Metadata) > 0 {
			_ = json.Unmarshal(rec.Metadata, &metadata)
		}
		events = append(events, domain.NewEvent(jobID, domain.EventStageUpdate, map[string]any{
			"stage":    rec.Stage,
			"status":   rec.Status,
			"metadata": metadata,
			"error":    rec.Error,
			"snapshot": true,
		}))
	}

	versions, err := s.Versions.ListCurrentByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		events = append(events, domain.NewEvent(jobID, domain.EventVideoGenerationComplete, map[string]any{
			"clip_index":     v.ClipIndex,
			"version_number": v.VersionNumber,
			"video_url":      v.VideoURL,
			"thumbnail_url":  v.ThumbnailURL,
			"prompt":         v.Prompt,
			"snapshot":       true,
		}))
	}

	locks, err := s.Regens.ActiveLocks(ctx, jobID)
	if err != nil {
		return nil, err
	}
	for _, lock := range locks {
		events = append(events, domain.NewEvent(jobID, lockEventType(lock.State), map[string]any{
			"clip_index":  lock.ClipIndex,
			"instruction": lock.Instruction,
			"state":       lock.State,
			"snapshot":    true,
		}))
	}

	if job.Status == domain.JobStatusCompleted {
		events = append(events, domain.NewEvent(jobID, domain.EventCompleted, map[string]any{
			"video_url": job.VideoURL,
			"duration":  job.Duration,
			"snapshot":  true,
		}))
	}
	return events, nil
}

func lockEventType(state domain.RegenState) domain.EventType {
	switch state {
	case domain.RegenStatePromptReady:
		return domain.EventRegenerationPromptModified
	case domain.RegenStateGenerating:
		return domain.EventRegenerationVideoGenerating
	case domain.RegenStateRecomposing:
		return domain.EventRecompositionStarted
	default:
		return domain.EventRegenerationStarted
	}
}

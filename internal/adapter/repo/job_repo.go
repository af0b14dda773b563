package repo

import (
	"context"
	"fmt"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
	"github.com/eweinhaus/VideoGen-sub002/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	db infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(db infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{db: db}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if !domain.ValidJobStatus(job.Status) {
		return fmt.Errorf("%w: job status %q", domain.ErrValidation, job.Status)
	}
	_, err := r.db.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		job.Status,
		job.Prompt,
		job.SongURL,
		job.VideoModel,
		job.AspectRatio,
		job.Template,
		job.CharacterRef,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.db.QueryRow(ctx, sqlinline.QGetJob, jobID)
	var job domain.Job
	var stage *string
	if err := row.Scan(
		&job.ID,
		&job.Status,
		&stage,
		&job.Progress,
		&job.EstimatedRemaining,
		&job.TotalCost,
		&job.Prompt,
		&job.SongURL,
		&job.VideoModel,
		&job.AspectRatio,
		&job.Template,
		&job.CharacterRef,
		&job.VideoURL,
		&job.Duration,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if stage != nil {
		if s, ok := domain.CanonicalStage(*stage); ok {
			job.CurrentStage = &s
		}
	}
	return &job, nil
}

// UpdateStatus moves the job to one of the five enumerated statuses.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	if !domain.ValidJobStatus(status) {
		return fmt.Errorf("%w: job status %q", domain.ErrValidation, status)
	}
	tag, err := r.db.Exec(ctx, sqlinline.QUpdateJobStatus, jobID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetProgress updates the client-visible progress projection.
func (r *JobRepositoryPG) SetProgress(ctx context.Context, jobID string, progress int, stage *domain.StageName, remainingSeconds *int) error {
	var stageVal *string
	if stage != nil {
		s := string(*stage)
		stageVal = &s
	}
	_, err := r.db.Exec(ctx, sqlinline.QSetJobProgress, jobID, progress, stageVal, remainingSeconds)
	return err
}

// AddCost accumulates delta onto the job's monotonic total_cost.
func (r *JobRepositoryPG) AddCost(ctx context.Context, jobID string, delta float64) error {
	if delta < 0 {
		return fmt.Errorf("%w: negative cost delta", domain.ErrValidation)
	}
	_, err := r.db.Exec(ctx, sqlinline.QAddJobCost, jobID, delta)
	return err
}

// SetResult stores the composed video output on the job.
func (r *JobRepositoryPG) SetResult(ctx context.Context, jobID string, videoURL string, duration float64) error {
	_, err := r.db.Exec(ctx, sqlinline.QSetJobResult, jobID, videoURL, duration)
	return err
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)

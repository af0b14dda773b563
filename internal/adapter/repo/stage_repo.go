package repo

import (
	"context"
	"fmt"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
	"github.com/eweinhaus/VideoGen-sub002/internal/sqlinline"
)

// StageRepositoryPG implements domain.StageRepository. All writes funnel
// through here, which is where the monotonic-status invariant lives.
type StageRepositoryPG struct {
	db infra.SQLExecutor
}

// NewStageRepository creates a new stage repository backed by PostgreSQL.
func NewStageRepository(db infra.SQLExecutor) *StageRepositoryPG {
	return &StageRepositoryPG{db: db}
}

// Start lazily creates the (job, stage) row and marks it processing. Starting
// a stage that already settled is an invariant violation and is rejected.
func (r *StageRepositoryPG) Start(ctx context.Context, jobID string, stage domain.StageName) error {
	canonical, ok := domain.CanonicalStage(string(stage))
	if !ok {
		return fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, stage)
	}
	tag, err := r.db.Exec(ctx, sqlinline.QStartStage, jobID, canonical)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: stage %s already settled", domain.ErrConflict, canonical)
	}
	return nil
}

// Complete marks the stage completed and stores its result metadata.
func (r *StageRepositoryPG) Complete(ctx context.Context, jobID string, stage domain.StageName, metadata []byte, cost float64) error {
	canonical, ok := domain.CanonicalStage(string(stage))
	if !ok {
		return fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, stage)
	}
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}
	tag, err := r.db.Exec(ctx, sqlinline.QCompleteStage, jobID, canonical, metadata, cost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: stage %s not running", domain.ErrConflict, canonical)
	}
	return nil
}

// Fail marks the stage failed with a message. A stage that already completed
// keeps its result; the failure then belongs to the attempt, not the record.
func (r *StageRepositoryPG) Fail(ctx context.Context, jobID string, stage domain.StageName, message string) error {
	canonical, ok := domain.CanonicalStage(string(stage))
	if !ok {
		return fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, stage)
	}
	_, err := r.db.Exec(ctx, sqlinline.QFailStage, jobID, canonical, message)
	return err
}

// Get fetches one stage record.
func (r *StageRepositoryPG) Get(ctx context.Context, jobID string, stage domain.StageName) (*domain.StageRecord, error) {
	canonical, ok := domain.CanonicalStage(string(stage))
	if !ok {
		return nil, fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, stage)
	}
	row := r.db.QueryRow(ctx, sqlinline.QGetStage, jobID, canonical)
	rec, err := scanStage(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListByJob returns the job's stage records in pipeline order.
func (r *StageRepositoryPG) ListByJob(ctx context.Context, jobID string) ([]domain.StageRecord, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListStages, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.StageRecord
	for rows.Next() {
		rec, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStage(s scanner) (*domain.StageRecord, error) {
	var rec domain.StageRecord
	var stage string
	if err := s.Scan(
		&rec.JobID,
		&stage,
		&rec.Status,
		&rec.Metadata,
		&rec.Error,
		&rec.Cost,
		&rec.StartedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	canonical, ok := domain.CanonicalStage(stage)
	if !ok {
		return nil, fmt.Errorf("stage store holds unknown stage %q", stage)
	}
	rec.Stage = canonical
	return &rec, nil
}

var _ domain.StageRepository = (*StageRepositoryPG)(nil)

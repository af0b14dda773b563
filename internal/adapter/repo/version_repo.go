package repo

import (
	"context"
	"fmt"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
	"github.com/eweinhaus/VideoGen-sub002/internal/sqlinline"
)

// VersionRepositoryPG implements domain.VersionRepository. Appends and
// current-version flips run inside a transaction so the "exactly one current
// version per clip" invariant holds under concurrent readers.
type VersionRepositoryPG struct {
	runner *infra.SQLRunner
}

// NewVersionRepository creates a new clip version repository backed by PostgreSQL.
func NewVersionRepository(runner *infra.SQLRunner) *VersionRepositoryPG {
	return &VersionRepositoryPG{runner: runner}
}

// Append inserts the next version for the clip and makes it current.
func (r *VersionRepositoryPG) Append(ctx context.Context, v *domain.ClipVersion) (int, error) {
	var assigned int
	err := r.runner.WithTx(ctx, func(tx infra.SQLExecutor) error {
		var maxVersion int
		if err := tx.QueryRow(ctx, sqlinline.QMaxVersion, v.JobID, v.ClipIndex).Scan(&maxVersion); err != nil {
			return err
		}
		assigned = maxVersion + 1
		if _, err := tx.Exec(ctx, sqlinline.QClearCurrentVersion, v.JobID, v.ClipIndex); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, sqlinline.QInsertVersion,
			v.JobID,
			v.ClipIndex,
			assigned,
			v.VideoURL,
			v.ThumbnailURL,
			v.Prompt,
			v.UserInstruction,
			v.Seed,
			v.Cost,
			v.Duration,
		)
		return err
	})
	if err != nil {
		return 0, err
	}
	v.VersionNumber = assigned
	v.IsCurrent = true
	return assigned, nil
}

// SetCurrent flips is_current to an existing version. No new row is created.
func (r *VersionRepositoryPG) SetCurrent(ctx context.Context, jobID string, clipIndex, versionNumber int) error {
	if versionNumber < 1 {
		return fmt.Errorf("%w: version number %d", domain.ErrValidation, versionNumber)
	}
	return r.runner.WithTx(ctx, func(tx infra.SQLExecutor) error {
		if _, err := tx.Exec(ctx, sqlinline.QClearCurrentVersion, jobID, clipIndex); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, sqlinline.QSetCurrentVersion, jobID, clipIndex, versionNumber)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: clip %d version %d", domain.ErrNotFound, clipIndex, versionNumber)
		}
		return nil
	})
}

// Current returns the clip's current version.
func (r *VersionRepositoryPG) Current(ctx context.Context, jobID string, clipIndex int) (*domain.ClipVersion, error) {
	row := r.runner.QueryRow(ctx, sqlinline.QGetCurrentVersion, jobID, clipIndex)
	v, err := scanVersion(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// ListByClip returns all versions of one clip in version order.
func (r *VersionRepositoryPG) ListByClip(ctx context.Context, jobID string, clipIndex int) ([]domain.ClipVersion, error) {
	rows, err := r.runner.Query(ctx, sqlinline.QListVersionsByClip, jobID, clipIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ClipVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// ListCurrentByJob returns the job's current clip set in clip order.
func (r *VersionRepositoryPG) ListCurrentByJob(ctx context.Context, jobID string) ([]domain.ClipVersion, error) {
	rows, err := r.runner.Query(ctx, sqlinline.QListCurrentByJob, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ClipVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func scanVersion(s scanner) (*domain.ClipVersion, error) {
	var v domain.ClipVersion
	if err := s.Scan(
		&v.JobID,
		&v.ClipIndex,
		&v.VersionNumber,
		&v.VideoURL,
		&v.ThumbnailURL,
		&v.Prompt,
		&v.UserInstruction,
		&v.Seed,
		&v.Cost,
		&v.Duration,
		&v.IsCurrent,
		&v.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

var _ domain.VersionRepository = (*VersionRepositoryPG)(nil)

package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
	"github.com/eweinhaus/VideoGen-sub002/internal/sqlinline"
)

// RegenRepositoryPG implements domain.RegenRepository: the append-only
// regeneration ledger, its derived aggregates, and the per-clip locks.
type RegenRepositoryPG struct {
	db infra.SQLExecutor
}

// NewRegenRepository creates a new regeneration repository backed by PostgreSQL.
func NewRegenRepository(db infra.SQLExecutor) *RegenRepositoryPG {
	return &RegenRepositoryPG{db: db}
}

// AppendEvent writes one audit row. Rows are never updated or deleted.
func (r *RegenRepositoryPG) AppendEvent(ctx context.Context, ev *domain.RegenerationEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx, sqlinline.QInsertRegenEvent,
		ev.ID,
		ev.JobID,
		ev.ClipIndex,
		ev.Instruction,
		ev.MatchedTemplateID,
		ev.Cost,
		ev.Success,
		ev.Error,
	)
	return err
}

// TotalCost sums the successful regeneration spend for one job. Failed
// attempts never contribute.
func (r *RegenRepositoryPG) TotalCost(ctx context.Context, jobID string) (float64, error) {
	var total float64
	if err := r.db.QueryRow(ctx, sqlinline.QRegenTotalCost, jobID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Stats computes the derived analytics aggregates over the whole ledger.
func (r *RegenRepositoryPG) Stats(ctx context.Context) (*domain.RegenerationStats, error) {
	var stats domain.RegenerationStats
	var templateMatches int
	if err := r.db.QueryRow(ctx, sqlinline.QRegenStats).Scan(
		&stats.Total,
		&stats.Succeeded,
		&stats.AverageCost,
		&templateMatches,
	); err != nil {
		return nil, err
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
		stats.TemplateMatchRate = float64(templateMatches) / float64(stats.Total)
		var common string
		if err := r.db.QueryRow(ctx, sqlinline.QRegenCommonInstruction).Scan(&common); err != nil && !infra.IsNoRows(err) {
			return nil, err
		}
		stats.CommonInstruction = common
	}
	return &stats, nil
}

// AcquireLock claims the per-(job, clip) mutation guard. A pair that is
// already locked yields ErrConflict before any provider work happens.
func (r *RegenRepositoryPG) AcquireLock(ctx context.Context, lock *domain.RegenLock) error {
	state := lock.State
	if state == "" {
		state = domain.RegenStateMatching
	}
	tag, err := r.db.Exec(ctx, sqlinline.QAcquireRegenLock, lock.JobID, lock.ClipIndex, state, lock.Instruction)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: clip %d is regenerating", domain.ErrConflict, lock.ClipIndex)
	}
	return nil
}

// UpdateLockState advances the lock's state machine column.
func (r *RegenRepositoryPG) UpdateLockState(ctx context.Context, jobID string, clipIndex int, state domain.RegenState) error {
	_, err := r.db.Exec(ctx, sqlinline.QUpdateRegenLockState, jobID, clipIndex, state)
	return err
}

// ReleaseLock removes the guard on terminal success or failure.
func (r *RegenRepositoryPG) ReleaseLock(ctx context.Context, jobID string, clipIndex int) error {
	_, err := r.db.Exec(ctx, sqlinline.QReleaseRegenLock, jobID, clipIndex)
	return err
}

// ActiveLocks lists the job's in-flight regenerations for catch-up snapshots.
func (r *RegenRepositoryPG) ActiveLocks(ctx context.Context, jobID string) ([]domain.RegenLock, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListRegenLocks, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RegenLock
	for rows.Next() {
		var l domain.RegenLock
		if err := rows.Scan(&l.JobID, &l.ClipIndex, &l.State, &l.Instruction); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

var _ domain.RegenRepository = (*RegenRepositoryPG)(nil)

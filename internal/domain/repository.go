package domain

import "context"

// JobRepository defines persistence for jobs.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus) error
	SetProgress(ctx context.Context, jobID string, progress int, stage *StageName, remainingSeconds *int) error
	AddCost(ctx context.Context, jobID string, delta float64) error
	SetResult(ctx context.Context, jobID string, videoURL string, duration float64) error
}

// StageRepository is the single write path into the stage store. Implementors
// must enforce the monotonic-status invariant: a completed or failed stage is
// never moved back to pending or processing.
type StageRepository interface {
	Start(ctx context.Context, jobID string, stage StageName) error
	Complete(ctx context.Context, jobID string, stage StageName, metadata []byte, cost float64) error
	Fail(ctx context.Context, jobID string, stage StageName, message string) error
	Get(ctx context.Context, jobID string, stage StageName) (*StageRecord, error)
	ListByJob(ctx context.Context, jobID string) ([]StageRecord, error)
}

// VersionRepository is the append-only clip version store.
type VersionRepository interface {
	// Append inserts version max+1 for the clip, flips the previous current
	// version off and returns the assigned version number.
	Append(ctx context.Context, v *ClipVersion) (int, error)
	// SetCurrent flips is_current to an existing version without creating a
	// new row. Used by revert only.
	SetCurrent(ctx context.Context, jobID string, clipIndex, versionNumber int) error
	Current(ctx context.Context, jobID string, clipIndex int) (*ClipVersion, error)
	ListByClip(ctx context.Context, jobID string, clipIndex int) ([]ClipVersion, error)
	ListCurrentByJob(ctx context.Context, jobID string) ([]ClipVersion, error)
}

// RegenLock is the durable per-(job, clip) mutation guard. At most one row
// exists per pair; its state column mirrors the engine's state machine.
type RegenLock struct {
	JobID       string
	ClipIndex   int
	State       RegenState
	Instruction string
}

// RegenRepository holds the regeneration audit ledger, its derived
// aggregates, and the per-clip locks.
type RegenRepository interface {
	AppendEvent(ctx context.Context, ev *RegenerationEvent) error
	TotalCost(ctx context.Context, jobID string) (float64, error)
	Stats(ctx context.Context) (*RegenerationStats, error)

	// AcquireLock returns ErrConflict when a regeneration is already in
	// flight for the pair.
	AcquireLock(ctx context.Context, lock *RegenLock) error
	UpdateLockState(ctx context.Context, jobID string, clipIndex int, state RegenState) error
	ReleaseLock(ctx context.Context, jobID string, clipIndex int) error
	ActiveLocks(ctx context.Context, jobID string) ([]RegenLock, error)
}

package engine

import (
	"context"

	"hodl/internal/core"
)

// ExecutionRecordRepository persists per-month execution records.
type ExecutionRecordRepository interface {
	GetByID(ctx context.Context, id string) (*core.ExecutionRecord, error)
	GetByMonth(ctx context.Context, month core.MonthLabel) (*core.ExecutionRecord, error)
	// GetCurrentExecuting returns the single EXECUTING record, or nil
	// when no month is in flight.
	GetCurrentExecuting(ctx context.Context) (*core.ExecutionRecord, error)
	ListClosed(ctx context.Context) ([]core.ExecutionRecord, error)
	Upsert(ctx context.Context, rec core.ExecutionRecord) error
	Close(ctx context.Context, id string, closedAt int64) error
	Reopen(ctx context.Context, id string) error
	RevertToDraft(ctx context.Context, id string) error
}

// ExecutionSnapshotRepository persists the frozen per-goal requirement
// rows created when an execution starts.
type ExecutionSnapshotRepository interface {
	GetByRecord(ctx context.Context, executionID string) ([]core.ExecutionSnapshot, error)
	ReplaceForRecord(ctx context.Context, executionID string, snaps []core.ExecutionSnapshot) error
	DeleteByRecord(ctx context.Context, executionID string) error
}

// CompletedExecutionRepository persists the immutable completion rows.
type CompletedExecutionRepository interface {
	GetByRecord(ctx context.Context, executionID string) ([]core.CompletedExecution, error)
	// GetUndoable returns completions whose undo window is still open
	// at nowMillis.
	GetUndoable(ctx context.Context, nowMillis int64) ([]core.CompletedExecution, error)
	ReplaceForRecord(ctx context.Context, executionID string, rows []core.CompletedExecution) error
	DeleteByRecord(ctx context.Context, executionID string) error
}

// TransactionRepository is a read-only stream over the asset ledger.
// Owned by the transaction management subsystem; the engine never
// writes through it.
type TransactionRepository interface {
	ListAll(ctx context.Context) ([]core.Transaction, error)
}

// AllocationHistoryRepository is a read-only stream over the
// time-versioned allocation audit trail.
type AllocationHistoryRepository interface {
	ListAll(ctx context.Context) ([]core.AllocationEntry, error)
}

// GoalRepository lists savings goals.
type GoalRepository interface {
	ListActive(ctx context.Context) ([]core.Goal, error)
}

// MonthlyPlanRepository persists per-(goal, month) plan rows.
type MonthlyPlanRepository interface {
	GetByMonth(ctx context.Context, month core.MonthLabel) ([]core.MonthlyGoalPlan, error)
	SaveAll(ctx context.Context, plans []core.MonthlyGoalPlan) error
}

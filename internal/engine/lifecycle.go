package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"hodl/internal/core"
	"hodl/internal/observe"
)

// EventPublisher receives lifecycle events. Optional: a nil publisher
// means events are skipped, never an error.
type EventPublisher interface {
	PublishExecutionEvent(ctx context.Context, event string, month core.MonthLabel) error
}

// AtomicRunner runs fn inside a single storage transaction so a
// lifecycle operation's record/snapshot/completion writes land as a
// unit. The engine falls back to plain sequential writes when nil.
type AtomicRunner interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error
}

// LifecycleConfig holds the undo windows.
type LifecycleConfig struct {
	// UndoWindow bounds how long a completed execution stays
	// reversible.
	UndoWindow time.Duration

	// StartUndoWindow bounds how long after start the period may be
	// reverted to draft.
	StartUndoWindow time.Duration
}

// DefaultLifecycleConfig returns the reference windows.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		UndoWindow:      24 * time.Hour,
		StartUndoWindow: 24 * time.Hour,
	}
}

// Lifecycle is the execution state machine: DRAFT -> EXECUTING ->
// CLOSED, with CLOSED -> EXECUTING via undo and EXECUTING -> DRAFT via
// undo-start.
//
// All mutations serialize on one mutex. The global "at most one
// EXECUTING record" invariant is checked inside that critical section,
// immediately before the write, so two concurrent starts cannot both
// pass the read-then-write check. Progress reads take no lock.
type Lifecycle struct {
	records     ExecutionRecordRepository
	snapshots   ExecutionSnapshotRepository
	completions CompletedExecutionRepository
	txns        TransactionRepository
	allocs      AllocationHistoryRepository
	goals       GoalRepository
	plans       *PlanService
	events      EventPublisher
	atomic      AtomicRunner
	cfg         LifecycleConfig

	mu  sync.Mutex
	now func() time.Time
}

// LifecycleDeps bundles the repositories the state machine consumes.
type LifecycleDeps struct {
	Records     ExecutionRecordRepository
	Snapshots   ExecutionSnapshotRepository
	Completions CompletedExecutionRepository
	Txns        TransactionRepository
	Allocs      AllocationHistoryRepository
	Goals       GoalRepository
	Plans       *PlanService
	Events      EventPublisher // optional
	Atomic      AtomicRunner   // optional
}

func NewLifecycle(deps LifecycleDeps, cfg LifecycleConfig) *Lifecycle {
	if cfg.UndoWindow <= 0 {
		cfg.UndoWindow = DefaultLifecycleConfig().UndoWindow
	}
	if cfg.StartUndoWindow <= 0 {
		cfg.StartUndoWindow = DefaultLifecycleConfig().StartUndoWindow
	}
	return &Lifecycle{
		records:     deps.Records,
		snapshots:   deps.Snapshots,
		completions: deps.Completions,
		txns:        deps.Txns,
		allocs:      deps.Allocs,
		goals:       deps.Goals,
		plans:       deps.Plans,
		events:      deps.Events,
		atomic:      deps.Atomic,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Start opens the execution period for a month: reconciles the monthly
// plans, creates or resumes the record as EXECUTING, and freezes one
// snapshot per active goal. StartedAt is set exactly once; resuming a
// month never moves it.
func (l *Lifecycle) Start(ctx context.Context, month core.MonthLabel) (*core.ExecutionRecord, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	executing, err := l.records.GetCurrentExecuting(ctx)
	if err != nil {
		return nil, fmt.Errorf("check executing record: %w", err)
	}
	if executing != nil && executing.MonthLabel != month {
		return nil, fmt.Errorf("%w: %s", ErrAnotherExecutionActive, executing.MonthLabel)
	}

	rec, err := l.records.GetByMonth(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load record for %s: %w", month, err)
	}
	if rec != nil && rec.Status == core.StatusClosed {
		return nil, fmt.Errorf("%w: %s", ErrMonthClosed, month)
	}

	plans, err := l.plans.Resync(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("reconcile plans for %s: %w", month, err)
	}
	planByGoal := make(map[string]core.MonthlyGoalPlan, len(plans))
	for _, p := range plans {
		planByGoal[p.GoalID] = p
	}

	goals, err := l.goals.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}

	nowMillis := l.now().UnixMilli()
	if rec == nil {
		rec = &core.ExecutionRecord{
			ID:         uuid.NewString(),
			PlanID:     uuid.NewString(),
			MonthLabel: month,
			CreatedAt:  nowMillis,
		}
	}
	rec.Status = core.StatusExecuting
	if rec.StartedAt == 0 {
		rec.StartedAt = nowMillis
	}
	rec.ClosedAt = 0
	rec.UpdatedAt = nowMillis

	snaps := make([]core.ExecutionSnapshot, 0, len(goals))
	for _, g := range goals {
		plan, hasPlan := planByGoal[g.ID]
		snap := core.ExecutionSnapshot{
			ID:                  uuid.NewString(),
			ExecutionID:         rec.ID,
			GoalID:              g.ID,
			GoalName:            g.Name,
			Currency:            g.Currency,
			TargetAmount:        g.TargetAmount,
			CurrentTotalAtStart: g.CurrentTotal,
			RequiredAmount:      snapshotRequired(plan, hasPlan, g),
		}
		if hasPlan {
			snap.IsProtected = plan.IsProtected
			snap.IsSkipped = plan.IsSkipped
			snap.CustomAmount = plan.CustomAmount
		}
		snaps = append(snaps, snap)
	}

	err = l.runAtomic(ctx, func(ctx context.Context) error {
		if err := l.records.Upsert(ctx, *rec); err != nil {
			return fmt.Errorf("upsert record: %w", err)
		}
		if err := l.snapshots.ReplaceForRecord(ctx, rec.ID, snaps); err != nil {
			return fmt.Errorf("replace snapshots: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observe.LifecycleTransitions.WithLabelValues("start").Inc()
	l.publish(ctx, "execution.started", month)

	slog.InfoContext(ctx, "Execution started",
		"month", month.String(),
		"record_id", rec.ID,
		"snapshots", len(snaps))

	return rec, nil
}

// snapshotRequired resolves the frozen monthly requirement: custom
// amount when set, otherwise the plan's base requirement, otherwise
// the target-minus-funded fallback when no plan row exists. Flex
// adjustments materialize as custom amounts and skip protected plans,
// so a protected plan always lands on its base here.
func snapshotRequired(plan core.MonthlyGoalPlan, hasPlan bool, goal core.Goal) float64 {
	switch {
	case hasPlan && plan.CustomAmount != nil:
		return *plan.CustomAmount
	case hasPlan:
		return plan.RequiredMonthly
	default:
		remaining := goal.TargetAmount - goal.CurrentTotal
		if remaining < 0 {
			remaining = 0
		}
		return remaining
	}
}

// UndoStart reverses Start within the grace window: deletes the
// snapshots and reverts the record to DRAFT.
func (l *Lifecycle) UndoStart(ctx context.Context, recordID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.records.GetByID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("load record %s: %w", recordID, err)
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	if rec.Status == core.StatusClosed {
		return fmt.Errorf("%w: %s", ErrMonthClosed, rec.MonthLabel)
	}
	if rec.StartedAt == 0 {
		return fmt.Errorf("%w: record %s", ErrNotStarted, recordID)
	}

	if l.now().UnixMilli()-rec.StartedAt > l.cfg.StartUndoWindow.Milliseconds() {
		return fmt.Errorf("%w: started %s", ErrStartUndoWindowExpired,
			time.UnixMilli(rec.StartedAt).UTC().Format(time.RFC3339))
	}

	err = l.runAtomic(ctx, func(ctx context.Context) error {
		if err := l.snapshots.DeleteByRecord(ctx, recordID); err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}
		if err := l.records.RevertToDraft(ctx, recordID); err != nil {
			return fmt.Errorf("revert record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	observe.LifecycleTransitions.WithLabelValues("undo_start").Inc()
	l.publish(ctx, "execution.reverted", rec.MonthLabel)

	slog.InfoContext(ctx, "Execution start undone",
		"month", rec.MonthLabel.String(),
		"record_id", recordID)

	return nil
}

// Complete freezes current progress into completion rows and closes
// the record. Each row carries canUndoUntil = completedAt + the
// configured undo window. A closed record cannot be completed again;
// that would replace its rows and restart the undo window.
func (l *Lifecycle) Complete(ctx context.Context, recordID string) ([]core.CompletedExecution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", recordID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	if rec.Status == core.StatusClosed {
		return nil, fmt.Errorf("%w: %s", ErrMonthClosed, rec.MonthLabel)
	}
	if rec.StartedAt == 0 {
		return nil, fmt.Errorf("%w: record %s", ErrNotStarted, recordID)
	}

	snaps, err := l.snapshots.GetByRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: record %s", ErrNoSnapshots, recordID)
	}

	progress, err := l.progressFor(ctx, rec, snaps, l.now().UnixMilli())
	if err != nil {
		return nil, err
	}

	nowMillis := l.now().UnixMilli()
	rows := make([]core.CompletedExecution, 0, len(progress))
	for _, p := range progress {
		rows = append(rows, core.CompletedExecution{
			ID:             uuid.NewString(),
			ExecutionID:    recordID,
			GoalID:         p.GoalID,
			GoalName:       p.GoalName,
			RequiredAmount: p.PlannedAmount,
			ActualAmount:   p.Contributed,
			CompletedAt:    nowMillis,
			CanUndoUntil:   nowMillis + l.cfg.UndoWindow.Milliseconds(),
		})
	}

	err = l.runAtomic(ctx, func(ctx context.Context) error {
		if err := l.completions.ReplaceForRecord(ctx, recordID, rows); err != nil {
			return fmt.Errorf("replace completions: %w", err)
		}
		if err := l.records.Close(ctx, recordID, nowMillis); err != nil {
			return fmt.Errorf("close record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observe.LifecycleTransitions.WithLabelValues("complete").Inc()
	l.publish(ctx, "execution.completed", rec.MonthLabel)

	slog.InfoContext(ctx, "Execution completed",
		"month", rec.MonthLabel.String(),
		"record_id", recordID,
		"goals", len(rows))

	return rows, nil
}

// Undo deletes a record's completion rows and reopens it to EXECUTING.
// Every row must still be inside its undo window; one expired row
// blocks the whole undo. A second undo in a row fails with
// ErrNothingToUndo.
func (l *Lifecycle) Undo(ctx context.Context, recordID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.records.GetByID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("load record %s: %w", recordID, err)
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}

	rows, err := l.completions.GetByRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("load completions: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: record %s", ErrNothingToUndo, recordID)
	}

	nowMillis := l.now().UnixMilli()
	for _, row := range rows {
		if nowMillis > row.CanUndoUntil {
			return fmt.Errorf("%w: goal %s expired %s", ErrUndoWindowExpired, row.GoalName,
				time.UnixMilli(row.CanUndoUntil).UTC().Format(time.RFC3339))
		}
	}

	err = l.runAtomic(ctx, func(ctx context.Context) error {
		if err := l.completions.DeleteByRecord(ctx, recordID); err != nil {
			return fmt.Errorf("delete completions: %w", err)
		}
		if err := l.records.Reopen(ctx, recordID); err != nil {
			return fmt.Errorf("reopen record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	observe.LifecycleTransitions.WithLabelValues("undo").Inc()
	l.publish(ctx, "execution.undone", rec.MonthLabel)

	slog.InfoContext(ctx, "Execution undone",
		"month", rec.MonthLabel.String(),
		"record_id", recordID)

	return nil
}

// Session returns the month's record plus live per-goal progress.
// Read-only; may race a concurrent complete/undo and simply reflects
// whichever state it observed.
func (l *Lifecycle) Session(ctx context.Context, month core.MonthLabel) (*core.ExecutionSession, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}

	rec, err := l.records.GetByMonth(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load record for %s: %w", month, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: month %s", ErrRecordNotFound, month)
	}

	snaps, err := l.snapshots.GetByRecord(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	progress, err := l.progressFor(ctx, rec, snaps, l.now().UnixMilli())
	if err != nil {
		return nil, err
	}

	return &core.ExecutionSession{Record: *rec, Progress: progress}, nil
}

// History summarizes every closed month: total required vs. actual and
// whether the month is still undoable.
func (l *Lifecycle) History(ctx context.Context) ([]core.PlanHistoryRow, error) {
	closed, err := l.records.ListClosed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list closed records: %w", err)
	}

	undoable, err := l.completions.GetUndoable(ctx, l.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list undoable completions: %w", err)
	}
	unexpired := make(map[string]int, len(undoable))
	for _, c := range undoable {
		unexpired[c.ExecutionID]++
	}

	out := make([]core.PlanHistoryRow, 0, len(closed))
	for _, rec := range closed {
		rows, err := l.completions.GetByRecord(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("load completions for %s: %w", rec.ID, err)
		}

		row := core.PlanHistoryRow{
			MonthLabel:  rec.MonthLabel,
			CompletedAt: rec.ClosedAt,
			// One expired row blocks the whole undo, same as Undo.
			CanUndo: len(rows) > 0 && unexpired[rec.ID] == len(rows),
		}
		for _, c := range rows {
			row.TotalRequired += c.RequiredAmount
			row.TotalActual += c.ActualAmount
		}
		out = append(out, row)
	}
	return out, nil
}

func (l *Lifecycle) progressFor(ctx context.Context, rec *core.ExecutionRecord, snaps []core.ExecutionSnapshot, nowMillis int64) ([]core.ExecutionGoalProgress, error) {
	txns, err := l.txns.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	allocs, err := l.allocs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load allocation history: %w", err)
	}

	return ComputeProgress(ProgressInput{
		Snapshots:    snaps,
		Transactions: txns,
		Allocations:  allocs,
		StartedAt:    rec.StartedAt,
		Now:          nowMillis,
	}), nil
}

func (l *Lifecycle) runAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.atomic == nil {
		return fn(ctx)
	}
	return l.atomic.RunAtomic(ctx, fn)
}

func (l *Lifecycle) publish(ctx context.Context, event string, month core.MonthLabel) {
	if l.events == nil {
		return
	}
	if err := l.events.PublishExecutionEvent(ctx, event, month); err != nil {
		slog.WarnContext(ctx, "Failed to publish lifecycle event",
			"event", event, "month", month.String(), "error", err)
	}
}

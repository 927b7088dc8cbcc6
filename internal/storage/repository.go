// Package storage persists the tracker's domain records in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hodl/internal/core"

	_ "modernc.org/sqlite"
)

// Repository owns the SQLite database and hands out the per-aggregate
// repositories the engine consumes.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Records() *RecordRepo         { return &RecordRepo{r} }
func (r *Repository) Snapshots() *SnapshotRepo     { return &SnapshotRepo{r} }
func (r *Repository) Completions() *CompletionRepo { return &CompletionRepo{r} }
func (r *Repository) Transactions() *TxnRepo       { return &TxnRepo{r} }
func (r *Repository) Allocations() *AllocationRepo { return &AllocationRepo{r} }
func (r *Repository) Goals() *GoalRepo             { return &GoalRepo{r} }
func (r *Repository) Assets() *AssetRepo           { return &AssetRepo{r} }
func (r *Repository) Plans() *PlanRepo             { return &PlanRepo{r} }

type txKey struct{}

// RunAtomic executes fn inside one SQL transaction. Repository calls
// made with the context fn receives join that transaction, so a
// lifecycle operation's record, snapshot, and completion writes commit
// or roll back as a unit.
func (r *Repository) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the active transaction when running under RunAtomic, the
// plain connection otherwise.
func (r *Repository) q(ctx context.Context) execer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return r.db
}

// RecordRepo persists execution records.
type RecordRepo struct{ r *Repository }

const recordColumns = "id, plan_id, month_label, status, started_at, closed_at, created_at, updated_at"

func scanRecord(row interface{ Scan(...any) error }) (*core.ExecutionRecord, error) {
	var rec core.ExecutionRecord
	err := row.Scan(&rec.ID, &rec.PlanID, &rec.MonthLabel, &rec.Status,
		&rec.StartedAt, &rec.ClosedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution record: %w", err)
	}
	return &rec, nil
}

func (r *RecordRepo) GetByID(ctx context.Context, id string) (*core.ExecutionRecord, error) {
	return scanRecord(r.r.q(ctx).QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM execution_records WHERE id = ?", id))
}

func (r *RecordRepo) GetByMonth(ctx context.Context, month core.MonthLabel) (*core.ExecutionRecord, error) {
	return scanRecord(r.r.q(ctx).QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM execution_records WHERE month_label = ?", string(month)))
}

func (r *RecordRepo) GetCurrentExecuting(ctx context.Context) (*core.ExecutionRecord, error) {
	return scanRecord(r.r.q(ctx).QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM execution_records WHERE status = ?", string(core.StatusExecuting)))
}

func (r *RecordRepo) ListClosed(ctx context.Context) ([]core.ExecutionRecord, error) {
	rows, err := r.r.q(ctx).QueryContext(ctx,
		"SELECT "+recordColumns+" FROM execution_records WHERE status = ? ORDER BY month_label DESC",
		string(core.StatusClosed))
	if err != nil {
		return nil, fmt.Errorf("list closed records: %w", err)
	}
	defer rows.Close()

	var out []core.ExecutionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *RecordRepo) Upsert(ctx context.Context, rec core.ExecutionRecord) error {
	_, err := r.r.q(ctx).ExecContext(ctx, `
		INSERT INTO execution_records (id, plan_id, month_label, status, started_at, closed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			closed_at = excluded.closed_at,
			updated_at = excluded.updated_at`,
		rec.ID, rec.PlanID, string(rec.MonthLabel), string(rec.Status),
		rec.StartedAt, rec.ClosedAt, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert execution record: %w", err)
	}
	return nil
}

func (r *RecordRepo) Close(ctx context.Context, id string, closedAt int64) error {
	return r.setStatus(ctx, id, core.StatusClosed, "closed_at = ?", closedAt)
}

func (r *RecordRepo) Reopen(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, core.StatusExecuting, "closed_at = 0")
}

func (r *RecordRepo) RevertToDraft(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, core.StatusDraft, "started_at = 0")
}

func (r *RecordRepo) setStatus(ctx context.Context, id string, status core.ExecutionStatus, extra string, extraArgs ...any) error {
	args := append([]any{string(status)}, extraArgs...)
	args = append(args, id)
	res, err := r.r.q(ctx).ExecContext(ctx,
		"UPDATE execution_records SET status = ?, "+extra+", updated_at = CAST(unixepoch('subsec') * 1000 AS INTEGER) WHERE id = ?",
		args...)
	if err != nil {
		return fmt.Errorf("update record %s to %s: %w", id, status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update record %s: no such record", id)
	}
	return nil
}

// SnapshotRepo persists the frozen per-goal requirement rows.
type SnapshotRepo struct{ r *Repository }

func (r *SnapshotRepo) GetByRecord(ctx context.Context, executionID string) ([]core.ExecutionSnapshot, error) {
	rows, err := r.r.q(ctx).QueryContext(ctx, `
		SELECT id, execution_id, goal_id, goal_name, currency, target_amount,
		       current_total_at_start, required_amount, is_protected, is_skipped, custom_amount
		FROM execution_snapshots WHERE execution_id = ? ORDER BY goal_name`, executionID)
	if err != nil {
		return nil, fmt.Errorf("load snapshots for %s: %w", executionID, err)
	}
	defer rows.Close()

	var out []core.ExecutionSnapshot
	for rows.Next() {
		var s core.ExecutionSnapshot
		var custom sql.NullFloat64
		if err := rows.Scan(&s.ID, &s.ExecutionID, &s.GoalID, &s.GoalName, &s.Currency,
			&s.TargetAmount, &s.CurrentTotalAtStart, &s.RequiredAmount,
			&s.IsProtected, &s.IsSkipped, &custom); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if custom.Valid {
			v := custom.Float64
			s.CustomAmount = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SnapshotRepo) ReplaceForRecord(ctx context.Context, executionID string, snaps []core.ExecutionSnapshot) error {
	q := r.r.q(ctx)
	if _, err := q.ExecContext(ctx,
		"DELETE FROM execution_snapshots WHERE execution_id = ?", executionID); err != nil {
		return fmt.Errorf("clear snapshots for %s: %w", executionID, err)
	}
	for _, s := range snaps {
		var custom any
		if s.CustomAmount != nil {
			custom = *s.CustomAmount
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO execution_snapshots
				(id, execution_id, goal_id, goal_name, currency, target_amount,
				 current_total_at_start, required_amount, is_protected, is_skipped, custom_amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, executionID, s.GoalID, s.GoalName, s.Currency, s.TargetAmount,
			s.CurrentTotalAtStart, s.RequiredAmount, s.IsProtected, s.IsSkipped, custom); err != nil {
			return fmt.Errorf("insert snapshot for goal %s: %w", s.GoalID, err)
		}
	}
	return nil
}

func (r *SnapshotRepo) DeleteByRecord(ctx context.Context, executionID string) error {
	if _, err := r.r.q(ctx).ExecContext(ctx,
		"DELETE FROM execution_snapshots WHERE execution_id = ?", executionID); err != nil {
		return fmt.Errorf("delete snapshots for %s: %w", executionID, err)
	}
	return nil
}

// CompletionRepo persists the immutable completion rows.
type CompletionRepo struct{ r *Repository }

const completionColumns = "id, execution_id, goal_id, goal_name, required_amount, actual_amount, completed_at, can_undo_until"

func (r *CompletionRepo) scanRows(rows *sql.Rows) ([]core.CompletedExecution, error) {
	defer rows.Close()
	var out []core.CompletedExecution
	for rows.Next() {
		var c core.CompletedExecution
		if err := rows.Scan(&c.ID, &c.ExecutionID, &c.GoalID, &c.GoalName,
			&c.RequiredAmount, &c.ActualAmount, &c.CompletedAt, &c.CanUndoUntil); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CompletionRepo) GetByRecord(ctx context.Context, executionID string) ([]core.CompletedExecution, error) {
	rows, err := r.r.q(ctx).QueryContext(ctx,
		"SELECT "+completionColumns+" FROM completed_executions WHERE execution_id = ? ORDER BY goal_name",
		executionID)
	if err != nil {
		return nil, fmt.Errorf("load completions for %s: %w", executionID, err)
	}
	return r.scanRows(rows)
}

func (r *CompletionRepo) GetUndoable(ctx context.Context, nowMillis int64) ([]core.CompletedExecution, error) {
	rows, err := r.r.q(ctx).QueryContext(ctx,
		"SELECT "+completionColumns+" FROM completed_executions WHERE can_undo_until >= ? ORDER BY completed_at DESC",
		nowMillis)
	if err != nil {
		return nil, fmt.Errorf("load undoable completions: %w", err)
	}
	return r.scanRows(rows)
}

func (r *CompletionRepo) ReplaceForRecord(ctx context.Context, executionID string, rowsIn []core.CompletedExecution) error {
	q := r.r.q(ctx)
	if _, err := q.ExecContext(ctx,
		"DELETE FROM completed_executions WHERE execution_id = ?", executionID); err != nil {
		return fmt.Errorf("clear completions for %s: %w", executionID, err)
	}
	for _, c := range rowsIn {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO completed_executions
				(id, execution_id, goal_id, goal_name, required_amount, actual_amount, completed_at, can_undo_until)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, executionID, c.GoalID, c.GoalName,
			c.RequiredAmount, c.ActualAmount, c.CompletedAt, c.CanUndoUntil); err != nil {
			return fmt.Errorf("insert completion for goal %s: %w", c.GoalID, err)
		}
	}
	return nil
}

func (r *CompletionRepo) DeleteByRecord(ctx context.Context, executionID string) error {
	if _, err := r.r.q(ctx).ExecContext(ctx,
		"DELETE FROM completed_executions WHERE execution_id = ?", executionID); err != nil {
		return fmt.Errorf("delete completions for %s: %w", executionID, err)
	}
	return nil
}

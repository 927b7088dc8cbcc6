package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hodl/internal/core"
)

// TxnRepo persists the append-only transaction ledger.
type TxnRepo struct{ r *Repository }

func (r *TxnRepo) ListAll(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.r.q(ctx).QueryContext(ctx,
		"SELECT id, asset_id, amount, date_millis, source FROM transactions ORDER BY date_millis, id")
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		if err := rows.Scan(&t.ID, &t.AssetID, &t.Amount, &t.DateMillis, &t.Source); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TxnRepo) Append(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	res, err := r.r.q(ctx).ExecContext(ctx,
		"INSERT INTO transactions (asset_id, amount, date_millis, source) VALUES (?, ?, ?, ?)",
		t.AssetID, t.Amount, t.DateMillis, string(t.Source))
	if err != nil {
		return 0, fmt.Errorf("append transaction: %w", err)
	}
	return res.LastInsertId()
}

// AllocationRepo persists the time-versioned allocation history.
type AllocationRepo struct{ r *Repository }

func (r *AllocationRepo) ListAll(ctx context.Context) ([]core.AllocationEntry, error) {
	rows, err := r.r.q(ctx).QueryContext(ctx, `
		SELECT id, asset_id, goal_id, amount, month_label, timestamp_millis, created_at_millis
		FROM allocation_history ORDER BY timestamp_millis, created_at_millis, id`)
	if err != nil {
		return nil, fmt.Errorf("list allocation history: %w", err)
	}
	defer rows.Close()

	var out []core.AllocationEntry
	for rows.Next() {
		var a core.AllocationEntry
		if err := rows.Scan(&a.ID, &a.AssetID, &a.GoalID, &a.Amount,
			&a.MonthLabel, &a.Timestamp, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan allocation entry: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AllocationRepo) Append(ctx context.Context, a core.AllocationEntry) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	res, err := r.r.q(ctx).ExecContext(ctx, `
		INSERT INTO allocation_history (asset_id, goal_id, amount, month_label, timestamp_millis, created_at_millis)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.AssetID, a.GoalID, a.Amount, string(a.MonthLabel), a.Timestamp, a.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("append allocation entry: %w", err)
	}
	return res.LastInsertId()
}

// GoalRepo persists savings goals.
type GoalRepo struct{ r *Repository }

const goalColumns = "id, name, currency, target_amount, current_total, target_month, active"

func (r *GoalRepo) scanRows(rows *sql.Rows) ([]core.Goal, error) {
	defer rows.Close()
	var out []core.Goal
	for rows.Next() {
		var g core.Goal
		if err := rows.Scan(&g.ID, &g.Name, &g.Currency,
			&g.TargetAmount, &g.CurrentTotal, &g.TargetMonth, &g.Active); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *GoalRepo) ListActive(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.r.q(ctx).QueryContext(ctx,
		"SELECT "+goalColumns+" FROM goals WHERE active = 1 ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}
	return r.scanRows(rows)
}

func (r *GoalRepo) ListAll(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.r.q(ctx).QueryContext(ctx,
		"SELECT "+goalColumns+" FROM goals ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return r.scanRows(rows)
}

func (r *GoalRepo) Upsert(ctx context.Context, g core.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	_, err := r.r.q(ctx).ExecContext(ctx, `
		INSERT INTO goals (id, name, currency, target_amount, current_total, target_month, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			target_amount = excluded.target_amount,
			current_total = excluded.current_total,
			target_month = excluded.target_month,
			active = excluded.active`,
		g.ID, g.Name, g.Currency, g.TargetAmount, g.CurrentTotal, string(g.TargetMonth), g.Active)
	if err != nil {
		return fmt.Errorf("upsert goal %s: %w", g.ID, err)
	}
	return nil
}

// AssetRepo persists tracked holdings.
type AssetRepo struct{ r *Repository }

func (r *AssetRepo) ListAll(ctx context.Context) ([]core.Asset, error) {
	rows, err := r.r.q(ctx).QueryContext(ctx,
		"SELECT id, symbol, name, address FROM assets ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []core.Asset
	for rows.Next() {
		var a core.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name, &a.Address); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AssetRepo) Upsert(ctx context.Context, a core.Asset) error {
	_, err := r.r.q(ctx).ExecContext(ctx, `
		INSERT INTO assets (id, symbol, name, address)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			symbol = excluded.symbol,
			name = excluded.name,
			address = excluded.address`,
		a.ID, a.Symbol, a.Name, a.Address)
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", a.ID, err)
	}
	return nil
}

// PlanRepo persists the per-(goal, month) requirement rows.
type PlanRepo struct{ r *Repository }

func (r *PlanRepo) GetByMonth(ctx context.Context, month core.MonthLabel) ([]core.MonthlyGoalPlan, error) {
	rows, err := r.r.q(ctx).QueryContext(ctx, `
		SELECT id, goal_id, goal_name, month_label, required_monthly, remaining_amount,
		       months_remaining, status, custom_amount, is_protected, is_skipped, updated_at
		FROM monthly_goal_plans WHERE month_label = ? ORDER BY goal_name`, string(month))
	if err != nil {
		return nil, fmt.Errorf("load plans for %s: %w", month, err)
	}
	defer rows.Close()

	var out []core.MonthlyGoalPlan
	for rows.Next() {
		var p core.MonthlyGoalPlan
		var custom sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.GoalID, &p.GoalName, &p.MonthLabel,
			&p.RequiredMonthly, &p.RemainingAmount, &p.MonthsRemaining, &p.Status,
			&custom, &p.IsProtected, &p.IsSkipped, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		if custom.Valid {
			v := custom.Float64
			p.CustomAmount = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PlanRepo) SaveAll(ctx context.Context, plans []core.MonthlyGoalPlan) error {
	var errs []error
	for _, p := range plans {
		var custom any
		if p.CustomAmount != nil {
			custom = *p.CustomAmount
		}
		_, err := r.r.q(ctx).ExecContext(ctx, `
			INSERT INTO monthly_goal_plans
				(id, goal_id, goal_name, month_label, required_monthly, remaining_amount,
				 months_remaining, status, custom_amount, is_protected, is_skipped, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (goal_id, month_label) DO UPDATE SET
				goal_name = excluded.goal_name,
				required_monthly = excluded.required_monthly,
				remaining_amount = excluded.remaining_amount,
				months_remaining = excluded.months_remaining,
				status = excluded.status,
				custom_amount = excluded.custom_amount,
				is_protected = excluded.is_protected,
				is_skipped = excluded.is_skipped,
				updated_at = excluded.updated_at`,
			p.ID, p.GoalID, p.GoalName, string(p.MonthLabel), p.RequiredMonthly,
			p.RemainingAmount, p.MonthsRemaining, string(p.Status), custom,
			p.IsProtected, p.IsSkipped, p.UpdatedAt)
		if err != nil {
			errs = append(errs, fmt.Errorf("save plan for goal %s: %w", p.GoalID, err))
		}
	}
	return errors.Join(errs...)
}

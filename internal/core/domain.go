package core

import (
	"errors"
	"strings"
)

const (
	SourceManual  TransactionSource = "MANUAL"
	SourceOnChain TransactionSource = "ON_CHAIN"
	SourceImport  TransactionSource = "IMPORT"
)

const (
	StatusDraft     ExecutionStatus = "DRAFT"
	StatusExecuting ExecutionStatus = "EXECUTING"
	StatusClosed    ExecutionStatus = "CLOSED"
)

const (
	PlanOnTrack   PlanStatus = "ON_TRACK"
	PlanBehind    PlanStatus = "BEHIND"
	PlanCompleted PlanStatus = "COMPLETED"
)

type (
	TransactionSource string

	ExecutionStatus string

	PlanStatus string

	// Goal is a savings target denominated in a single asset currency.
	Goal struct {
		ID           string
		Name         string
		Currency     string
		TargetAmount float64
		CurrentTotal float64
		TargetMonth  MonthLabel // optional deadline; empty means open-ended
		Active       bool
	}

	// Asset is a tracked holding (a coin, token, or account).
	Asset struct {
		ID      string
		Symbol  string
		Name    string
		Address string // optional on-chain address
	}

	// Transaction is an append-only ledger entry for one asset.
	// Amount is signed; deposits positive, withdrawals negative.
	Transaction struct {
		ID         int64
		AssetID    string
		Amount     float64
		DateMillis int64
		Source     TransactionSource
	}

	// AllocationEntry is one time-versioned earmarking of an asset's
	// balance toward a goal. Entries are never updated in place; the
	// effective target at an instant is the latest entry strictly
	// before the cutoff, tie-broken by CreatedAt.
	AllocationEntry struct {
		ID         int64
		AssetID    string
		GoalID     string
		Amount     float64
		MonthLabel MonthLabel
		Timestamp  int64
		CreatedAt  int64
	}

	// ExecutionRecord tracks one calendar month's execution period.
	// At most one record may be EXECUTING across the whole system.
	ExecutionRecord struct {
		ID         string
		PlanID     string
		MonthLabel MonthLabel
		Status     ExecutionStatus
		StartedAt  int64 // unix millis, 0 = unset
		ClosedAt   int64 // unix millis, 0 = unset
		CreatedAt  int64
		UpdatedAt  int64
	}

	// ExecutionSnapshot freezes one goal's funding requirement at the
	// instant its execution period started. Immutable once written,
	// removed only by undo-start.
	ExecutionSnapshot struct {
		ID                  string
		ExecutionID         string
		GoalID              string
		GoalName            string
		Currency            string
		TargetAmount        float64
		CurrentTotalAtStart float64
		RequiredAmount      float64
		IsProtected         bool
		IsSkipped           bool
		CustomAmount        *float64
	}

	// CompletedExecution is the immutable result of closing an
	// execution, one row per (record, goal).
	CompletedExecution struct {
		ID             string
		ExecutionID    string
		GoalID         string
		GoalName       string
		RequiredAmount float64
		ActualAmount   float64
		CompletedAt    int64
		CanUndoUntil   int64
	}

	// MonthlyGoalPlan is the per-(goal, month) requirement record.
	// Computed fields are overwritten on every sync; override fields
	// survive syncs and are only cleared explicitly.
	MonthlyGoalPlan struct {
		ID              string
		GoalID          string
		GoalName        string
		MonthLabel      MonthLabel
		RequiredMonthly float64
		RemainingAmount float64
		MonthsRemaining int
		Status          PlanStatus
		CustomAmount    *float64
		IsProtected     bool
		IsSkipped       bool
		UpdatedAt       int64
	}

	// ExecutionGoalProgress is one goal's funding progress within the
	// active execution window.
	ExecutionGoalProgress struct {
		GoalID        string
		GoalName      string
		Currency      string
		PlannedAmount float64
		Contributed   float64
		Percent       int
		Fulfilled     bool
		IsSkipped     bool
	}

	// ExecutionSession is the produced surface for one month: the
	// record plus per-goal progress.
	ExecutionSession struct {
		Record   ExecutionRecord
		Progress []ExecutionGoalProgress
	}

	// PlanHistoryRow summarizes one closed month.
	PlanHistoryRow struct {
		MonthLabel    MonthLabel
		TotalRequired float64
		TotalActual   float64
		CompletedAt   int64
		CanUndo       bool
	}
)

var (
	ErrInvalidMonthLabel = errors.New("invalid month label")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyGoalName     = errors.New("empty goal name")
	ErrEmptyCurrency     = errors.New("empty currency")
)

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyGoalName
	}
	if strings.TrimSpace(g.Currency) == "" {
		return ErrEmptyCurrency
	}
	if g.TargetAmount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.AssetID) == "" {
		return errors.New("empty asset id")
	}
	if t.DateMillis <= 0 {
		return errors.New("missing transaction date")
	}
	switch t.Source {
	case SourceManual, SourceOnChain, SourceImport:
	default:
		return errors.New("unknown transaction source")
	}
	return nil
}

func (a AllocationEntry) Validate() error {
	if strings.TrimSpace(a.AssetID) == "" {
		return errors.New("empty asset id")
	}
	if strings.TrimSpace(a.GoalID) == "" {
		return errors.New("empty goal id")
	}
	if a.Amount < 0 {
		return ErrInvalidAmount
	}
	return a.MonthLabel.Validate()
}

// EffectiveRequired resolves a snapshot's planned amount for progress
// reporting: an explicit custom amount wins over the frozen requirement.
func (s ExecutionSnapshot) EffectiveRequired() float64 {
	if s.CustomAmount != nil {
		return *s.CustomAmount
	}
	return s.RequiredAmount
}

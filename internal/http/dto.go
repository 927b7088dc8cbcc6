// API payload shapes. Domain types stay tag-free; this file owns the
// JSON field names the clients see.
package http

import "hodl/internal/core"

type recordPayload struct {
	ID         string `json:"id"`
	PlanID     string `json:"planId"`
	MonthLabel string `json:"monthLabel"`
	Status     string `json:"status"`
	StartedAt  int64  `json:"startedAt,omitempty"`
	ClosedAt   int64  `json:"closedAt,omitempty"`
}

func toRecordPayload(rec core.ExecutionRecord) recordPayload {
	return recordPayload{
		ID:         rec.ID,
		PlanID:     rec.PlanID,
		MonthLabel: rec.MonthLabel.String(),
		Status:     string(rec.Status),
		StartedAt:  rec.StartedAt,
		ClosedAt:   rec.ClosedAt,
	}
}

type progressPayload struct {
	GoalID        string  `json:"goalId"`
	GoalName      string  `json:"goalName"`
	Currency      string  `json:"currency"`
	PlannedAmount float64 `json:"plannedAmount"`
	Contributed   float64 `json:"contributed"`
	Percent       int     `json:"percent"`
	Fulfilled     bool    `json:"fulfilled"`
	IsSkipped     bool    `json:"isSkipped"`
}

type sessionPayload struct {
	Record   recordPayload     `json:"record"`
	Progress []progressPayload `json:"progress"`
}

func toSessionPayload(sess core.ExecutionSession) sessionPayload {
	out := sessionPayload{
		Record:   toRecordPayload(sess.Record),
		Progress: make([]progressPayload, 0, len(sess.Progress)),
	}
	for _, p := range sess.Progress {
		out.Progress = append(out.Progress, progressPayload{
			GoalID:        p.GoalID,
			GoalName:      p.GoalName,
			Currency:      p.Currency,
			PlannedAmount: p.PlannedAmount,
			Contributed:   p.Contributed,
			Percent:       p.Percent,
			Fulfilled:     p.Fulfilled,
			IsSkipped:     p.IsSkipped,
		})
	}
	return out
}

type completionPayload struct {
	ID             string  `json:"id"`
	GoalID         string  `json:"goalId"`
	GoalName       string  `json:"goalName"`
	RequiredAmount float64 `json:"requiredAmount"`
	ActualAmount   float64 `json:"actualAmount"`
	CompletedAt    int64   `json:"completedAt"`
	CanUndoUntil   int64   `json:"canUndoUntil"`
}

func toCompletionPayloads(rows []core.CompletedExecution) []completionPayload {
	out := make([]completionPayload, 0, len(rows))
	for _, c := range rows {
		out = append(out, completionPayload{
			ID:             c.ID,
			GoalID:         c.GoalID,
			GoalName:       c.GoalName,
			RequiredAmount: c.RequiredAmount,
			ActualAmount:   c.ActualAmount,
			CompletedAt:    c.CompletedAt,
			CanUndoUntil:   c.CanUndoUntil,
		})
	}
	return out
}

type historyPayload struct {
	MonthLabel    string  `json:"monthLabel"`
	TotalRequired float64 `json:"totalRequired"`
	TotalActual   float64 `json:"totalActual"`
	CompletedAt   int64   `json:"completedAt"`
	CanUndo       bool    `json:"canUndo"`
}

func toHistoryPayloads(rows []core.PlanHistoryRow) []historyPayload {
	out := make([]historyPayload, 0, len(rows))
	for _, h := range rows {
		out = append(out, historyPayload{
			MonthLabel:    h.MonthLabel.String(),
			TotalRequired: h.TotalRequired,
			TotalActual:   h.TotalActual,
			CompletedAt:   h.CompletedAt,
			CanUndo:       h.CanUndo,
		})
	}
	return out
}

type planPayload struct {
	ID              string   `json:"id"`
	GoalID          string   `json:"goalId"`
	GoalName        string   `json:"goalName"`
	MonthLabel      string   `json:"monthLabel"`
	RequiredMonthly float64  `json:"requiredMonthly"`
	RemainingAmount float64  `json:"remainingAmount"`
	MonthsRemaining int      `json:"monthsRemaining"`
	Status          string   `json:"status"`
	CustomAmount    *float64 `json:"customAmount,omitempty"`
	IsProtected     bool     `json:"isProtected"`
	IsSkipped       bool     `json:"isSkipped"`
}

func toPlanPayloads(plans []core.MonthlyGoalPlan) []planPayload {
	out := make([]planPayload, 0, len(plans))
	for _, p := range plans {
		out = append(out, planPayload{
			ID:              p.ID,
			GoalID:          p.GoalID,
			GoalName:        p.GoalName,
			MonthLabel:      p.MonthLabel.String(),
			RequiredMonthly: p.RequiredMonthly,
			RemainingAmount: p.RemainingAmount,
			MonthsRemaining: p.MonthsRemaining,
			Status:          string(p.Status),
			CustomAmount:    p.CustomAmount,
			IsProtected:     p.IsProtected,
			IsSkipped:       p.IsSkipped,
		})
	}
	return out
}

type transactionPayload struct {
	ID         int64   `json:"id,omitempty"`
	AssetID    string  `json:"assetId"`
	Amount     float64 `json:"amount"`
	DateMillis int64   `json:"dateMillis"`
	Source     string  `json:"source"`
}

func (p transactionPayload) toDomain() core.Transaction {
	return core.Transaction{
		ID:         p.ID,
		AssetID:    p.AssetID,
		Amount:     p.Amount,
		DateMillis: p.DateMillis,
		Source:     core.TransactionSource(p.Source),
	}
}

type allocationPayload struct {
	ID         int64   `json:"id,omitempty"`
	AssetID    string  `json:"assetId"`
	GoalID     string  `json:"goalId"`
	Amount     float64 `json:"amount"`
	MonthLabel string  `json:"monthLabel"`
	Timestamp  int64   `json:"timestamp"`
	CreatedAt  int64   `json:"createdAt,omitempty"`
}

func (p allocationPayload) toDomain() core.AllocationEntry {
	return core.AllocationEntry{
		ID:         p.ID,
		AssetID:    p.AssetID,
		GoalID:     p.GoalID,
		Amount:     p.Amount,
		MonthLabel: core.MonthLabel(p.MonthLabel),
		Timestamp:  p.Timestamp,
		CreatedAt:  p.CreatedAt,
	}
}

type goalPayload struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name"`
	Currency     string  `json:"currency"`
	TargetAmount float64 `json:"targetAmount"`
	CurrentTotal float64 `json:"currentTotal"`
	TargetMonth  string  `json:"targetMonth,omitempty"`
	Active       bool    `json:"active"`
}

func (p goalPayload) toDomain() core.Goal {
	return core.Goal{
		ID:           p.ID,
		Name:         p.Name,
		Currency:     p.Currency,
		TargetAmount: p.TargetAmount,
		CurrentTotal: p.CurrentTotal,
		TargetMonth:  core.MonthLabel(p.TargetMonth),
		Active:       p.Active,
	}
}

type assetPayload struct {
	ID      string `json:"id,omitempty"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

func (p assetPayload) toDomain() core.Asset {
	return core.Asset{
		ID:      p.ID,
		Symbol:  p.Symbol,
		Name:    p.Name,
		Address: p.Address,
	}
}

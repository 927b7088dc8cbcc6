package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hodl/internal/core"
)

// PlanRequirement is one goal's computed monthly requirement, the
// input side of plan reconciliation.
type PlanRequirement struct {
	GoalID          string
	GoalName        string
	RequiredMonthly float64
	RemainingAmount float64
	MonthsRemaining int
	Status          core.PlanStatus
}

// PlanService reconciles computed monthly requirements with persisted
// user overrides. It owns MonthlyGoalPlan rows; it never writes goals,
// transactions, or allocation history.
type PlanService struct {
	plans MonthlyPlanRepository
	goals GoalRepository
	flex  FlexStrategy
	now   func() time.Time
}

func NewPlanService(plans MonthlyPlanRepository, goals GoalRepository) *PlanService {
	return &PlanService{
		plans: plans,
		goals: goals,
		flex:  ProportionalFlexStrategy{},
		now:   time.Now,
	}
}

// ComputeRequirements derives each active goal's requirement for the
// given month: remaining amount spread evenly over the months left
// until the goal's target month.
func (s *PlanService) ComputeRequirements(ctx context.Context, month core.MonthLabel) ([]PlanRequirement, error) {
	goals, err := s.goals.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}

	reqs := make([]PlanRequirement, 0, len(goals))
	for _, g := range goals {
		remaining := g.TargetAmount - g.CurrentTotal
		if remaining < 0 {
			remaining = 0
		}

		monthsLeft := month.MonthsUntil(g.TargetMonth) + 1 // current month counts
		if g.TargetMonth == "" {
			monthsLeft = 1
		}

		status := core.PlanOnTrack
		switch {
		case remaining == 0:
			status = core.PlanCompleted
		case g.TargetMonth != "" && g.TargetMonth.Time().Before(month.Time()):
			status = core.PlanBehind
		}

		reqs = append(reqs, PlanRequirement{
			GoalID:          g.ID,
			GoalName:        g.Name,
			RequiredMonthly: remaining / float64(monthsLeft),
			RemainingAmount: remaining,
			MonthsRemaining: monthsLeft,
			Status:          status,
		})
	}
	return reqs, nil
}

// SyncPlans merges incoming computed requirements into the persisted
// plans for the month. Computed fields are overwritten every time;
// override fields (customAmount, isProtected, isSkipped) survive the
// sync and are only cleared explicitly.
func (s *PlanService) SyncPlans(ctx context.Context, month core.MonthLabel, reqs []PlanRequirement) ([]core.MonthlyGoalPlan, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.plans.GetByMonth(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load plans for %s: %w", month, err)
	}
	byGoal := make(map[string]core.MonthlyGoalPlan, len(existing))
	for _, p := range existing {
		byGoal[p.GoalID] = p
	}

	nowMillis := s.now().UnixMilli()
	merged := make([]core.MonthlyGoalPlan, 0, len(reqs))
	for _, req := range reqs {
		plan, ok := byGoal[req.GoalID]
		if !ok {
			plan = core.MonthlyGoalPlan{
				ID:         uuid.NewString(),
				GoalID:     req.GoalID,
				MonthLabel: month,
			}
		}

		plan.GoalName = req.GoalName
		plan.RequiredMonthly = req.RequiredMonthly
		plan.RemainingAmount = req.RemainingAmount
		plan.MonthsRemaining = req.MonthsRemaining
		plan.Status = req.Status
		plan.UpdatedAt = nowMillis

		merged = append(merged, plan)
	}

	if err := s.plans.SaveAll(ctx, merged); err != nil {
		return nil, fmt.Errorf("save plans for %s: %w", month, err)
	}

	slog.InfoContext(ctx, "Monthly plans synced",
		"month", month.String(),
		"incoming", len(reqs),
		"preserved_overrides", len(existing))

	return merged, nil
}

// Resync recomputes requirements from current goal state and runs a
// sync. Called whenever ledger inputs change.
func (s *PlanService) Resync(ctx context.Context, month core.MonthLabel) ([]core.MonthlyGoalPlan, error) {
	reqs, err := s.ComputeRequirements(ctx, month)
	if err != nil {
		return nil, err
	}
	return s.SyncPlans(ctx, month, reqs)
}

// ApplyFlexAdjustment redistributes a global multiplier across the
// month's non-protected, non-skipped plans and persists the result.
func (s *PlanService) ApplyFlexAdjustment(ctx context.Context, month core.MonthLabel, adjustment float64) ([]core.MonthlyGoalPlan, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	if adjustment < 0 {
		return nil, fmt.Errorf("%w: flex adjustment %v", core.ErrInvalidAmount, adjustment)
	}

	plans, err := s.plans.GetByMonth(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load plans for %s: %w", month, err)
	}

	adjusted := s.flex.Apply(plans, adjustment)
	for i := range adjusted {
		adjusted[i].UpdatedAt = s.now().UnixMilli()
	}

	if err := s.plans.SaveAll(ctx, adjusted); err != nil {
		return nil, fmt.Errorf("save adjusted plans for %s: %w", month, err)
	}

	slog.InfoContext(ctx, "Flex adjustment applied",
		"month", month.String(),
		"adjustment", adjustment,
		"plans", len(adjusted))

	return adjusted, nil
}

// GetPlans returns the persisted plans for a month.
func (s *PlanService) GetPlans(ctx context.Context, month core.MonthLabel) ([]core.MonthlyGoalPlan, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	return s.plans.GetByMonth(ctx, month)
}

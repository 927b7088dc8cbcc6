// This file implements the Strategy Pattern for flexible-budget
// redistribution. A flex adjustment is a global multiplier applied to
// the month's non-protected, non-skipped plans; protected and skipped
// plans pass through untouched.
package engine

import "hodl/internal/core"

// FlexStrategy redistributes a flex multiplier across a month's plans.
type FlexStrategy interface {
	// Apply returns the adjusted plans. Implementations must not
	// mutate the input slice.
	Apply(plans []core.MonthlyGoalPlan, adjustment float64) []core.MonthlyGoalPlan
}

// ProportionalFlexStrategy scales every eligible plan's base
// requirement by the multiplier, materialized as a custom amount.
//
// A multiplier of exactly 1.0 clears the custom amount instead of
// writing an override equal to the base: "no adjustment" means the
// plan keeps tracking the recomputed base requirement in later syncs.
type ProportionalFlexStrategy struct{}

func (ProportionalFlexStrategy) Apply(plans []core.MonthlyGoalPlan, adjustment float64) []core.MonthlyGoalPlan {
	out := make([]core.MonthlyGoalPlan, len(plans))
	copy(out, plans)

	for i := range out {
		if out[i].IsProtected || out[i].IsSkipped {
			continue
		}
		if adjustment == 1.0 {
			out[i].CustomAmount = nil
			continue
		}
		custom := out[i].RequiredMonthly * adjustment
		out[i].CustomAmount = &custom
	}
	return out
}

// Package engine implements the monthly execution and
// allocation-funding engine: proportional funding distribution,
// progress replay over the transaction and allocation ledgers, the
// execution lifecycle state machine, and monthly plan reconciliation.
package engine

// FundedPortion is one goal's share of an asset's balance after
// proportional distribution.
type FundedPortion struct {
	GoalID string
	Target float64
	Funded float64
}

// DistributeFunding computes how a single asset's balance covers its
// competing goal allocations. If the asset is underfunded relative to
// the sum of its targets, every goal's credit shrinks proportionally;
// if overfunded, every goal gets 100% of its target and the surplus
// stays unallocated.
//
// The balance is floored at 0 before distribution; historical data may
// contain negative running balances.
func DistributeFunding(balance float64, targets []FundedPortion) []FundedPortion {
	if balance < 0 {
		balance = 0
	}

	var total float64
	for _, t := range targets {
		if t.Target > 0 {
			total += t.Target
		}
	}

	out := make([]FundedPortion, len(targets))
	copy(out, targets)

	if total == 0 || balance == 0 {
		for i := range out {
			out[i].Funded = 0
		}
		return out
	}

	ratio := balance / total
	if ratio > 1 {
		ratio = 1
	}

	for i := range out {
		if out[i].Target <= 0 {
			out[i].Funded = 0
			continue
		}
		out[i].Funded = out[i].Target * ratio
	}
	return out
}

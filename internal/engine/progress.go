package engine

import (
	"math"
	"sort"

	"hodl/internal/core"
)

// ProgressInput carries everything the replay needs. Now is injectable
// so exact-boundary behavior can be tested with literal millisecond
// timestamps.
type ProgressInput struct {
	Snapshots    []core.ExecutionSnapshot
	Transactions []core.Transaction
	Allocations  []core.AllocationEntry
	StartedAt    int64 // unix millis; 0 means the period never started
	Now          int64 // unix millis
}

// ComputeProgress replays the manual transaction ledger and the
// allocation history against two points in time (period start and now)
// and attributes the funding delta to the execution window.
//
// Balances are replayed from MANUAL transactions only. On-chain
// balances feed the live dashboard valuation but are deliberately
// absent from this historical replay; see the rates package.
//
// Boundary rules, all in unix millis:
//   - baseline balance: transactions with date <  StartedAt
//   - current balance:  transactions with date <= Now
//   - baseline targets: allocation entries with timestamp < StartedAt
//   - current targets:  allocation entries with timestamp <= Now
//
// So a deposit stamped exactly at StartedAt counts toward the window,
// and one stamped a millisecond earlier cancels out via the baseline.
func ComputeProgress(in ProgressInput) []core.ExecutionGoalProgress {
	out := make([]core.ExecutionGoalProgress, 0, len(in.Snapshots))

	var baselineFunded, currentFunded map[string]float64
	if in.StartedAt > 0 {
		manual := filterManual(in.Transactions, in.Now)

		baselineBalances := balancesBefore(manual, in.StartedAt)
		currentBalances := balancesThrough(manual, in.Now)

		baselineFunded = fundedPerGoal(effectiveTargets(in.Allocations, in.StartedAt), baselineBalances)
		currentFunded = fundedPerGoal(effectiveTargets(in.Allocations, in.Now+1), currentBalances)
	}

	for _, snap := range in.Snapshots {
		planned := snap.EffectiveRequired()

		var contributed float64
		if !snap.IsSkipped && in.StartedAt > 0 {
			contributed = currentFunded[snap.GoalID] - baselineFunded[snap.GoalID]
		}

		out = append(out, core.ExecutionGoalProgress{
			GoalID:        snap.GoalID,
			GoalName:      snap.GoalName,
			Currency:      snap.Currency,
			PlannedAmount: planned,
			Contributed:   contributed,
			Percent:       progressPercent(contributed, planned),
			Fulfilled:     !snap.IsSkipped && contributed >= planned,
			IsSkipped:     snap.IsSkipped,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].GoalName < out[j].GoalName })
	return out
}

// filterManual keeps MANUAL transactions dated at or before now.
func filterManual(txns []core.Transaction, now int64) []core.Transaction {
	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.Source == core.SourceManual && t.DateMillis <= now {
			out = append(out, t)
		}
	}
	return out
}

func balancesBefore(txns []core.Transaction, cutoff int64) map[string]float64 {
	balances := make(map[string]float64)
	for _, t := range txns {
		if t.DateMillis < cutoff {
			balances[t.AssetID] += t.Amount
		}
	}
	return balances
}

func balancesThrough(txns []core.Transaction, cutoff int64) map[string]float64 {
	balances := make(map[string]float64)
	for _, t := range txns {
		if t.DateMillis <= cutoff {
			balances[t.AssetID] += t.Amount
		}
	}
	return balances
}

// effectiveTargets resolves the allocation target per (asset, goal) at
// the cutoff: the latest entry whose timestamp is strictly before the
// cutoff wins, tie-broken by CreatedAt on exact timestamp collisions.
func effectiveTargets(entries []core.AllocationEntry, cutoff int64) map[string]map[string]float64 {
	type winner struct {
		ts, created int64
		amount      float64
	}
	latest := make(map[string]map[string]winner)

	for _, e := range entries {
		if e.Timestamp >= cutoff {
			continue
		}
		byGoal, ok := latest[e.AssetID]
		if !ok {
			byGoal = make(map[string]winner)
			latest[e.AssetID] = byGoal
		}
		cur, exists := byGoal[e.GoalID]
		if !exists || e.Timestamp > cur.ts || (e.Timestamp == cur.ts && e.CreatedAt > cur.created) {
			byGoal[e.GoalID] = winner{ts: e.Timestamp, created: e.CreatedAt, amount: e.Amount}
		}
	}

	out := make(map[string]map[string]float64, len(latest))
	for asset, byGoal := range latest {
		m := make(map[string]float64, len(byGoal))
		for goal, w := range byGoal {
			m[goal] = w.amount
		}
		out[asset] = m
	}
	return out
}

// fundedPerGoal runs the proportional distributor per asset and sums
// funded portions across assets into per-goal totals.
func fundedPerGoal(targets map[string]map[string]float64, balances map[string]float64) map[string]float64 {
	funded := make(map[string]float64)

	// Deterministic asset order; map iteration order must not leak
	// into float accumulation.
	assets := make([]string, 0, len(targets))
	for asset := range targets {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	for _, asset := range assets {
		byGoal := targets[asset]
		goals := make([]string, 0, len(byGoal))
		for g := range byGoal {
			goals = append(goals, g)
		}
		sort.Strings(goals)

		portions := make([]FundedPortion, 0, len(goals))
		for _, g := range goals {
			portions = append(portions, FundedPortion{GoalID: g, Target: byGoal[g]})
		}

		for _, p := range DistributeFunding(balances[asset], portions) {
			funded[p.GoalID] += p.Funded
		}
	}
	return funded
}

// progressPercent reports round(contributed/planned*100) clamped to
// [0,100]; a zero plan reads as 0%, not an error.
func progressPercent(contributed, planned float64) int {
	if planned <= 0 {
		return 0
	}
	pct := int(math.Round(contributed / planned * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

package engine

import (
	"context"
	"sync"

	"hodl/internal/core"
)

// memStore is an in-memory implementation of every repository port,
// shared by the engine tests.
type memStore struct {
	mu          sync.Mutex
	records     map[string]core.ExecutionRecord
	snaps       map[string][]core.ExecutionSnapshot
	completions map[string][]core.CompletedExecution
	txns        []core.Transaction
	allocs      []core.AllocationEntry
	goals       []core.Goal
	plans       map[core.MonthLabel][]core.MonthlyGoalPlan
}

func newMemStore() *memStore {
	return &memStore{
		records:     make(map[string]core.ExecutionRecord),
		snaps:       make(map[string][]core.ExecutionSnapshot),
		completions: make(map[string][]core.CompletedExecution),
		plans:       make(map[core.MonthLabel][]core.MonthlyGoalPlan),
	}
}

func (m *memStore) GetByID(_ context.Context, id string) (*core.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (m *memStore) GetByMonth(_ context.Context, month core.MonthLabel) (*core.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.MonthLabel == month {
			r := rec
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetCurrentExecuting(_ context.Context) (*core.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Status == core.StatusExecuting {
			r := rec
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListClosed(_ context.Context) ([]core.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.ExecutionRecord
	for _, rec := range m.records {
		if rec.Status == core.StatusClosed {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) Upsert(_ context.Context, rec core.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *memStore) Close(_ context.Context, id string, closedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[id]
	rec.Status = core.StatusClosed
	rec.ClosedAt = closedAt
	m.records[id] = rec
	return nil
}

func (m *memStore) Reopen(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[id]
	rec.Status = core.StatusExecuting
	rec.ClosedAt = 0
	m.records[id] = rec
	return nil
}

func (m *memStore) RevertToDraft(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[id]
	rec.Status = core.StatusDraft
	rec.StartedAt = 0
	m.records[id] = rec
	return nil
}

func (m *memStore) GetByRecord(_ context.Context, executionID string) ([]core.ExecutionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.ExecutionSnapshot(nil), m.snaps[executionID]...), nil
}

func (m *memStore) ReplaceForRecord(_ context.Context, executionID string, snaps []core.ExecutionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[executionID] = append([]core.ExecutionSnapshot(nil), snaps...)
	return nil
}

func (m *memStore) DeleteByRecord(_ context.Context, executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, executionID)
	return nil
}

// completionStore adapts the same memStore to the completion port;
// kept separate because method names collide with the snapshot port.
type completionStore struct{ s *memStore }

func (c completionStore) GetByRecord(_ context.Context, executionID string) ([]core.CompletedExecution, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return append([]core.CompletedExecution(nil), c.s.completions[executionID]...), nil
}

func (c completionStore) GetUndoable(_ context.Context, nowMillis int64) ([]core.CompletedExecution, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var out []core.CompletedExecution
	for _, rows := range c.s.completions {
		for _, row := range rows {
			if row.CanUndoUntil >= nowMillis {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (c completionStore) ReplaceForRecord(_ context.Context, executionID string, rows []core.CompletedExecution) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.completions[executionID] = append([]core.CompletedExecution(nil), rows...)
	return nil
}

func (c completionStore) DeleteByRecord(_ context.Context, executionID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	delete(c.s.completions, executionID)
	return nil
}

func (m *memStore) ListAll(_ context.Context) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Transaction(nil), m.txns...), nil
}

// allocStore adapts memStore to the allocation-history port.
type allocStore struct{ s *memStore }

func (a allocStore) ListAll(_ context.Context) ([]core.AllocationEntry, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	return append([]core.AllocationEntry(nil), a.s.allocs...), nil
}

func (m *memStore) ListActive(_ context.Context) ([]core.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Goal
	for _, g := range m.goals {
		if g.Active {
			out = append(out, g)
		}
	}
	return out, nil
}

// planStore adapts memStore to the monthly-plan port.
type planStore struct{ s *memStore }

func (p planStore) GetByMonth(_ context.Context, month core.MonthLabel) ([]core.MonthlyGoalPlan, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return append([]core.MonthlyGoalPlan(nil), p.s.plans[month]...), nil
}

func (p planStore) SaveAll(_ context.Context, plans []core.MonthlyGoalPlan) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	for _, plan := range plans {
		rows := p.s.plans[plan.MonthLabel]
		replaced := false
		for i, row := range rows {
			if row.GoalID == plan.GoalID {
				rows[i] = plan
				replaced = true
				break
			}
		}
		if !replaced {
			rows = append(rows, plan)
		}
		p.s.plans[plan.MonthLabel] = rows
	}
	return nil
}

// eventLog records published lifecycle events.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) PublishExecutionEvent(_ context.Context, event string, month core.MonthLabel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event+":"+month.String())
	return nil
}

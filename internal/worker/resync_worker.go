// Package worker runs the broker-driven background jobs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"hodl/internal/core"
)

// PlanResyncer recomputes the monthly plan rows for one month.
// Satisfied by *engine.PlanService.
type PlanResyncer interface {
	Resync(ctx context.Context, month core.MonthLabel) ([]core.MonthlyGoalPlan, error)
}

// MessageConsumer delivers raw queue messages to a handler until the
// context is cancelled. Satisfied by *amqp.Client.
type MessageConsumer interface {
	Consume(ctx context.Context, handler func(body []byte) error) error
}

// ResyncWorker keeps monthly plans current: every ledger change message
// triggers a plan resync for the month it names. Lifecycle events on
// the same queue are logged and acknowledged.
type ResyncWorker struct {
	consumer MessageConsumer
	plans    PlanResyncer

	mu      sync.Mutex
	running bool
}

func NewResyncWorker(consumer MessageConsumer, plans PlanResyncer) *ResyncWorker {
	return &ResyncWorker{consumer: consumer, plans: plans}
}

// Run consumes messages until ctx is cancelled. Returns an error if
// the worker is already running or the consumer fails to start.
func (w *ResyncWorker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("resync worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	slog.InfoContext(ctx, "Resync worker started")
	return w.consumer.Consume(ctx, func(body []byte) error {
		return w.HandleMessage(ctx, body)
	})
}

// envelope covers both message shapes on the queue; lifecycle events
// carry a non-empty event name, ledger changes only a month.
type envelope struct {
	Event string `json:"event"`
	Month string `json:"month"`
}

func (w *ResyncWorker) HandleMessage(ctx context.Context, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Drop malformed messages instead of requeueing them forever.
		slog.ErrorContext(ctx, "Dropping unparseable message", "error", err)
		return nil
	}

	if env.Event != "" {
		slog.InfoContext(ctx, "Observed execution event", "event", env.Event, "month", env.Month)
		if !strings.HasPrefix(env.Event, "execution.") {
			slog.WarnContext(ctx, "Unknown event type", "event", env.Event)
		}
		return nil
	}

	month := core.MonthLabel(env.Month)
	if err := month.Validate(); err != nil {
		slog.ErrorContext(ctx, "Dropping message with bad month label", "month", env.Month, "error", err)
		return nil
	}

	plans, err := w.plans.Resync(ctx, month)
	if err != nil {
		return fmt.Errorf("resync plans for %s: %w", month, err)
	}

	slog.InfoContext(ctx, "Resynced monthly plans", "month", month.String(), "plans", len(plans))
	return nil
}

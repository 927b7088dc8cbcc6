package worker

import (
	"context"
	"errors"
	"testing"

	"hodl/internal/core"
)

type stubResyncer struct {
	months []core.MonthLabel
	err    error
}

func (s *stubResyncer) Resync(_ context.Context, month core.MonthLabel) ([]core.MonthlyGoalPlan, error) {
	s.months = append(s.months, month)
	return nil, s.err
}

func TestResyncWorker_HandleMessage(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     bool
		wantResyncs int
	}{
		{
			name:        "ledger change triggers resync",
			body:        `{"month":"2025-12"}`,
			wantResyncs: 1,
		},
		{
			name:        "execution event is acknowledged without resync",
			body:        `{"event":"execution.started","month":"2025-12"}`,
			wantResyncs: 0,
		},
		{
			name:        "unknown event is acknowledged",
			body:        `{"event":"goal.renamed","month":"2025-12"}`,
			wantResyncs: 0,
		},
		{
			name:        "malformed body is dropped",
			body:        `{"month":`,
			wantResyncs: 0,
		},
		{
			name:        "bad month label is dropped",
			body:        `{"month":"december"}`,
			wantResyncs: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans := &stubResyncer{}
			w := NewResyncWorker(nil, plans)

			err := w.HandleMessage(context.Background(), []byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(plans.months) != tt.wantResyncs {
				t.Errorf("resync count = %d, want %d", len(plans.months), tt.wantResyncs)
			}
		})
	}
}

func TestResyncWorker_HandleMessage_ResyncErrorRequeues(t *testing.T) {
	plans := &stubResyncer{err: errors.New("db locked")}
	w := NewResyncWorker(nil, plans)

	err := w.HandleMessage(context.Background(), []byte(`{"month":"2025-12"}`))
	if err == nil {
		t.Fatal("HandleMessage() should propagate resync failure so the delivery requeues")
	}
	if plans.months[0] != core.MonthLabel("2025-12") {
		t.Errorf("resynced month = %s, want 2025-12", plans.months[0])
	}
}

type stubConsumer struct {
	bodies [][]byte
}

func (s *stubConsumer) Consume(ctx context.Context, handler func(body []byte) error) error {
	for _, b := range s.bodies {
		if err := handler(b); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestResyncWorker_Run(t *testing.T) {
	plans := &stubResyncer{}
	consumer := &stubConsumer{bodies: [][]byte{
		[]byte(`{"month":"2026-01"}`),
		[]byte(`{"event":"execution.completed","month":"2026-01"}`),
	}}
	w := NewResyncWorker(consumer, plans)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(plans.months) != 1 || plans.months[0] != core.MonthLabel("2026-01") {
		t.Errorf("resynced months = %v, want [2026-01]", plans.months)
	}
}

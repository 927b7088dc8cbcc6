// Package http exposes the tracker's JSON API.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hodl/internal/core"
	applog "hodl/internal/log"
)

// ExecutionService drives the monthly execution lifecycle.
// Satisfied by *engine.Lifecycle.
type ExecutionService interface {
	Start(ctx context.Context, month core.MonthLabel) (*core.ExecutionRecord, error)
	UndoStart(ctx context.Context, recordID string) error
	Complete(ctx context.Context, recordID string) ([]core.CompletedExecution, error)
	Undo(ctx context.Context, recordID string) error
	Session(ctx context.Context, month core.MonthLabel) (*core.ExecutionSession, error)
	History(ctx context.Context) ([]core.PlanHistoryRow, error)
}

// PlanService manages per-month requirement rows.
// Satisfied by *engine.PlanService.
type PlanService interface {
	Resync(ctx context.Context, month core.MonthLabel) ([]core.MonthlyGoalPlan, error)
	ApplyFlexAdjustment(ctx context.Context, month core.MonthLabel, adjustment float64) ([]core.MonthlyGoalPlan, error)
	GetPlans(ctx context.Context, month core.MonthLabel) ([]core.MonthlyGoalPlan, error)
}

// RatesProvider resolves exchange rates and on-chain balances, nil
// meaning unavailable. Satisfied by *rates.Service.
type RatesProvider interface {
	Rates(ctx context.Context, to string, currencies []string) map[string]*float64
	Balances(ctx context.Context, assets []core.Asset) map[string]*float64
}

// Ledger stores (satisfied by the storage sub-repositories).
type (
	TransactionStore interface {
		ListAll(ctx context.Context) ([]core.Transaction, error)
		Append(ctx context.Context, t core.Transaction) (int64, error)
	}

	AllocationStore interface {
		ListAll(ctx context.Context) ([]core.AllocationEntry, error)
		Append(ctx context.Context, a core.AllocationEntry) (int64, error)
	}

	GoalStore interface {
		ListAll(ctx context.Context) ([]core.Goal, error)
		Upsert(ctx context.Context, g core.Goal) error
	}

	AssetStore interface {
		ListAll(ctx context.Context) ([]core.Asset, error)
		Upsert(ctx context.Context, a core.Asset) error
	}
)

// LedgerNotifier announces ledger writes to the broker so the worker
// can resync plans. Optional. Satisfied by *amqp.Client.
type LedgerNotifier interface {
	PublishLedgerChanged(ctx context.Context, month core.MonthLabel) error
}

type Server struct {
	http.Server

	lifecycle ExecutionService
	plans     PlanService
	rates     RatesProvider
	txns      TransactionStore
	allocs    AllocationStore
	goals     GoalStore
	assets    AssetStore
	notifier  LedgerNotifier
	logger    *applog.Logger
}

// ServerDeps bundles the constructor arguments.
type ServerDeps struct {
	Lifecycle ExecutionService
	Plans     PlanService
	Rates     RatesProvider
	Txns      TransactionStore
	Allocs    AllocationStore
	Goals     GoalStore
	Assets    AssetStore
	Notifier  LedgerNotifier // optional
	Logger    *applog.Logger // optional; enables request logging
}

func NewServer(port int, deps ServerDeps) *Server {
	s := &Server{
		lifecycle: deps.Lifecycle,
		plans:     deps.Plans,
		rates:     deps.Rates,
		txns:      deps.Txns,
		allocs:    deps.Allocs,
		goals:     deps.Goals,
		assets:    deps.Assets,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
	}
	s.Addr = fmt.Sprintf(":%d", port)
	s.Handler = s.routes()
	s.ReadHeaderTimeout = 5 * time.Second
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if s.logger != nil {
		r.Use(applog.RequestLogger(s.logger))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/executions", func(r chi.Router) {
			r.Get("/history", s.handleHistory)
			r.Route("/{month}", func(r chi.Router) {
				r.Get("/", s.handleSession)
				r.Post("/start", s.handleStart)
				r.Post("/complete", s.handleComplete)
				r.Post("/undo", s.handleUndo)
				r.Post("/undo-start", s.handleUndoStart)
			})
		})

		r.Route("/plans/{month}", func(r chi.Router) {
			r.Get("/", s.handleGetPlans)
			r.Post("/sync", s.handleSyncPlans)
			r.Post("/flex", s.handleFlex)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleAppendTransaction)
		})
		r.Route("/allocations", func(r chi.Router) {
			r.Get("/", s.handleListAllocations)
			r.Post("/", s.handleAppendAllocation)
		})
		r.Route("/goals", func(r chi.Router) {
			r.Get("/", s.handleListGoals)
			r.Post("/", s.handleUpsertGoal)
		})
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", s.handleListAssets)
			r.Post("/", s.handleUpsertAsset)
		})

		r.Get("/rates", s.handleRates)
		r.Get("/balances", s.handleBalances)
	})

	return r
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "HTTP server listening", "addr", s.Addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen on %s: %w", s.Addr, err)
	}
	return nil
}

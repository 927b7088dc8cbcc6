package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hodl/internal/amqp"
	"hodl/internal/config"
	"hodl/internal/engine"
	apphttp "hodl/internal/http"
	applog "hodl/internal/log"
	"hodl/internal/ratelimit"
	"hodl/internal/rates"
	"hodl/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// The broker is optional for the API server: without it lifecycle
	// events and ledger notifications are skipped.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, events disabled", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		MaxTokens:  float64(cfg.RateLimitMaxTokens),
		RefillRate: cfg.RateLimitRefillRate,
	})

	var rateSource rates.ExchangeRateSource
	if cfg.RateAPIBaseURL != "" {
		rateSource = rates.NewHTTPRateSource(cfg.RateAPIBaseURL, nil)
	}
	var chainSource rates.OnChainBalanceSource
	if cfg.ChainAPIBaseURL != "" {
		chainSource = rates.NewHTTPBalanceSource(cfg.ChainAPIBaseURL, nil)
	}
	rateSvc := rates.NewService(rateSource, chainSource, limiter, rates.Config{
		FetchTimeout: cfg.FetchTimeout,
		CacheTTL:     cfg.RateCacheTTL,
	})

	planSvc := engine.NewPlanService(repo.Plans(), repo.Goals())

	deps := engine.LifecycleDeps{
		Records:     repo.Records(),
		Snapshots:   repo.Snapshots(),
		Completions: repo.Completions(),
		Txns:        repo.Transactions(),
		Allocs:      repo.Allocations(),
		Goals:       repo.Goals(),
		Plans:       planSvc,
		Atomic:      repo,
	}
	if amqpClient != nil {
		deps.Events = amqpClient
	}
	lifecycle := engine.NewLifecycle(deps, engine.LifecycleConfig{
		UndoWindow:      cfg.UndoWindow,
		StartUndoWindow: cfg.StartUndoWindow,
	})

	serverDeps := apphttp.ServerDeps{
		Lifecycle: lifecycle,
		Plans:     planSvc,
		Rates:     rateSvc,
		Txns:      repo.Transactions(),
		Allocs:    repo.Allocations(),
		Goals:     repo.Goals(),
		Assets:    repo.Assets(),
		Logger:    logger,
	}
	if amqpClient != nil {
		serverDeps.Notifier = amqpClient
	}
	srv := apphttp.NewServer(cfg.PortNumber(), serverDeps)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting hodl server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.Start(ctx); err != nil {
		slog.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// Package observe exposes the tracker's Prometheus metrics.
package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LifecycleTransitions counts execution state-machine transitions
	// by operation (start, complete, undo, undo_start).
	LifecycleTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hodl_execution_transitions_total",
		Help: "Execution lifecycle transitions by operation.",
	}, []string{"operation"})

	// RateFetches counts outbound rate/balance fetches by outcome.
	RateFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hodl_rate_fetches_total",
		Help: "Outbound exchange-rate and on-chain balance fetches by outcome.",
	}, []string{"source", "outcome"})

	// RateLimiterWait observes how long callers waited for tokens.
	RateLimiterWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hodl_ratelimiter_wait_seconds",
		Help:    "Time spent waiting on the outbound token bucket.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

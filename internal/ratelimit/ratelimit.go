// Package ratelimit provides token-bucket admission control for
// outbound rate-sensitive calls (exchange-rate and on-chain lookups).
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config holds token bucket configuration.
type Config struct {
	// MaxTokens is the bucket capacity.
	MaxTokens float64

	// RefillRate is tokens added per second.
	RefillRate float64
}

// DefaultConfig returns sensible defaults for public crypto APIs.
func DefaultConfig() Config {
	return Config{
		MaxTokens:  10,
		RefillRate: 2,
	}
}

// Limiter is a token bucket safe for many concurrent callers.
// Refill and debit happen inside a single mutex-guarded critical
// section so tokens never go negative and a refill can't be applied
// twice between the check and the debit.
type Limiter struct {
	mu           sync.Mutex
	tokens       float64
	maxTokens    float64
	refillRate   float64
	lastRefillAt time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewLimiter creates a token bucket, initially full.
func NewLimiter(config Config) *Limiter {
	if config.MaxTokens <= 0 || config.RefillRate <= 0 {
		config = DefaultConfig()
	}
	l := &Limiter{
		tokens:     config.MaxTokens,
		maxTokens:  config.MaxTokens,
		refillRate: config.RefillRate,
		now:        time.Now,
	}
	l.lastRefillAt = l.now()
	return l
}

// Acquire blocks until cost tokens are available, then debits them.
// It never fails on its own; the only error is ctx cancellation while
// waiting. A cost above the bucket capacity is clamped to capacity so
// the call can eventually succeed.
func (l *Limiter) Acquire(ctx context.Context, cost float64) error {
	if cost <= 0 {
		cost = 1
	}
	if cost > l.maxTokens {
		cost = l.maxTokens
	}

	for {
		l.mu.Lock()
		l.refillLocked()

		if l.tokens >= cost {
			l.tokens -= cost
			l.mu.Unlock()
			return nil
		}

		missing := cost - l.tokens
		l.mu.Unlock()

		wait := time.Duration(missing / l.refillRate * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tokens reports the currently available token count after refill.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return l.tokens
}

// refillLocked converts elapsed wall-clock time into tokens. Caller
// must hold l.mu.
func (l *Limiter) refillLocked() {
	now := l.now()
	elapsed := now.Sub(l.lastRefillAt).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefillAt = now
}

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{cur: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(cfg)
	l.now = clock.Now
	l.lastRefillAt = clock.Now()
	return l, clock
}

func TestLimiter_AcquireDebitsTokens(t *testing.T) {
	l, _ := newTestLimiter(Config{MaxTokens: 5, RefillRate: 1})

	for i := 0; i < 5; i++ {
		if err := l.Acquire(context.Background(), 1); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	if got := l.Tokens(); got != 0 {
		t.Errorf("tokens after draining = %v, want 0", got)
	}
}

func TestLimiter_RefillIsLazyAndCapped(t *testing.T) {
	l, clock := newTestLimiter(Config{MaxTokens: 5, RefillRate: 2})

	if err := l.Acquire(context.Background(), 5); err != nil {
		t.Fatal(err)
	}

	clock.Advance(1 * time.Second)
	if got := l.Tokens(); got != 2 {
		t.Errorf("tokens after 1s at 2/s = %v, want 2", got)
	}

	// A long idle period never overfills the bucket.
	clock.Advance(1 * time.Hour)
	if got := l.Tokens(); got != 5 {
		t.Errorf("tokens after long idle = %v, want cap 5", got)
	}
}

func TestLimiter_AcquireBlocksUntilRefill(t *testing.T) {
	l := NewLimiter(Config{MaxTokens: 1, RefillRate: 50})

	if err := l.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	// Bucket is empty; the next acquire must wait for real refill.
	start := time.Now()
	if err := l.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("second acquire returned in %v, expected to block ~20ms", elapsed)
	}
}

func TestLimiter_AcquireHonorsContext(t *testing.T) {
	l := NewLimiter(Config{MaxTokens: 1, RefillRate: 0.001})

	if err := l.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx, 1)
	if err == nil {
		t.Fatal("acquire with exhausted bucket should fail on context deadline")
	}
	if err != context.DeadlineExceeded {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestLimiter_NeverOverIssues(t *testing.T) {
	l, _ := newTestLimiter(Config{MaxTokens: 4, RefillRate: 1})

	var wg sync.WaitGroup
	issued := make(chan struct{}, 16)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx, 1); err == nil {
				issued <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(issued)

	// Frozen clock means no refill: at most MaxTokens grants possible.
	count := 0
	for range issued {
		count++
	}
	if count > 4 {
		t.Errorf("issued %d tokens with capacity 4 and no refill", count)
	}
}

func TestLimiter_CostClampedToCapacity(t *testing.T) {
	l, _ := newTestLimiter(Config{MaxTokens: 3, RefillRate: 1})

	// Asking for more than the bucket can ever hold must still succeed.
	if err := l.Acquire(context.Background(), 10); err != nil {
		t.Fatalf("oversized cost should be clamped: %v", err)
	}
	if got := l.Tokens(); got != 0 {
		t.Errorf("tokens = %v, want 0 after clamped full-bucket debit", got)
	}
}

func TestDefaultConfigUsedForInvalidValues(t *testing.T) {
	l := NewLimiter(Config{MaxTokens: -1, RefillRate: 0})
	if l.maxTokens != DefaultConfig().MaxTokens {
		t.Errorf("maxTokens = %v, want default %v", l.maxTokens, DefaultConfig().MaxTokens)
	}
}

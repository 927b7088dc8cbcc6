package rates

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hodl/internal/cache"
	"hodl/internal/core"
	"hodl/internal/observe"
	"hodl/internal/ratelimit"
)

// Config holds lookup behavior.
type Config struct {
	// FetchTimeout caps each individual network fetch.
	FetchTimeout time.Duration

	// CacheTTL is how long a fetched value stays fresh.
	CacheTTL time.Duration

	// CacheSize bounds the in-process cache.
	CacheSize int
}

// DefaultConfig returns sensible lookup defaults.
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 5 * time.Second,
		CacheTTL:     2 * time.Minute,
		CacheSize:    256,
	}
}

// Service fronts the rate and balance sources with admission control
// and caching. Every network call acquires a rate-limiter token first;
// no lock is held while a fetch is in flight.
type Service struct {
	source  ExchangeRateSource
	chain   OnChainBalanceSource
	limiter *ratelimit.Limiter
	cache   *cache.LRU[float64]
	cfg     Config
}

func NewService(source ExchangeRateSource, chain OnChainBalanceSource, limiter *ratelimit.Limiter, cfg Config) *Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	return &Service{
		source:  source,
		chain:   chain,
		limiter: limiter,
		cache:   cache.NewLRU[float64](cfg.CacheSize, cfg.CacheTTL),
		cfg:     cfg,
	}
}

// Rate returns the spot rate for a currency pair, or nil when the
// value is unavailable (source missing, rate-limiter wait cancelled,
// fetch failed or timed out).
func (s *Service) Rate(ctx context.Context, from, to string) *float64 {
	if s.source == nil {
		return nil
	}

	key := "rate:" + from + ":" + to
	if v, ok := s.cache.Get(key); ok {
		return &v
	}

	if !s.admit(ctx) {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	rate, err := s.source.FetchRate(fetchCtx, from, to)
	if err != nil {
		observe.RateFetches.WithLabelValues("exchange", "error").Inc()
		slog.WarnContext(ctx, "Rate lookup unavailable",
			"from", from, "to", to, "error", err)
		return nil
	}

	observe.RateFetches.WithLabelValues("exchange", "ok").Inc()
	s.cache.Set(key, rate)
	return &rate
}

// Balance returns an asset's live on-chain balance, or nil when
// unavailable.
func (s *Service) Balance(ctx context.Context, asset core.Asset) *float64 {
	if s.chain == nil || asset.Address == "" {
		return nil
	}

	key := "balance:" + asset.ID
	if v, ok := s.cache.Get(key); ok {
		return &v
	}

	if !s.admit(ctx) {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	balance, err := s.chain.GetBalance(fetchCtx, asset)
	if err != nil {
		observe.RateFetches.WithLabelValues("onchain", "error").Inc()
		slog.WarnContext(ctx, "On-chain balance unavailable",
			"asset", asset.ID, "error", err)
		return nil
	}

	observe.RateFetches.WithLabelValues("onchain", "ok").Inc()
	s.cache.Set(key, balance)
	return &balance
}

// Rates fetches rates for many pairs concurrently and joins before
// returning. Individual failures land as nil entries; the fan-out
// itself never fails.
func (s *Service) Rates(ctx context.Context, to string, currencies []string) map[string]*float64 {
	out := make(map[string]*float64, len(currencies))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, from := range currencies {
		g.Go(func() error {
			rate := s.Rate(ctx, from, to)
			mu.Lock()
			out[from] = rate
			mu.Unlock()
			return nil
		})
	}
	g.Wait() // no goroutine returns an error

	return out
}

// Balances fetches on-chain balances for many assets concurrently,
// keyed by asset id.
func (s *Service) Balances(ctx context.Context, assets []core.Asset) map[string]*float64 {
	out := make(map[string]*float64, len(assets))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, asset := range assets {
		g.Go(func() error {
			balance := s.Balance(ctx, asset)
			mu.Lock()
			out[asset.ID] = balance
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return out
}

// admit waits for a rate-limiter token, recording the wait. A caller
// whose context dies while queued gets a degraded (nil) value rather
// than an error.
func (s *Service) admit(ctx context.Context) bool {
	if s.limiter == nil {
		return true
	}
	start := time.Now()
	err := s.limiter.Acquire(ctx, 1)
	observe.RateLimiterWait.Observe(time.Since(start).Seconds())
	return err == nil
}

package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hodl/internal/core"
	"hodl/internal/ratelimit"
)

func TestHTTPRateSource_FetchRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"bitcoin":{"eur":91000.5}}`))
	}))
	defer srv.Close()

	src := NewHTTPRateSource(srv.URL, nil)
	rate, err := src.FetchRate(context.Background(), "bitcoin", "eur")
	if err != nil {
		t.Fatal(err)
	}
	if rate != 91000.5 {
		t.Errorf("rate = %v, want 91000.5", rate)
	}
}

func TestHTTPRateSource_MissingPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	src := NewHTTPRateSource(srv.URL, nil)
	if _, err := src.FetchRate(context.Background(), "bitcoin", "eur"); err == nil {
		t.Error("missing pair should fail")
	}
}

func TestHTTPRateSource_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := NewHTTPRateSource(srv.URL, nil)
	if _, err := src.FetchRate(context.Background(), "bitcoin", "eur"); err == nil {
		t.Error("non-200 should fail")
	}
}

func TestHTTPBalanceSource_GetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/address/bc1qtest/balance" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"balance":0.42}`))
	}))
	defer srv.Close()

	src := NewHTTPBalanceSource(srv.URL, nil)
	got, err := src.GetBalance(context.Background(), core.Asset{ID: "btc", Address: "bc1qtest"})
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.42 {
		t.Errorf("balance = %v, want 0.42", got)
	}
}

func TestHTTPBalanceSource_NoAddress(t *testing.T) {
	src := NewHTTPBalanceSource("http://unused", nil)
	if _, err := src.GetBalance(context.Background(), core.Asset{ID: "btc"}); err == nil {
		t.Error("missing address should fail")
	}
}

// stubRateSource counts calls and returns a fixed rate or error.
type stubRateSource struct {
	calls atomic.Int64
	rate  float64
	err   error
}

func (s *stubRateSource) FetchRate(_ context.Context, _, _ string) (float64, error) {
	s.calls.Add(1)
	return s.rate, s.err
}

type stubBalanceSource struct {
	balance float64
	err     error
}

func (s *stubBalanceSource) GetBalance(_ context.Context, _ core.Asset) (float64, error) {
	return s.balance, s.err
}

func TestService_RateCachesResults(t *testing.T) {
	src := &stubRateSource{rate: 100}
	svc := NewService(src, nil, nil, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got := svc.Rate(ctx, "bitcoin", "eur")
		if got == nil || *got != 100 {
			t.Fatalf("rate = %v, want 100", got)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source called %d times, want 1 (cached)", n)
	}
}

func TestService_RateDegradesToNil(t *testing.T) {
	src := &stubRateSource{err: context.DeadlineExceeded}
	svc := NewService(src, nil, nil, DefaultConfig())

	if got := svc.Rate(context.Background(), "bitcoin", "eur"); got != nil {
		t.Errorf("failed fetch should yield nil, got %v", *got)
	}
}

func TestService_NilSourcesYieldNil(t *testing.T) {
	svc := NewService(nil, nil, nil, DefaultConfig())
	ctx := context.Background()

	if svc.Rate(ctx, "a", "b") != nil {
		t.Error("nil rate source should yield nil")
	}
	if svc.Balance(ctx, core.Asset{ID: "x", Address: "addr"}) != nil {
		t.Error("nil chain source should yield nil")
	}
}

func TestService_BalanceSkipsAddresslessAssets(t *testing.T) {
	svc := NewService(nil, &stubBalanceSource{balance: 5}, nil, DefaultConfig())
	if got := svc.Balance(context.Background(), core.Asset{ID: "btc"}); got != nil {
		t.Error("asset without address should yield nil without calling the source")
	}
}

func TestService_RatesFanOutJoinsAll(t *testing.T) {
	src := &stubRateSource{rate: 7}
	svc := NewService(src, nil, ratelimit.NewLimiter(ratelimit.Config{MaxTokens: 10, RefillRate: 100}), DefaultConfig())

	got := svc.Rates(context.Background(), "eur", []string{"bitcoin", "ethereum", "solana"})
	if len(got) != 3 {
		t.Fatalf("results = %d, want 3", len(got))
	}
	for cur, rate := range got {
		if rate == nil || *rate != 7 {
			t.Errorf("rate for %s = %v, want 7", cur, rate)
		}
	}
}

func TestService_BalancesMixedOutcomes(t *testing.T) {
	svc := NewService(nil, &stubBalanceSource{balance: 1.5}, nil, DefaultConfig())

	got := svc.Balances(context.Background(), []core.Asset{
		{ID: "btc", Address: "bc1qtest"},
		{ID: "manual-only"},
	})
	if got["btc"] == nil || *got["btc"] != 1.5 {
		t.Errorf("btc balance = %v, want 1.5", got["btc"])
	}
	if got["manual-only"] != nil {
		t.Error("addressless asset should be nil")
	}
}

func TestService_AdmitRespectsCancelledContext(t *testing.T) {
	// Drain the bucket so the next acquire must wait, then cancel.
	limiter := ratelimit.NewLimiter(ratelimit.Config{MaxTokens: 1, RefillRate: 0.001})
	if err := limiter.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	src := &stubRateSource{rate: 1}
	svc := NewService(src, nil, limiter, DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if got := svc.Rate(ctx, "bitcoin", "eur"); got != nil {
		t.Error("cancelled admission should degrade to nil")
	}
	if src.calls.Load() != 0 {
		t.Error("source must not be called without an admission token")
	}
}

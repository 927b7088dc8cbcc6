// Package rates provides the outbound price and balance capabilities:
// a spot exchange-rate source and an on-chain balance source, both
// gated by the token-bucket rate limiter and cached in-process.
//
// Lookups degrade, never abort: a failed or timed-out fetch reports
// "value unavailable" (nil) and the caller renders partial results.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"hodl/internal/core"
)

// ExchangeRateSource fetches a spot conversion rate between two
// currencies.
type ExchangeRateSource interface {
	FetchRate(ctx context.Context, from, to string) (float64, error)
}

// OnChainBalanceSource resolves an asset's live on-chain balance.
// On-chain values feed current valuation only; the execution engine's
// historical replay deliberately uses manual transactions alone.
type OnChainBalanceSource interface {
	GetBalance(ctx context.Context, asset core.Asset) (float64, error)
}

// HTTPRateSource fetches spot rates from a simple-price style JSON API
// (id -> currency -> rate).
type HTTPRateSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRateSource(baseURL string, client *http.Client) *HTTPRateSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPRateSource{baseURL: baseURL, client: client}
}

func (s *HTTPRateSource) FetchRate(ctx context.Context, from, to string) (float64, error) {
	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		s.baseURL, url.QueryEscape(from), url.QueryEscape(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch rate %s/%s: %w", from, to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch rate %s/%s: status %d", from, to, resp.StatusCode)
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode rate response: %w", err)
	}

	rate, ok := payload[from][to]
	if !ok {
		return 0, fmt.Errorf("no rate for %s/%s in response", from, to)
	}
	return rate, nil
}

// HTTPBalanceSource resolves balances from an address-indexed JSON API.
type HTTPBalanceSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPBalanceSource(baseURL string, client *http.Client) *HTTPBalanceSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPBalanceSource{baseURL: baseURL, client: client}
}

func (s *HTTPBalanceSource) GetBalance(ctx context.Context, asset core.Asset) (float64, error) {
	if asset.Address == "" {
		return 0, fmt.Errorf("asset %s has no on-chain address", asset.ID)
	}

	u := fmt.Sprintf("%s/address/%s/balance", s.baseURL, url.PathEscape(asset.Address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build balance request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch balance %s: %w", asset.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch balance %s: status %d", asset.ID, resp.StatusCode)
	}

	var payload struct {
		Balance float64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode balance response: %w", err)
	}
	return payload.Balance, nil
}

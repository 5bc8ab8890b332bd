// Package features fetches precomputed indicator vectors from the local
// feature sidecar. Indicator math lives entirely in the sidecar; this client
// only shapes its response into a strategy.FeatureSnapshot and validates the
// required-key contract.
package features

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bybit-scan-bot/internal/strategy"
)

type Source interface {
	Snapshot(ctx context.Context, symbol, interval string) (strategy.FeatureSnapshot, error)
}

type Client struct {
	base string
	http *http.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = "http://127.0.0.1:8765"
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Snapshot(ctx context.Context, symbol, interval string) (strategy.FeatureSnapshot, error) {
	target := fmt.Sprintf("%s/features?symbol=%s&interval=%s", c.base, url.QueryEscape(symbol), url.QueryEscape(interval))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return strategy.FeatureSnapshot{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return strategy.FeatureSnapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return strategy.FeatureSnapshot{}, fmt.Errorf("feature sidecar http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out struct {
		Symbol   string             `json:"symbol"`
		Time     int64              `json:"time_ms"`
		Close    float64            `json:"close"`
		Features map[string]float64 `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return strategy.FeatureSnapshot{}, err
	}
	snapshot := strategy.FeatureSnapshot{
		Symbol:   out.Symbol,
		Time:     time.UnixMilli(out.Time).UTC(),
		Features: out.Features,
		Close:    out.Close,
	}
	if snapshot.Symbol == "" {
		snapshot.Symbol = symbol
	}
	if err := snapshot.Validate(); err != nil {
		return strategy.FeatureSnapshot{}, err
	}
	return snapshot, nil
}

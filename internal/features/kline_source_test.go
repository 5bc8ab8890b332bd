package features

import (
	"context"
	"testing"
	"time"

	"bybit-scan-bot/internal/market"
	"bybit-scan-bot/internal/strategy"
)

type stubKlines struct {
	candles []market.Candle
	err     error
}

func (s *stubKlines) Klines(context.Context, string, string, int) ([]market.Candle, error) {
	return s.candles, s.err
}

func TestKlineSourceShapesLastClose(t *testing.T) {
	start := time.UnixMilli(1700000000000).UTC()
	source := NewKlineSource(&stubKlines{candles: []market.Candle{
		{Symbol: "BTCUSDT", Close: 99, Start: start.Add(-5 * time.Minute)},
		{Symbol: "BTCUSDT", Close: 100.5, Start: start},
	}}, 200)

	snapshot, err := source.Snapshot(context.Background(), "BTCUSDT", "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Close != 100.5 || !snapshot.Time.Equal(start) {
		t.Fatalf("expected last candle shaped, got %+v", snapshot)
	}
	if err := snapshot.Validate(); err != nil {
		t.Fatalf("neutral snapshot must satisfy the required key set: %v", err)
	}
}

func TestKlineSourceNeverSignals(t *testing.T) {
	source := NewKlineSource(&stubKlines{candles: []market.Candle{{Symbol: "BTCUSDT", Close: 100}}}, 200)
	snapshot, err := source.Snapshot(context.Background(), "BTCUSDT", "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	signal, err := strategy.NewEvaluator(nil, 0.6).Evaluate(snapshot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal.Direction != strategy.NoTrade {
		t.Fatalf("neutral features must not signal, got %s", signal.Direction)
	}
}

func TestKlineSourcePropagatesError(t *testing.T) {
	source := NewKlineSource(&stubKlines{err: market.ErrNoData}, 200)
	if _, err := source.Snapshot(context.Background(), "BTCUSDT", "5"); err == nil {
		t.Fatalf("expected error from kline provider")
	}
}

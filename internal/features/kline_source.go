package features

import (
	"context"

	"bybit-scan-bot/internal/market"
	"bybit-scan-bot/internal/strategy"
)

// KlineProvider is the slice of the market gateway the kline source needs.
type KlineProvider interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
}

// KlineSource shapes the latest kline close into a snapshot with neutral
// defaults for every required feature. Neutral values never satisfy the
// directional rules, so running on this source dry-runs the pipeline
// against live prices without placing trades. It exists for deployments
// without a feature sidecar.
type KlineSource struct {
	market KlineProvider
	limit  int
}

func NewKlineSource(m KlineProvider, limit int) *KlineSource {
	if limit <= 0 {
		limit = 200
	}
	return &KlineSource{market: m, limit: limit}
}

func (s *KlineSource) Snapshot(ctx context.Context, symbol, interval string) (strategy.FeatureSnapshot, error) {
	candles, err := s.market.Klines(ctx, symbol, interval, s.limit)
	if err != nil {
		return strategy.FeatureSnapshot{}, err
	}
	if len(candles) == 0 {
		return strategy.FeatureSnapshot{}, market.ErrNoData
	}
	last := candles[len(candles)-1]
	return strategy.FeatureSnapshot{
		Symbol:   symbol,
		Time:     last.Start,
		Close:    last.Close,
		Features: NeutralFeatures(last.Close),
	}, nil
}

// NeutralFeatures fills the required key set with values that trigger
// neither the long nor the short rule.
func NeutralFeatures(close float64) map[string]float64 {
	return map[string]float64{
		"RSI":         50,
		"MACD":        0,
		"MACD_Signal": 0,
		"VWAP":        close,
		"SuperTrend":  0,
		"ADX":         0,
	}
}

package strategy

import (
	"fmt"
	"math"
)

const (
	atrFraction      = 0.005
	trailingFraction = 0.5
	levelPrecision   = 6
	maxRiskPercent   = 5
)

// PositionSize converts the risked balance fraction into a contract
// quantity, rounded down to the exchange's minimum quantity increment.
func PositionSize(balance, riskPercent, entryPrice, qtyStep float64) (float64, error) {
	if entryPrice <= 0 {
		return 0, fmt.Errorf("%w: entry price %f", ErrInvalidInput, entryPrice)
	}
	if balance <= 0 || riskPercent <= 0 {
		return 0, fmt.Errorf("%w: balance %f risk %f", ErrInvalidInput, balance, riskPercent)
	}
	qty := balance * (riskPercent / 100) / entryPrice
	if qtyStep > 0 {
		qty = math.Floor(qty/qtyStep) * qtyStep
		qty = roundTo(qty, levelPrecision)
	}
	return qty, nil
}

// ComputeTradeLevels derives the take-profit ladder, stop loss and trailing
// distance from the entry price using the fixed fractional ATR proxy.
func ComputeTradeLevels(entryPrice float64, side Direction) (TradeLevels, error) {
	if entryPrice <= 0 {
		return TradeLevels{}, fmt.Errorf("%w: entry price %f", ErrInvalidInput, entryPrice)
	}
	if side != Buy && side != Sell {
		return TradeLevels{}, fmt.Errorf("%w: side %q", ErrInvalidInput, side)
	}
	atr := entryPrice * atrFraction
	levels := TradeLevels{
		Entry:        entryPrice,
		Side:         side,
		TrailingStop: roundTo(atr*trailingFraction, levelPrecision),
	}
	if side == Buy {
		levels.TP1 = roundTo(entryPrice*1.006, levelPrecision)
		levels.TP2 = roundTo(entryPrice*1.012, levelPrecision)
		levels.TP3 = roundTo(entryPrice*1.018, levelPrecision)
		levels.StopLoss = roundTo(entryPrice-atr, levelPrecision)
	} else {
		levels.TP1 = roundTo(entryPrice*0.994, levelPrecision)
		levels.TP2 = roundTo(entryPrice*0.988, levelPrecision)
		levels.TP3 = roundTo(entryPrice*0.982, levelPrecision)
		levels.StopLoss = roundTo(entryPrice+atr, levelPrecision)
	}
	return levels, nil
}

// AdjustRiskForVolatility scales the base risk with the volatility index
// and caps the result at 5% no matter how volatile the market gets.
func AdjustRiskForVolatility(volatilityIndex, baseRiskPercent float64) float64 {
	adjusted := baseRiskPercent * (1 + volatilityIndex)
	return math.Min(adjusted, maxRiskPercent)
}

// VolatilityIndex is the standard deviation of close-to-close returns over
// the given price series. Fewer than two closes yield zero.
func VolatilityIndex(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance)
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

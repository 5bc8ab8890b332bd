package strategy

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks a locally rejected input: a missing required
// feature or a non-positive price. It aborts one symbol's pipeline only.
var ErrInvalidInput = errors.New("invalid input")

// RequiredFeatures is the key set every snapshot must carry. The upstream
// indicator layer fills gaps with its neutral defaults before handing the
// vector over; the evaluator never invents values.
var RequiredFeatures = []string{"RSI", "MACD", "MACD_Signal", "VWAP", "SuperTrend", "ADX"}

func (s FeatureSnapshot) Validate() error {
	if s.Close <= 0 {
		return fmt.Errorf("%w: close price %f", ErrInvalidInput, s.Close)
	}
	for _, key := range RequiredFeatures {
		if _, ok := s.Features[key]; !ok {
			return fmt.Errorf("%w: missing feature %s", ErrInvalidInput, key)
		}
	}
	return nil
}

// Score is the black-box classifier verdict for a feature vector.
type Score struct {
	Label       Direction
	Probability float64
}

// Scorer maps a feature snapshot to a label and probability. Implementations
// wrap whatever serialized model the operator supplies.
type Scorer interface {
	Score(snapshot FeatureSnapshot) (Score, error)
}

// Evaluator turns a feature snapshot into a trade signal. It is pure and
// stateless: identical input always yields the identical signal.
type Evaluator struct {
	scorer          Scorer
	confidenceFloor float64
}

func NewEvaluator(scorer Scorer, confidenceFloor float64) *Evaluator {
	return &Evaluator{scorer: scorer, confidenceFloor: confidenceFloor}
}

// Evaluate applies the rule policy and, when a scorer is configured, gates
// the outcome on the model's probability: below the confidence floor any
// directional signal downgrades to NoTrade. Direction always comes from the
// rules; the model only vetoes.
func (e *Evaluator) Evaluate(snapshot FeatureSnapshot) (TradeSignal, error) {
	if err := snapshot.Validate(); err != nil {
		return TradeSignal{}, err
	}
	signal := TradeSignal{
		Symbol:    snapshot.Symbol,
		Direction: ruleDirection(snapshot),
	}
	if e.scorer == nil || signal.Direction == NoTrade {
		return signal, nil
	}
	score, err := e.scorer.Score(snapshot)
	if err != nil {
		return TradeSignal{}, err
	}
	signal.Confidence = score.Probability
	signal.HasScore = true
	if score.Probability < e.confidenceFloor {
		signal.Direction = NoTrade
	}
	return signal, nil
}

func ruleDirection(snapshot FeatureSnapshot) Direction {
	f := snapshot.Features
	long := f["RSI"] > 50 &&
		f["MACD"] > f["MACD_Signal"] &&
		snapshot.Close > f["VWAP"] &&
		f["SuperTrend"] > 0 &&
		f["ADX"] > 25
	short := f["RSI"] < 50 &&
		f["MACD"] < f["MACD_Signal"] &&
		snapshot.Close < f["VWAP"] &&
		f["SuperTrend"] < 0 &&
		f["ADX"] > 25
	switch {
	case long:
		return Buy
	case short:
		return Sell
	default:
		return NoTrade
	}
}

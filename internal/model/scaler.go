package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"bybit-scan-bot/internal/strategy"
)

// Scaler is the standard-scaler sidecar exported alongside the classifier.
// Its feature list fixes the input ordering, so the model never depends on
// map iteration order.
type Scaler struct {
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if len(s.Features) == 0 {
		return nil, errors.New("scaler has no feature list")
	}
	if len(s.Mean) != len(s.Features) || len(s.Scale) != len(s.Features) {
		return nil, fmt.Errorf("scaler shape mismatch: %d features, %d means, %d scales",
			len(s.Features), len(s.Mean), len(s.Scale))
	}
	for i, scale := range s.Scale {
		if scale == 0 {
			return nil, fmt.Errorf("scaler scale[%d] (%s) is zero", i, s.Features[i])
		}
	}
	return &s, nil
}

// Transform builds the scaled input vector from a snapshot. The "close"
// feature reads the snapshot close price; everything else comes from the
// named feature map.
func (s *Scaler) Transform(snapshot strategy.FeatureSnapshot) ([]float32, error) {
	out := make([]float32, len(s.Features))
	for i, name := range s.Features {
		var value float64
		if name == "close" {
			value = snapshot.Close
		} else {
			v, ok := snapshot.Features[name]
			if !ok {
				return nil, fmt.Errorf("%w: model feature %s missing", strategy.ErrInvalidInput, name)
			}
			value = v
		}
		out[i] = float32((value - s.Mean[i]) / s.Scale[i])
	}
	return out, nil
}

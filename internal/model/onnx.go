// Package model runs the serialized trade classifier in-process. The ONNX
// session and its scaler sidecar together implement strategy.Scorer; the
// rest of the system only sees score(features) -> (label, probability).
package model

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"bybit-scan-bot/internal/strategy"
)

var ortInit sync.Once

func initORT() error {
	var err error
	ortInit.Do(func() {
		libPath := "/usr/lib/libonnxruntime.so"
		switch runtime.GOOS {
		case "windows":
			libPath = "onnxruntime.dll"
		case "darwin":
			libPath = "libonnxruntime.dylib"
		}
		ort.SetSharedLibraryPath(libPath)
		err = ort.InitializeEnvironment()
	})
	return err
}

// Classifier wraps one ONNX session. Score calls are serialized: the session
// owns a single input tensor.
type Classifier struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	scaler  *Scaler
}

func NewClassifier(modelPath, scalerPath string) (*Classifier, error) {
	scaler, err := LoadScaler(scalerPath)
	if err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}
	if err := initORT(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	width := int64(len(scaler.Features))
	inputTensor, err := ort.NewTensor(ort.NewShape(1, width), make([]float32, width))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"probabilities"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Classifier{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		scaler:  scaler,
	}, nil
}

// Score runs the classifier. The output row holds [P(down), P(up)]; the
// probability reported is the winning class's, the label its direction.
func (c *Classifier) Score(snapshot strategy.FeatureSnapshot) (strategy.Score, error) {
	scaled, err := c.scaler.Transform(snapshot)
	if err != nil {
		return strategy.Score{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.input.GetData(), scaled)
	if err := c.session.Run(); err != nil {
		return strategy.Score{}, fmt.Errorf("inference: %w", err)
	}
	probs := c.output.GetData()
	if len(probs) < 2 {
		return strategy.Score{}, fmt.Errorf("unexpected model output width %d", len(probs))
	}
	score := strategy.Score{Label: strategy.Sell, Probability: float64(probs[0])}
	if probs[1] >= probs[0] {
		score = strategy.Score{Label: strategy.Buy, Probability: float64(probs[1])}
	}
	return score, nil
}

func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.input != nil {
		c.input.Destroy()
		c.input = nil
	}
	if c.output != nil {
		c.output.Destroy()
		c.output = nil
	}
}

package forecast

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
)

// Model predicts an AQI value from one feature row. Implementations must
// be safe for concurrent use.
type Model interface {
	Predict(f Features) float64
}

// LinearModel is intercept + Σ coefficient·feature, clamped to [Min, Max].
// A zero Max leaves the upper end unbounded. Coefficients are keyed by
// FeatureNames; missing features weigh zero.
type LinearModel struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
	Min          float64            `json:"min"`
	Max          float64            `json:"max"`
}

// DefaultLinearModel returns the built-in model:
// 60 + 1.5·(T2M − 20) − 0.5·WS10M, clamped to [10, 180].
func DefaultLinearModel() *LinearModel {
	m := &LinearModel{
		Intercept: 30,
		Coefficients: map[string]float64{
			FeatureTemperature: 1.5,
			FeatureWindSpeed:   -0.5,
		},
		Min: 10,
		Max: 180,
	}
	return m
}

// LoadLinearModel decodes a model from JSON.
//
//	{"intercept": 30, "coefficients": {"T2M": 1.5, "WS10M": -0.5}, "min": 10, "max": 180}
func LoadLinearModel(r io.Reader) (*LinearModel, error) {
	var m LinearModel
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadLinearModelFile reads a JSON model from path.
func LoadLinearModelFile(path string) (*LinearModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	return LoadLinearModel(f)
}

func (m *LinearModel) validate() error {
	if m.Max != 0 && m.Min > m.Max {
		return fmt.Errorf("model min %.2f exceeds max %.2f", m.Min, m.Max)
	}
	for name := range m.Coefficients {
		if !slices.Contains(FeatureNames, name) {
			return fmt.Errorf("unknown feature %q", name)
		}
	}
	return nil
}

// Predict evaluates the model.
func (m *LinearModel) Predict(f Features) float64 {
	v := m.Intercept
	for i, x := range f.Vector() {
		v += m.Coefficients[FeatureNames[i]] * x
	}
	if v < m.Min {
		v = m.Min
	}
	if m.Max != 0 && v > m.Max {
		v = m.Max
	}
	return v
}

// ModelFunc adapts a function to Model.
type ModelFunc func(Features) float64

// Predict calls fn.
func (fn ModelFunc) Predict(f Features) float64 { return fn(f) }

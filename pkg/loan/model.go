package loan

import (
	"log/slog"
	"math"
	"slices"
)

// Model is a fitted binary logistic regression. Coefficient i applies to
// schema feature i.
type Model struct {
	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
	Intercept    float64   `json:"intercept" yaml:"intercept"`
}

// Clone returns a deep copy of the model.
func (m Model) Clone() Model {
	return Model{Coefficients: slices.Clone(m.Coefficients), Intercept: m.Intercept}
}

// Logit returns intercept + Σ coefficient[i]*x[i].
func (m Model) Logit(x []float64) (float64, error) {
	if len(x) != len(m.Coefficients) {
		return 0, &DimensionError{Want: len(m.Coefficients), Got: len(x)}
	}
	z := m.Intercept
	for i, c := range m.Coefficients {
		z += c * x[i]
	}
	return z, nil
}

// Score returns the approval probability for an encoded vector.
func (m Model) Score(x []float64) (float64, error) {
	z, err := m.Logit(x)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(z) {
		return 0, featureErr("logit", z, ErrInvalidNumber)
	}
	p := Sigmoid(z)
	slog.Debug("score", "logit", z, "probability", p)
	return p, nil
}

// Sigmoid is the standard logistic function. The result is always in [0, 1].
func Sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

package loan

import (
	"errors"
	"fmt"
	"log/slog"
)

// Result is the outcome of a single prediction.
type Result struct {
	Probability float64          `json:"probability" yaml:"probability"`
	Decision    Decision         `json:"decision" yaml:"decision"`
	Explanation []ExplanationRow `json:"explanation" yaml:"explanation"`
}

// Predictor holds a schema and model that are never mutated after
// construction, so one value can serve concurrent requests.
type Predictor struct {
	schema *Schema
	model  Model
}

// NewPredictor builds a predictor. The model is copied. Coefficient count is
// checked on every call, not here.
func NewPredictor(s *Schema, m Model) (*Predictor, error) {
	if s == nil {
		return nil, errors.New("schema required")
	}
	return &Predictor{schema: s, model: m.Clone()}, nil
}

// Schema returns the feature schema.
func (p *Predictor) Schema() *Schema {
	return p.schema
}

// Model returns a copy of the model.
func (p *Predictor) Model() Model {
	return p.model.Clone()
}

// Predict encodes, scores, decides, and explains a record. On error no
// partial result is returned.
func (p *Predictor) Predict(r Record) (*Result, error) {
	vec, err := Encode(p.schema, r)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}

	prob, err := p.model.Score(vec)
	if err != nil {
		return nil, fmt.Errorf("scoring record: %w", err)
	}

	exp, err := Explain(p.schema, p.model)
	if err != nil {
		return nil, fmt.Errorf("explaining model: %w", err)
	}

	d := Decide(prob)
	slog.Debug("prediction", "probability", prob, "decision", d.Code())

	return &Result{
		Probability: prob,
		Decision:    d,
		Explanation: exp,
	}, nil
}

// Explain returns the model explanation.
func (p *Predictor) Explain() ([]ExplanationRow, error) {
	return Explain(p.schema, p.model)
}

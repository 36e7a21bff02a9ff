package loan

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

const (
	EffectIncreases = "increases"
	EffectDecreases = "decreases"
	EffectNeutral   = "neutral"
)

// ExplanationRow pairs a feature with its coefficient and odds ratio.
type ExplanationRow struct {
	Feature     string  `json:"feature" yaml:"feature"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient"`
	OddsRatio   float64 `json:"odds_ratio" yaml:"odds_ratio"`
}

// Effect describes the direction a unit increase of the feature moves the
// approval odds.
func (r ExplanationRow) Effect() string {
	switch {
	case r.OddsRatio > 1:
		return EffectIncreases
	case r.OddsRatio < 1:
		return EffectDecreases
	default:
		return EffectNeutral
	}
}

// Explain builds the explanation rows for a model, sorted by odds ratio
// descending. Equal odds ratios keep schema order.
func Explain(s *Schema, m Model) ([]ExplanationRow, error) {
	if s.Len() != len(m.Coefficients) {
		return nil, &DimensionError{Want: len(m.Coefficients), Got: s.Len()}
	}

	rows := make([]ExplanationRow, s.Len())
	for i, f := range s.features {
		c := m.Coefficients[i]
		rows[i] = ExplanationRow{
			Feature:     f.Name,
			Coefficient: c,
			OddsRatio:   math.Exp(c),
		}
	}

	slices.SortStableFunc(rows, func(a, b ExplanationRow) int {
		return cmp.Compare(b.OddsRatio, a.OddsRatio)
	})
	return rows, nil
}

// FormatProbability renders p as a percentage with two decimals.
func FormatProbability(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}

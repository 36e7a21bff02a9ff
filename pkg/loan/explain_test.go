package loan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplain_OddsRatio(t *testing.T) {
	s := testSchema(t)
	m := testModel()
	rows, err := Explain(s, m)
	require.NoError(t, err)
	require.Len(t, rows, s.Len())

	coef := make(map[string]float64)
	for i, name := range s.Names() {
		coef[name] = m.Coefficients[i]
	}
	for _, r := range rows {
		assert.InDelta(t, coef[r.Feature], r.Coefficient, 0)
		assert.InDelta(t, math.Exp(r.Coefficient), r.OddsRatio, 1e-9)
	}
}

func TestExplain_Sorted(t *testing.T) {
	rows, err := Explain(testSchema(t), testModel())
	require.NoError(t, err)
	for i := 0; i+1 < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i].OddsRatio, rows[i+1].OddsRatio)
	}
	assert.Equal(t, FeatureAge, rows[0].Feature)
	assert.Equal(t, FeatureEmploymentType, rows[len(rows)-1].Feature)
}

func TestExplain_StableTies(t *testing.T) {
	s, err := NewSchema(Free("a"), Free("b"), Free("c"), Free("d"))
	require.NoError(t, err)
	rows, err := Explain(s, Model{Coefficients: []float64{0.5, 1, 0.5, 0.5}})
	require.NoError(t, err)

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Feature
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, names)
}

func TestExplain_DoesNotMutateModel(t *testing.T) {
	m := Model{Coefficients: []float64{-1, 2, 0}}
	s, err := NewSchema(Free("x"), Free("y"), Free("z"))
	require.NoError(t, err)

	_, err = Explain(s, m)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 2, 0}, m.Coefficients)
}

func TestExplain_DimensionMismatch(t *testing.T) {
	_, err := Explain(testSchema(t), Model{Coefficients: []float64{1, 2}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestExplanationRow_Effect(t *testing.T) {
	assert.Equal(t, EffectIncreases, ExplanationRow{OddsRatio: 1.2}.Effect())
	assert.Equal(t, EffectDecreases, ExplanationRow{OddsRatio: 0.8}.Effect())
	assert.Equal(t, EffectNeutral, ExplanationRow{OddsRatio: 1}.Effect())
}

func TestFormatProbability(t *testing.T) {
	assert.Equal(t, "73.21%", FormatProbability(0.73214))
	assert.Equal(t, "0.00%", FormatProbability(0))
	assert.Equal(t, "100.00%", FormatProbability(1))
}

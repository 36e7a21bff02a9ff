package loan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(
		Bounded(FeatureAge, 18, 100).WithDefault(30),
		Free("Income").WithDefault(0.0),
		Free("Loan_Amount").WithDefault(0.0),
		Bounded(FeatureCreditScore, 300, 900).WithDefault(700),
		Categorical(FeatureEmploymentType, EmploymentTypes()).WithDefault(EmploymentSalaried),
	)
	require.NoError(t, err)
	return s
}

func testModel() Model {
	return Model{
		Coefficients: []float64{0.01, 0.00002, -0.00001, 0.008, -0.9},
		Intercept:    -5.0,
	}
}

func testRecord() Record {
	return Record{
		FeatureAge:            35,
		"Income":              85000.0,
		"Loan_Amount":         "20000",
		FeatureCreditScore:    720,
		FeatureEmploymentType: EmploymentSalaried,
	}
}

func TestPredictor_Predict(t *testing.T) {
	p, err := NewPredictor(testSchema(t), testModel())
	require.NoError(t, err)

	res, err := p.Predict(testRecord())
	require.NoError(t, err)
	require.NotNil(t, res)

	z := -5.0 + 0.01*35 + 0.00002*85000 - 0.00001*20000 + 0.008*720
	assert.InDelta(t, 1/(1+math.Exp(-z)), res.Probability, 1e-12)
	assert.Equal(t, Decide(res.Probability), res.Decision)
	assert.Len(t, res.Explanation, 5)
}

func TestPredictor_Deterministic(t *testing.T) {
	p, err := NewPredictor(testSchema(t), testModel())
	require.NoError(t, err)

	r1, err := p.Predict(testRecord())
	require.NoError(t, err)
	r2, err := p.Predict(testRecord())
	require.NoError(t, err)

	assert.Equal(t, math.Float64bits(r1.Probability), math.Float64bits(r2.Probability))
	assert.Equal(t, r1.Decision, r2.Decision)
	assert.Equal(t, r1.Explanation, r2.Explanation)
}

func TestPredictor_NoPartialResult(t *testing.T) {
	p, err := NewPredictor(testSchema(t), testModel())
	require.NoError(t, err)

	r := testRecord()
	r[FeatureEmploymentType] = "Retired"
	res, err := p.Predict(r)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInvalidCategory)
	assert.True(t, IsInputError(err))
}

func TestPredictor_DimensionMismatch(t *testing.T) {
	m := testModel()
	m.Coefficients = m.Coefficients[:4]
	p, err := NewPredictor(testSchema(t), m)
	require.NoError(t, err)

	res, err := p.Predict(testRecord())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.False(t, IsInputError(err))

	_, err = p.Explain()
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestPredictor_ModelIsCopied(t *testing.T) {
	m := testModel()
	p, err := NewPredictor(testSchema(t), m)
	require.NoError(t, err)

	m.Coefficients[0] = 42
	got := p.Model()
	assert.InDelta(t, 0.01, got.Coefficients[0], 1e-12)

	got.Coefficients[0] = 42
	assert.InDelta(t, 0.01, p.Model().Coefficients[0], 1e-12)
}

func TestNewPredictor_NilSchema(t *testing.T) {
	_, err := NewPredictor(nil, testModel())
	assert.Error(t, err)
}

func TestPredictor_Concurrent(t *testing.T) {
	p, err := NewPredictor(testSchema(t), testModel())
	require.NoError(t, err)

	want, err := p.Predict(testRecord())
	require.NoError(t, err)

	done := make(chan *Result, 16)
	for range 16 {
		go func() {
			res, err := p.Predict(testRecord())
			if err != nil {
				done <- nil
				return
			}
			done <- res
		}()
	}
	for range 16 {
		res := <-done
		require.NotNil(t, res)
		assert.Equal(t, want.Probability, res.Probability)
	}
}

package loan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		features []Feature
	}{
		{"empty", nil},
		{"blank name", []Feature{Free(" ")}},
		{"duplicate", []Feature{Free("a"), Free("a")}},
		{"inverted bounds", []Feature{Bounded("a", 10, 1)}},
		{"nan bounds", []Feature{Bounded("a", math.NaN(), 1)}},
		{"no categories", []Feature{Categorical("a", nil)}},
		{"bad kind", []Feature{{Name: "a", Kind: Kind(7)}}},
		{"default not a number", []Feature{Bounded(FeatureAge, 18, 100).WithDefault("abc")}},
		{"default out of range", []Feature{Bounded(FeatureAge, 18, 100).WithDefault(17)}},
		{"negative free default", []Feature{Free("Income").WithDefault(-1)}},
		{"default unknown category", []Feature{Categorical(FeatureEmploymentType, EmploymentTypes()).WithDefault("Retired")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.features...)
			assert.Error(t, err)
		})
	}
}

func TestSchema_Lookup(t *testing.T) {
	s := testSchema(t)
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, []string{FeatureAge, "Income", "Loan_Amount", FeatureCreditScore, FeatureEmploymentType}, s.Names())

	f, i, ok := s.Lookup(FeatureCreditScore)
	require.True(t, ok)
	assert.Equal(t, 3, i)
	assert.Equal(t, KindBounded, f.Kind)
	assert.InDelta(t, 300, f.Min, 0)
	assert.InDelta(t, 900, f.Max, 0)

	_, i, ok = s.Lookup("nope")
	assert.False(t, ok)
	assert.Equal(t, -1, i)
}

func TestSchema_Immutable(t *testing.T) {
	s := testSchema(t)
	fs := s.Features()
	fs[0].Name = "changed"
	assert.Equal(t, FeatureAge, s.Names()[0])

	f, _, _ := s.Lookup(FeatureEmploymentType)
	codes := f.Codes()
	codes["Retired"] = 3
	_, ok := f.Code("Retired")
	assert.False(t, ok)
}

func TestFeature_Labels(t *testing.T) {
	f := Categorical(FeatureEmploymentType, EmploymentTypes())
	assert.Equal(t, []string{EmploymentSalaried, EmploymentSelfEmployed, EmploymentUnemployed}, f.Labels())
	assert.Equal(t, "Employment Type", f.Label())
	assert.Equal(t, "Loan Amount", Free("Loan_Amount").Label())
}

func TestSchema_Defaults(t *testing.T) {
	d := testSchema(t).Defaults()
	assert.Equal(t, 30, d[FeatureAge])
	assert.Equal(t, 700, d[FeatureCreditScore])
	assert.Equal(t, EmploymentSalaried, d[FeatureEmploymentType])

	_, err := Encode(testSchema(t), d)
	assert.NoError(t, err)
}

func TestKind_Text(t *testing.T) {
	for _, k := range []Kind{KindFree, KindBounded, KindCategorical} {
		b, err := k.MarshalText()
		require.NoError(t, err)
		var got Kind
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, k, got)
	}
	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("ordinal")))
}

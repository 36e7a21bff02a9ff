package artifact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mchmarny/loanscore/pkg/loan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testArtifactJSON = `{
  "name": "tiny",
  "version": "0.1.0",
  "features": [
    {"name": "Age", "kind": "bounded", "min": 18, "max": 100, "default": 30},
    {"name": "Balance", "kind": "free", "allow_negative": true}
  ],
  "model": {"coefficients": [0.1, 0.001], "intercept": -2}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "loan-approval", a.Name)
	assert.Len(t, a.Checksum, 64)

	s, err := a.Schema()
	require.NoError(t, err)
	assert.Equal(t, len(a.Model.Coefficients), s.Len())

	f, _, ok := s.Lookup(loan.FeatureEmploymentType)
	require.True(t, ok)
	assert.Equal(t, loan.EmploymentTypes(), f.Codes())

	f, _, ok = s.Lookup(loan.FeatureAge)
	require.True(t, ok)
	assert.Equal(t, loan.KindBounded, f.Kind)
	assert.Equal(t, 30, f.Default)

	p, err := a.Predictor()
	require.NoError(t, err)
	res, err := p.Predict(s.Defaults())
	require.NoError(t, err)
	assert.Equal(t, loan.Decide(res.Probability), res.Decision)
}

func TestLoad_JSON(t *testing.T) {
	a, err := Load(context.Background(), writeFile(t, "model.json", testArtifactJSON))
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", a.Version)
	assert.Contains(t, a.ModelVersion(), "0.1.0@")

	s, err := a.Schema()
	require.NoError(t, err)
	f, _, ok := s.Lookup("Balance")
	require.True(t, ok)
	assert.True(t, f.AllowNegative)

	vec, err := loan.Encode(s, loan.Record{"Age": 40, "Balance": -20})
	require.NoError(t, err)
	assert.Equal(t, []float64{40, -20}, vec)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), "")
	assert.Error(t, err)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not yaml", "features: [\n"},
		{"no features", "model: {coefficients: [1]}"},
		{"no coefficients", "features: [{name: a, kind: free}]"},
		{"bad kind", "features: [{name: a, kind: ordinal}]\nmodel: {coefficients: [1]}"},
		{"bounded without max", "features: [{name: a, kind: bounded, min: 1}]\nmodel: {coefficients: [1]}"},
		{"nan coefficient", "features: [{name: a, kind: free}]\nmodel: {coefficients: [.nan]}"},
		{"inf intercept", "features: [{name: a, kind: free}]\nmodel: {coefficients: [1], intercept: .inf}"},
		{"duplicate feature", "features: [{name: a, kind: free}, {name: a, kind: free}]\nmodel: {coefficients: [1, 2]}"},
		{"default not a number", "features: [{name: Age, kind: bounded, min: 18, max: 100, default: abc}]\nmodel: {coefficients: [1]}"},
		{"default out of range", "features: [{name: Age, kind: bounded, min: 18, max: 100, default: 120}]\nmodel: {coefficients: [1]}"},
		{"default unknown category", "features: [{name: e, kind: categorical, categories: {a: 0}, default: b}]\nmodel: {coefficients: [1]}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestParse_CoefficientCountNotChecked(t *testing.T) {
	a, err := Parse([]byte("features: [{name: a, kind: free}, {name: b, kind: free}]\nmodel: {coefficients: [1, 2, 3]}"))
	require.NoError(t, err)

	p, err := a.Predictor()
	require.NoError(t, err)
	_, err = p.Predict(loan.Record{"a": 1, "b": 2})
	assert.ErrorIs(t, err, loan.ErrDimensionMismatch)
}

func TestLoadOrDefault(t *testing.T) {
	a, err := LoadOrDefault(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "loan-approval", a.Name)

	a, err = LoadOrDefault(context.Background(), writeFile(t, "m.json", testArtifactJSON))
	require.NoError(t, err)
	assert.Equal(t, "tiny", a.Name)
}

func TestChecksum_Stable(t *testing.T) {
	a1, err := Parse([]byte(testArtifactJSON))
	require.NoError(t, err)
	a2, err := Parse([]byte(testArtifactJSON))
	require.NoError(t, err)
	assert.Equal(t, a1.Checksum, a2.Checksum)
	assert.Equal(t, a1.ModelVersion(), a2.ModelVersion())
}

func TestLoad_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(testArtifactJSON))
	}))
	defer srv.Close()

	a, err := Load(context.Background(), srv.URL+"/model.json")
	require.NoError(t, err)
	assert.Equal(t, "tiny", a.Name)

	_, err = Load(context.Background(), srv.URL+"/missing.json")
	assert.Error(t, err)
}

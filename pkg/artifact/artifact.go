package artifact

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/mchmarny/loanscore/pkg/loan"
	"github.com/mchmarny/loanscore/pkg/net"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultArtifact []byte

// Artifact is a trained model together with the feature schema it was fit
// on. JSON files parse too, since JSON is valid YAML.
type Artifact struct {
	Name     string        `json:"name" yaml:"name"`
	Version  string        `json:"version" yaml:"version"`
	Features []FeatureSpec `json:"features" yaml:"features"`
	Model    loan.Model    `json:"model" yaml:"model"`

	// Checksum is the sha256 of the source bytes.
	Checksum string `json:"checksum" yaml:"-"`
}

// FeatureSpec is the serialized form of a loan.Feature.
type FeatureSpec struct {
	Name          string         `json:"name" yaml:"name"`
	Kind          string         `json:"kind" yaml:"kind"`
	Min           *float64       `json:"min,omitempty" yaml:"min,omitempty"`
	Max           *float64       `json:"max,omitempty" yaml:"max,omitempty"`
	Categories    map[string]int `json:"categories,omitempty" yaml:"categories,omitempty"`
	AllowNegative bool           `json:"allow_negative,omitempty" yaml:"allow_negative,omitempty"`
	Default       any            `json:"default,omitempty" yaml:"default,omitempty"`
}

// Default returns the built-in loan approval model.
func Default() (*Artifact, error) {
	a, err := Parse(defaultArtifact)
	if err != nil {
		return nil, fmt.Errorf("parsing built-in model: %w", err)
	}
	return a, nil
}

// Load reads an artifact from a YAML or JSON file, or from an http(s) URL.
func Load(ctx context.Context, path string) (*Artifact, error) {
	if path == "" {
		return nil, errors.New("model path required")
	}
	b, err := read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading model file %s: %w", path, err)
	}
	a, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parsing model file %s: %w", path, err)
	}
	slog.Debug("model loaded", "path", path, "name", a.Name, "version", a.Version, "features", len(a.Features))
	return a, nil
}

// LoadOrDefault loads the artifact at path, or the built-in one when path is
// empty.
func LoadOrDefault(ctx context.Context, path string) (*Artifact, error) {
	if path == "" {
		return Default()
	}
	return Load(ctx, path)
}

func read(ctx context.Context, path string) ([]byte, error) {
	if net.IsURL(path) {
		return net.Fetch(ctx, path)
	}
	return os.ReadFile(path)
}

// Parse decodes and validates an artifact. The coefficient count is not
// compared to the feature count here; scoring reports that mismatch.
func Parse(b []byte) (*Artifact, error) {
	var a Artifact
	if err := yaml.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}
	if len(a.Features) == 0 {
		return nil, errors.New("artifact has no features")
	}
	if len(a.Model.Coefficients) == 0 {
		return nil, errors.New("artifact has no coefficients")
	}
	for i, c := range a.Model.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	if math.IsNaN(a.Model.Intercept) || math.IsInf(a.Model.Intercept, 0) {
		return nil, errors.New("intercept is not finite")
	}
	if _, err := a.Schema(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(b)
	a.Checksum = hex.EncodeToString(sum[:])
	return &a, nil
}

// ModelVersion identifies the artifact in stored assessments.
func (a *Artifact) ModelVersion() string {
	short := a.Checksum
	if len(short) > 12 {
		short = short[:12]
	}
	if a.Version == "" {
		return short
	}
	return fmt.Sprintf("%s@%s", a.Version, short)
}

// Schema builds the feature schema.
func (a *Artifact) Schema() (*loan.Schema, error) {
	features := make([]loan.Feature, 0, len(a.Features))
	for i, spec := range a.Features {
		f, err := spec.feature()
		if err != nil {
			return nil, fmt.Errorf("feature %d (%s): %w", i, spec.Name, err)
		}
		features = append(features, f)
	}
	s, err := loan.NewSchema(features...)
	if err != nil {
		return nil, fmt.Errorf("building schema: %w", err)
	}
	return s, nil
}

// Predictor builds the scoring context for this artifact.
func (a *Artifact) Predictor() (*loan.Predictor, error) {
	s, err := a.Schema()
	if err != nil {
		return nil, err
	}
	return loan.NewPredictor(s, a.Model)
}

func (s FeatureSpec) feature() (loan.Feature, error) {
	var kind loan.Kind
	if err := kind.UnmarshalText([]byte(s.Kind)); err != nil {
		return loan.Feature{}, err
	}

	var f loan.Feature
	switch kind {
	case loan.KindBounded:
		if s.Min == nil || s.Max == nil {
			return loan.Feature{}, errors.New("bounded feature requires min and max")
		}
		f = loan.Bounded(s.Name, *s.Min, *s.Max)
	case loan.KindCategorical:
		f = loan.Categorical(s.Name, s.Categories)
	default:
		f = loan.Free(s.Name)
		if s.AllowNegative {
			f = f.WithNegative()
		}
	}

	if s.Default != nil {
		f = f.WithDefault(s.Default)
	}
	return f, nil
}

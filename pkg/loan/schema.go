package loan

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

const (
	FeatureAge            = "Age"
	FeatureCreditScore    = "Credit_Score"
	FeatureEmploymentType = "Employment_Type"

	EmploymentSalaried     = "Salaried"
	EmploymentSelfEmployed = "Self-Employed"
	EmploymentUnemployed   = "Unemployed"
)

// EmploymentTypes returns the training-time encoding of Employment_Type.
func EmploymentTypes() map[string]int {
	return map[string]int{
		EmploymentSalaried:     0,
		EmploymentSelfEmployed: 1,
		EmploymentUnemployed:   2,
	}
}

// Kind tags how a feature value is validated and encoded.
type Kind int

const (
	KindFree Kind = iota
	KindBounded
	KindCategorical
)

var kindNames = map[Kind]string{
	KindFree:        "free",
	KindBounded:     "bounded",
	KindCategorical: "categorical",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown feature kind: %q", string(b))
}

// Feature describes a single model input.
type Feature struct {
	Name string
	Kind Kind

	// Min and Max are inclusive bounds, used by KindBounded.
	Min float64
	Max float64

	// AllowNegative lets a KindFree feature take values below zero.
	AllowNegative bool

	// Default is the initial value offered to a user. It is never applied
	// unless a caller asks for defaults explicitly.
	Default any

	codes  map[string]int
	labels []string
}

// Free returns a feature accepting any finite value >= 0.
func Free(name string) Feature {
	return Feature{Name: name, Kind: KindFree}
}

// Bounded returns a feature accepting finite values within [min, max].
func Bounded(name string, min, max float64) Feature {
	return Feature{Name: name, Kind: KindBounded, Min: min, Max: max}
}

// Categorical returns a feature that maps labels to integer codes.
func Categorical(name string, codes map[string]int) Feature {
	f := Feature{Name: name, Kind: KindCategorical, codes: make(map[string]int, len(codes))}
	for label, code := range codes {
		f.codes[label] = code
		f.labels = append(f.labels, label)
	}
	slices.SortFunc(f.labels, func(a, b string) int {
		if d := f.codes[a] - f.codes[b]; d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	return f
}

// WithDefault returns a copy of f with the initial UI value set.
func (f Feature) WithDefault(v any) Feature {
	f.Default = v
	return f
}

// WithNegative returns a copy of f that accepts negative values.
func (f Feature) WithNegative() Feature {
	f.AllowNegative = true
	return f
}

// Label is the human readable feature name.
func (f Feature) Label() string {
	return strings.ReplaceAll(f.Name, "_", " ")
}

// Code returns the encoding of a categorical label.
func (f Feature) Code(label string) (int, bool) {
	c, ok := f.codes[label]
	return c, ok
}

// Labels returns the categorical labels ordered by code.
func (f Feature) Labels() []string {
	return slices.Clone(f.labels)
}

// Codes returns a copy of the categorical label encoding.
func (f Feature) Codes() map[string]int {
	out := make(map[string]int, len(f.codes))
	for k, v := range f.codes {
		out[k] = v
	}
	return out
}

func (f Feature) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("feature name cannot be empty")
	}
	switch f.Kind {
	case KindFree:
	case KindBounded:
		if math.IsNaN(f.Min) || math.IsNaN(f.Max) || f.Min > f.Max {
			return fmt.Errorf("feature %s: invalid bounds [%v, %v]", f.Name, f.Min, f.Max)
		}
	case KindCategorical:
		if len(f.codes) == 0 {
			return fmt.Errorf("feature %s: categorical feature requires at least one category", f.Name)
		}
	default:
		return fmt.Errorf("feature %s: unsupported kind %v", f.Name, f.Kind)
	}
	if f.Default != nil {
		if _, err := encodeValue(f, f.Default); err != nil {
			return fmt.Errorf("invalid default: %w", err)
		}
	}
	return nil
}

// Schema is the ordered, immutable list of features a model was fit on.
// Feature i pairs with model coefficient i.
type Schema struct {
	features []Feature
	index    map[string]int
}

// NewSchema validates the features and builds the name lookup table.
func NewSchema(features ...Feature) (*Schema, error) {
	if len(features) == 0 {
		return nil, errors.New("schema requires at least one feature")
	}

	s := &Schema{
		features: make([]Feature, len(features)),
		index:    make(map[string]int, len(features)),
	}
	for i, f := range features {
		if err := f.validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate feature: %s", f.Name)
		}
		s.index[f.Name] = i
		s.features[i] = f
	}
	return s, nil
}

// Len returns the number of features.
func (s *Schema) Len() int {
	return len(s.features)
}

// Names returns the feature names in model order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.features))
	for i, f := range s.features {
		names[i] = f.Name
	}
	return names
}

// Features returns a copy of the feature descriptors in model order.
func (s *Schema) Features() []Feature {
	return slices.Clone(s.features)
}

// Lookup returns the feature and its position by name.
func (s *Schema) Lookup(name string) (Feature, int, bool) {
	i, ok := s.index[name]
	if !ok {
		return Feature{}, -1, false
	}
	return s.features[i], i, true
}

// Defaults returns a record holding every feature's initial value. Features
// without a default are omitted.
func (s *Schema) Defaults() Record {
	r := make(Record, len(s.features))
	for _, f := range s.features {
		if f.Default != nil {
			r[f.Name] = f.Default
		}
	}
	return r
}

package loan

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Record maps feature names to raw applicant values. Numeric features take
// any Go number, json.Number, or a numeric string. Categorical features take
// the label string.
type Record map[string]any

// Encode turns a record into the numeric vector the model expects, in schema
// order. Every schema feature must be present and no other keys are allowed.
func Encode(s *Schema, r Record) ([]float64, error) {
	vec := make([]float64, len(s.features))
	for i, f := range s.features {
		raw, ok := r[f.Name]
		if !ok || raw == nil {
			return nil, featureErr(f.Name, nil, ErrMissingFeature)
		}
		v, err := encodeValue(f, raw)
		if err != nil {
			return nil, err
		}
		vec[i] = v
	}

	if len(r) > len(s.features) {
		var unknown []string
		for k := range r {
			if _, ok := s.index[k]; !ok {
				unknown = append(unknown, k)
			}
		}
		slices.Sort(unknown)
		return nil, featureErr(unknown[0], r[unknown[0]], ErrUnknownFeature)
	}

	return vec, nil
}

func encodeValue(f Feature, raw any) (float64, error) {
	if f.Kind == KindCategorical {
		label, ok := raw.(string)
		if !ok {
			return 0, featureErr(f.Name, raw, ErrInvalidCategory)
		}
		code, ok := f.codes[label]
		if !ok {
			return 0, featureErr(f.Name, raw, fmt.Errorf("%w (want one of: %s)",
				ErrInvalidCategory, strings.Join(f.labels, ", ")))
		}
		return float64(code), nil
	}

	v, err := toFloat(raw)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, featureErr(f.Name, raw, ErrInvalidNumber)
	}

	switch f.Kind {
	case KindBounded:
		if v < f.Min || v > f.Max {
			return 0, featureErr(f.Name, raw, fmt.Errorf("%w [%v, %v]", ErrOutOfRange, f.Min, f.Max))
		}
	case KindFree:
		if v < 0 && !f.AllowNegative {
			return 0, featureErr(f.Name, raw, fmt.Errorf("%w (must be >= 0)", ErrOutOfRange))
		}
	}
	return v, nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}

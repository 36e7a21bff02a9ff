package loan

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCategory   = errors.New("invalid category")
	ErrOutOfRange        = errors.New("value out of range")
	ErrInvalidNumber     = errors.New("invalid number")
	ErrMissingFeature    = errors.New("missing feature")
	ErrUnknownFeature    = errors.New("unknown feature")
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// FeatureError reports an input value that could not be encoded.
type FeatureError struct {
	Feature string
	Value   any
	Err     error
}

func (e *FeatureError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %v", e.Feature, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Feature, e.Err, e.Value)
}

func (e *FeatureError) Unwrap() error {
	return e.Err
}

// DimensionError reports a feature vector whose length does not match the
// model coefficients. It indicates a broken deployment, not bad input.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%v: model has %d coefficients, got %d values", ErrDimensionMismatch, e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// IsInputError reports whether err was caused by user supplied input and can
// be recovered from by asking for the input again.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrInvalidNumber) ||
		errors.Is(err, ErrMissingFeature) ||
		errors.Is(err, ErrUnknownFeature)
}

func featureErr(name string, v any, err error) error {
	return &FeatureError{Feature: name, Value: v, Err: err}
}

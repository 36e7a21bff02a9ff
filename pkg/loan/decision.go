package loan

import (
	"fmt"
	"strings"
)

const (
	// ApproveThreshold is the lowest probability that is approved outright.
	ApproveThreshold = 0.70
	// ReviewThreshold is the lowest probability sent to manual review.
	ReviewThreshold = 0.40
)

// Decision is the outcome for an approval probability.
type Decision int

const (
	Rejected Decision = iota
	ManualReview
	Approved
)

var decisionCodes = map[Decision]string{
	Rejected:     "rejected",
	ManualReview: "manual_review",
	Approved:     "approved",
}

// Decisions lists every decision from best to worst.
func Decisions() []Decision {
	return []Decision{Approved, ManualReview, Rejected}
}

// Decide maps a probability to a decision. Boundary values belong to the
// higher bucket.
func Decide(p float64) Decision {
	switch {
	case p >= ApproveThreshold:
		return Approved
	case p >= ReviewThreshold:
		return ManualReview
	default:
		return Rejected
	}
}

func (d Decision) String() string {
	switch d {
	case Approved:
		return "Approved"
	case ManualReview:
		return "Manual Review"
	case Rejected:
		return "Rejected"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Code is the stable machine form used in JSON, YAML, and storage.
func (d Decision) Code() string {
	if c, ok := decisionCodes[d]; ok {
		return c
	}
	return ""
}

func (d Decision) MarshalText() ([]byte, error) {
	c := d.Code()
	if c == "" {
		return nil, fmt.Errorf("invalid decision: %d", int(d))
	}
	return []byte(c), nil
}

func (d *Decision) UnmarshalText(b []byte) error {
	v, err := ParseDecision(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDecision accepts either the code or the display form.
func ParseDecision(s string) (Decision, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	for d, c := range decisionCodes {
		if c == norm {
			return d, nil
		}
	}
	return Rejected, fmt.Errorf("unknown decision: %q", s)
}

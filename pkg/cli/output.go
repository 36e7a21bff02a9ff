package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mchmarny/loanscore/pkg/data"
	"github.com/mchmarny/loanscore/pkg/loan"
)

const explanationCaption = "Odds Ratio > 1 increases approval likelihood, < 1 decreases it."

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

type explanation []loan.ExplanationRow

func (e explanation) writeTable(w io.Writer) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "FEATURE\tCOEFFICIENT\tODDS RATIO\tEFFECT")
	for _, r := range e {
		fmt.Fprintf(tw, "%s\t%.6f\t%.4f\t%s\n", r.Feature, r.Coefficient, r.OddsRatio, r.Effect())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, explanationCaption)
	return err
}

func (p *Prediction) writeTable(w io.Writer) error {
	fmt.Fprintf(w, "Approval Probability: %s\n", p.ProbabilityText)
	fmt.Fprintf(w, "Decision: %s\n", p.Decision)
	if p.ID != "" {
		fmt.Fprintf(w, "Assessment: %s\n", p.ID)
	}
	fmt.Fprintln(w)
	return explanation(p.Explanation).writeTable(w)
}

// FeatureView is the printable form of a schema feature.
type FeatureView struct {
	Name          string   `json:"name" yaml:"name"`
	Label         string   `json:"label" yaml:"label"`
	Kind          string   `json:"kind" yaml:"kind"`
	Min           *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max           *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	AllowNegative bool     `json:"allow_negative,omitempty" yaml:"allow_negative,omitempty"`
	Categories    []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Default       any      `json:"default,omitempty" yaml:"default,omitempty"`
}

// SchemaView lists the features a model expects, in model order.
type SchemaView struct {
	ModelVersion string        `json:"model_version" yaml:"model_version"`
	Features     []FeatureView `json:"features" yaml:"features"`
}

func newSchemaView(version string, s *loan.Schema) *SchemaView {
	v := &SchemaView{ModelVersion: version, Features: make([]FeatureView, 0, s.Len())}
	for _, f := range s.Features() {
		fv := FeatureView{
			Name:          f.Name,
			Label:         f.Label(),
			Kind:          f.Kind.String(),
			AllowNegative: f.AllowNegative,
			Default:       f.Default,
		}
		switch f.Kind {
		case loan.KindBounded:
			lo, hi := f.Min, f.Max
			fv.Min, fv.Max = &lo, &hi
		case loan.KindCategorical:
			fv.Categories = f.Labels()
		}
		v.Features = append(v.Features, fv)
	}
	return v
}

func (v *SchemaView) writeTable(w io.Writer) error {
	fmt.Fprintf(w, "Model: %s\n\n", v.ModelVersion)
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "FEATURE\tKIND\tRANGE\tDEFAULT")
	for _, f := range v.Features {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, f.Kind, f.valueRange(), formatValue(f.Default))
	}
	return tw.Flush()
}

func (f FeatureView) valueRange() string {
	switch {
	case f.Min != nil && f.Max != nil:
		return fmt.Sprintf("[%g, %g]", *f.Min, *f.Max)
	case len(f.Categories) > 0:
		return strings.Join(f.Categories, " | ")
	case f.AllowNegative:
		return "any"
	default:
		return ">= 0"
	}
}

func formatValue(v any) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}

type assessmentList []*data.Assessment

func (l assessmentList) writeTable(w io.Writer) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "ID\tCREATED\tSOURCE\tMODEL\tPROBABILITY\tDECISION")
	for _, a := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.CreatedAt.Format(time.RFC3339),
			a.Source, a.ModelVersion, loan.FormatProbability(a.Probability), a.Decision)
	}
	return tw.Flush()
}

type decisionCounts []data.DecisionCount

func (c decisionCounts) writeTable(w io.Writer) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "DECISION\tCOUNT")
	for _, dc := range c {
		fmt.Fprintf(tw, "%s\t%d\n", dc.Decision, dc.Count)
	}
	return tw.Flush()
}

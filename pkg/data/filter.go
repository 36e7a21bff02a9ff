package data

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
)

const filterCostLimit = 100000

// Filter is a compiled CEL expression over assessment fields:
// probability (double), decision (string code), model_version, source
// (strings), and created_at (timestamp). For example:
//
//	decision == "manual_review" && probability > 0.6
type Filter struct {
	expr string
	prg  cel.Program
}

// NewFilter compiles expr. Empty and non-bool expressions are errors.
func NewFilter(expr string) (*Filter, error) {
	if expr == "" {
		return nil, errors.New("filter expression required")
	}

	env, err := cel.NewEnv(
		cel.Variable("probability", cel.DoubleType),
		cel.Variable("decision", cel.StringType),
		cel.Variable("model_version", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("created_at", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("filter %q returns %s, want bool", expr, t)
	}

	prg, err := env.Program(ast, cel.CostLimit(filterCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

func (f *Filter) String() string {
	return f.expr
}

// Match evaluates the filter for an assessment. Expressions that do not
// produce a bool are errors.
func (f *Filter) Match(a *Assessment) (bool, error) {
	out, _, err := f.prg.Eval(map[string]any{
		"probability":   a.Probability,
		"decision":      a.Decision.Code(),
		"model_version": a.ModelVersion,
		"source":        a.Source,
		"created_at":    a.CreatedAt,
	})
	if err != nil {
		return false, fmt.Errorf("evaluating filter %q: %w", f.expr, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T, want bool", f.expr, out.Value())
	}
	return matched, nil
}

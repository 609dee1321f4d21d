// Package preselect applies a configurable lepton quality cut expressed in
// CEL before dilepton pairing.
//
// The expression sees one variable, `lep`, a map from branch name to
// double (pt, eta, phi, mass, calpt, pdgId, charge, matched, miniiso, ...).
// It must evaluate to a bool, for example:
//
//	lep.pt > 20.0 && lep.eta < 2.4 && lep.eta > -2.4
//
// Numeric literals should be written as doubles.
package preselect

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/banshee-data/dilepton/internal/objects"
)

// costLimit bounds evaluation work per lepton.
const costLimit = 100000

// Filter is a compiled preselection expression. A nil or empty Filter
// accepts every lepton. Safe for concurrent use.
type Filter struct {
	expr string
	prog cel.Program
}

// NewFilter compiles expr. An empty expr yields a pass-through filter.
func NewFilter(expr string) (*Filter, error) {
	if expr == "" {
		return &Filter{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("lep", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile preselection %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("preselection %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prog, err := env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return &Filter{expr: expr, prog: prog}, nil
}

// Expression returns the source expression.
func (f *Filter) Expression() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the expression against one lepton.
func (f *Filter) Match(lep *objects.PhysicsObject) (bool, error) {
	if f == nil || f.prog == nil {
		return true, nil
	}

	fields := lep.Fields()
	facts := make(map[string]any, len(fields))
	for k, v := range fields {
		facts[k] = v
	}

	out, _, err := f.prog.Eval(map[string]any{"lep": facts})
	if err != nil {
		return false, fmt.Errorf("evaluate preselection %q: %w", f.expr, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("preselection %q returned %T", f.expr, out.Value())
	}
	return matched, nil
}

// Apply returns the leptons that pass, in their original order.
func (f *Filter) Apply(leptons []*objects.PhysicsObject) ([]*objects.PhysicsObject, error) {
	if f == nil || f.prog == nil {
		return leptons, nil
	}
	out := make([]*objects.PhysicsObject, 0, len(leptons))
	for i, lep := range leptons {
		ok, err := f.Match(lep)
		if err != nil {
			return nil, fmt.Errorf("lepton %d: %w", i, err)
		}
		if ok {
			out = append(out, lep)
		}
	}
	return out, nil
}

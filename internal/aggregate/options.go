package aggregate

import (
	"errors"
	"fmt"

	"explainprof/internal/common"
)

// Kind selects the aggregation strategy applied to the raw profiles.
type Kind string

const (
	// KindPartial averages the per-instance curves (Partial Dependence).
	KindPartial Kind = "partial"
	// KindConditional computes a kernel-weighted local average (ICE style).
	KindConditional Kind = "conditional"
	// KindAccumulated cumulates bucket-averaged local changes (ALE).
	KindAccumulated Kind = "accumulated"
)

// VariableType restricts aggregation to numerical or categorical variables.
type VariableType string

const (
	Numerical   VariableType = "numerical"
	Categorical VariableType = "categorical"
)

var (
	ErrKind         = errors.New("aggregate: kind must be 'partial', 'conditional' or 'accumulated'")
	ErrVariableType = errors.New("aggregate: variable type must be 'numerical' or 'categorical'")
	// ErrNotCeterisParibus is returned when the Fit input is neither a single
	// profile container nor a homogeneous list of them.
	ErrNotCeterisParibus = errors.New("aggregate: input is not a CeterisParibus profile or a list of them")
	// ErrNoVariables is returned when the requested variable set does not
	// overlap the variables present in the profiles.
	ErrNoVariables = errors.New("aggregate: no variables match the requested set and type")
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPartial, KindConditional, KindAccumulated:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w, got %q", ErrKind, s)
}

func ParseVariableType(s string) (VariableType, error) {
	switch VariableType(s) {
	case Numerical, Categorical:
		return VariableType(s), nil
	}
	return "", fmt.Errorf("%w, got %q", ErrVariableType, s)
}

// Options configures the aggregation. All fields are fixed once the Profiles
// object is built.
type Options struct {
	Kind         Kind
	Variables    []string // nil means all variables of the requested type
	VariableType VariableType
	Groups       []string // grouping variable names, nil means no grouping
	Span         float64  // gaussian kernel sd as a fraction of the value range
	Center       bool     // shift accumulated curves to the mean prediction
	RandomSeed   *int64   // recorded for reproducibility metadata
	Verbose      bool     // progress bar during aggregation
}

// DefaultOptions mirrors the library defaults: plain Partial Dependence over
// all numerical variables, centered, span 0.25.
func DefaultOptions() Options {
	return Options{
		Kind:         KindPartial,
		VariableType: Numerical,
		Span:         common.DefaultSpan,
		Center:       true,
	}
}

func (o Options) validate() error {
	if _, err := ParseKind(string(o.Kind)); err != nil {
		return err
	}
	if _, err := ParseVariableType(string(o.VariableType)); err != nil {
		return err
	}
	if o.Span <= 0 || o.Span > 1 {
		return fmt.Errorf("aggregate: span must be in (0, 1], got %g", o.Span)
	}
	return nil
}

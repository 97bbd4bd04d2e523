// Package profile defines the Ceteris Paribus profile containers consumed by
// the aggregation pipeline. A Ceteris Paribus profile holds, per observation,
// the model prediction as one variable sweeps over a grid while all other
// variables stay fixed, together with the baseline prediction for each
// observation.
package profile

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResult is returned when a profile has no prediction rows.
	ErrEmptyResult = errors.New("profile: result table is empty")
	// ErrEmptyObservations is returned when a profile has no baseline observations.
	ErrEmptyObservations = errors.New("profile: observations table is empty")
)

// ProfileRow is one point of a per-instance prediction curve. Groups carries
// the observation's values for categorical variables that may later be used
// as grouping keys.
type ProfileRow struct {
	ID       string            `json:"id"`       // observation identifier
	Variable string            `json:"variable"` // swept variable name
	Value    Value             `json:"value"`    // grid value of the swept variable
	Yhat     float64           `json:"yhat"`     // model prediction at this grid value
	Label    string            `json:"label"`    // model label
	Groups   map[string]string `json:"groups,omitempty"`
}

// Observation is the baseline prediction for one sampled observation.
type Observation struct {
	ID    string  `json:"id"`
	Yhat  float64 `json:"yhat"`
	Label string  `json:"label"`
}

// CeterisParibus pairs the per-step prediction table with the baseline
// observation table it was computed from.
type CeterisParibus struct {
	Label        string        `json:"label"`
	Result       []ProfileRow  `json:"result"`
	Observations []Observation `json:"observations"`
}

// New validates and builds a CeterisParibus container. Rows without a model
// label inherit the container label.
func New(label string, result []ProfileRow, observations []Observation) (*CeterisParibus, error) {
	if len(result) == 0 {
		return nil, ErrEmptyResult
	}
	if len(observations) == 0 {
		return nil, ErrEmptyObservations
	}
	cp := &CeterisParibus{
		Label:        label,
		Result:       make([]ProfileRow, len(result)),
		Observations: make([]Observation, len(observations)),
	}
	copy(cp.Result, result)
	copy(cp.Observations, observations)
	for i := range cp.Result {
		if cp.Result[i].Label == "" {
			cp.Result[i].Label = label
		}
		if cp.Result[i].Variable == "" {
			return nil, fmt.Errorf("profile: result row %d has no variable name", i)
		}
	}
	for i := range cp.Observations {
		if cp.Observations[i].Label == "" {
			cp.Observations[i].Label = label
		}
	}
	return cp, nil
}

// Clone returns a deep copy of the profile.
func (cp *CeterisParibus) Clone() *CeterisParibus {
	out := &CeterisParibus{
		Label:        cp.Label,
		Result:       make([]ProfileRow, len(cp.Result)),
		Observations: make([]Observation, len(cp.Observations)),
	}
	copy(out.Result, cp.Result)
	copy(out.Observations, cp.Observations)
	for i, r := range cp.Result {
		if r.Groups != nil {
			g := make(map[string]string, len(r.Groups))
			for k, v := range r.Groups {
				g[k] = v
			}
			out.Result[i].Groups = g
		}
	}
	return out
}

// Variables lists the distinct variable names in first-seen order.
func (cp *CeterisParibus) Variables() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range cp.Result {
		if !seen[r.Variable] {
			seen[r.Variable] = true
			names = append(names, r.Variable)
		}
	}
	return names
}

// IsNumeric reports whether every grid value of the variable is numeric.
// A variable with no rows is not numeric.
func (cp *CeterisParibus) IsNumeric(variable string) bool {
	found := false
	for _, r := range cp.Result {
		if r.Variable != variable {
			continue
		}
		if !r.Value.IsNumeric() {
			return false
		}
		found = true
	}
	return found
}

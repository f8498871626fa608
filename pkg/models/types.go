package models

import (
	"fmt"
	"math"
	"time"
)

// ParameterSpec describes one tunable kernel knob
type ParameterSpec struct {
	Name     string   `json:"name" yaml:"name"`
	Lower    float64  `json:"lower" yaml:"lower"`
	Upper    float64  `json:"upper" yaml:"upper"`
	Encoding Encoding `json:"encoding" yaml:"encoding"`
}

// Contains reports whether v lies inside the inclusive bounds
func (p ParameterSpec) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= p.Lower && v <= p.Upper
}

// ParameterVector assigns one value to each ParameterSpec, in spec order
type ParameterVector []float64

// Clone returns a copy of the vector
func (v ParameterVector) Clone() ParameterVector {
	if v == nil {
		return nil
	}
	out := make(ParameterVector, len(v))
	copy(out, v)
	return out
}

// Equal reports whether both vectors hold exactly the same values
func (v ParameterVector) Equal(other ParameterVector) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

// ParameterSpace is the ordered decision-variable space of a run
type ParameterSpace struct {
	Specs []ParameterSpec
}

// NewParameterSpace creates a space from specs, keeping their order
func NewParameterSpace(specs []ParameterSpec) *ParameterSpace {
	cp := make([]ParameterSpec, len(specs))
	copy(cp, specs)
	return &ParameterSpace{Specs: cp}
}

// Dim returns the number of decision variables
func (s *ParameterSpace) Dim() int {
	return len(s.Specs)
}

// Lower returns the per-variable lower bounds
func (s *ParameterSpace) Lower() []float64 {
	out := make([]float64, len(s.Specs))
	for i, p := range s.Specs {
		out[i] = p.Lower
	}
	return out
}

// Upper returns the per-variable upper bounds
func (s *ParameterSpace) Upper() []float64 {
	out := make([]float64, len(s.Specs))
	for i, p := range s.Specs {
		out[i] = p.Upper
	}
	return out
}

// Check rejects vectors of the wrong length or with any component out of bounds.
// Out-of-bound values are never clamped.
func (s *ParameterSpace) Check(v ParameterVector) error {
	if len(v) != len(s.Specs) {
		return &OutOfBoundsError{Index: -1, Reason: fmt.Sprintf("expected %d components, got %d", len(s.Specs), len(v))}
	}
	for i, p := range s.Specs {
		if !p.Contains(v[i]) {
			return &OutOfBoundsError{
				Index:     i,
				Parameter: p.Name,
				Value:     v[i],
				Lower:     p.Lower,
				Upper:     p.Upper,
			}
		}
	}
	return nil
}

// Direction tells whether a metric is minimized or maximized
type Direction string

const (
	Minimize Direction = "minimize"
	Maximize Direction = "maximize"
)

// ObjectiveSpec names a benchmark metric and its optimization direction
type ObjectiveSpec struct {
	Name      string    `json:"name" yaml:"name"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// Normalize maps a raw metric value into minimization form.
// Maximized metrics are negated; nothing else is changed.
func (o ObjectiveSpec) Normalize(v float64) float64 {
	if o.Direction == Maximize {
		return -v
	}
	return v
}

// Denormalize is the inverse of Normalize
func (o ObjectiveSpec) Denormalize(v float64) float64 {
	return o.Normalize(v)
}

// Metrics is the flat raw metric mapping produced by one benchmark run
type Metrics map[string]float64

// Clone returns a copy of the metrics map
func (m Metrics) Clone() Metrics {
	if m == nil {
		return nil
	}
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into m, overwriting existing keys
func (m Metrics) Merge(other Metrics) {
	for k, v := range other {
		m[k] = v
	}
}

// ObjectiveVector holds sign-normalized objective values, one per ObjectiveSpec
type ObjectiveVector []float64

// Clone returns a copy of the vector
func (v ObjectiveVector) Clone() ObjectiveVector {
	if v == nil {
		return nil
	}
	out := make(ObjectiveVector, len(v))
	copy(out, v)
	return out
}

// Trial is the record of one reset-apply-run-extract cycle
type Trial struct {
	ID         string            `json:"id"`
	Generation int               `json:"generation"`
	Index      int               `json:"index"`
	Vector     ParameterVector   `json:"vector"`
	Encoded    map[string]string `json:"encoded"`
	Metrics    Metrics           `json:"metrics"`
	Objectives ObjectiveVector   `json:"objectives"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Duration returns the wall time spent in the trial
func (t *Trial) Duration() time.Duration {
	return t.FinishedAt.Sub(t.StartedAt)
}

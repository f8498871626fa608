package models

import "time"

// Solution is an evaluated point of the search population
type Solution struct {
	Vector     ParameterVector `json:"vector"`
	Objectives ObjectiveVector `json:"objectives"`
	// Rank is the non-domination front index, 0 being the Pareto front
	Rank int `json:"rank"`
	// Crowding is +Inf at front boundaries, so it is not serialized
	Crowding float64 `json:"-"`
}

// Clone returns a deep copy of the solution
func (s Solution) Clone() Solution {
	s.Vector = s.Vector.Clone()
	s.Objectives = s.Objectives.Clone()
	return s
}

// CloneSolutions deep-copies a slice of solutions
func CloneSolutions(in []Solution) []Solution {
	if in == nil {
		return nil
	}
	out := make([]Solution, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// GenerationRecord is the snapshot taken after a generation's survival step
type GenerationRecord struct {
	Generation         int        `json:"generation"`
	Evaluations        int        `json:"evaluations"`
	Population         []Solution `json:"population"`
	Front              []Solution `json:"front"`
	StalledGenerations int        `json:"stalled_generations"`
	FinishedAt         time.Time  `json:"finished_at"`
}

// ResultSet is the outcome of a completed optimization run
type ResultSet struct {
	Objectives []ObjectiveSpec `json:"objectives"`
	Parameters []ParameterSpec `json:"parameters"`
	// Front is the non-dominated subset of the final population
	Front      []Solution `json:"front"`
	Population []Solution `json:"population"`
	// History holds one record per generation when history is enabled
	History            []GenerationRecord `json:"history,omitempty"`
	Generations        int                `json:"generations"`
	Evaluations        int                `json:"evaluations"`
	StalledGenerations int                `json:"stalled_generations"`
	StartedAt          time.Time          `json:"started_at"`
	FinishedAt         time.Time          `json:"finished_at"`
}

// RawObjectives converts the sign-normalized objectives of s back to the
// benchmark's own units, in objective order
func RawObjectives(specs []ObjectiveSpec, s Solution) []float64 {
	out := make([]float64, len(s.Objectives))
	for i, v := range s.Objectives {
		if i < len(specs) {
			v = specs[i].Denormalize(v)
		}
		out[i] = v
	}
	return out
}

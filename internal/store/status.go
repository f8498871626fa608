package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// RunStatus is the coarse state of a tuning run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further updates will follow
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// RunSnapshot is a point-in-time copy of the live status
type RunSnapshot struct {
	RunID              string        `json:"run_id"`
	Status             RunStatus     `json:"status"`
	Workload           string        `json:"workload"`
	Generation         int           `json:"generation"`
	Generations        int           `json:"generations"`
	Evaluations        int           `json:"evaluations"`
	StalledGenerations int           `json:"stalled_generations"`
	Objectives         []string      `json:"objectives"`
	Error              string        `json:"error,omitempty"`
	CreatedAtUnixMs    int64         `json:"created_at_unix_ms"`
	StartedAtUnixMs    int64         `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs      int64         `json:"ended_at_unix_ms,omitempty"`
	LastTrial          *models.Trial `json:"last_trial,omitempty"`
	Front              []FrontEntry  `json:"-"`
}

// FrontEntry is a Pareto-optimal solution with objectives in the benchmark's own units
type FrontEntry struct {
	Vector     models.ParameterVector `json:"vector"`
	Objectives map[string]float64     `json:"objectives"`
}

// LiveStatus tracks the progress of the current run for the status servers.
// The optimizer writes it and server goroutines read it.
type LiveStatus struct {
	mu         sync.RWMutex
	snap       RunSnapshot
	objectives []models.ObjectiveSpec
	trials     []*models.Trial
	maxTrials  int
	listeners  []func(RunStatus)
}

// NewLiveStatus creates a pending status for a run
func NewLiveStatus(runID, workload string, generations int, objectives []models.ObjectiveSpec) *LiveStatus {
	names := make([]string, len(objectives))
	for i, o := range objectives {
		names[i] = o.Name
	}
	return &LiveStatus{
		snap: RunSnapshot{
			RunID:           runID,
			Status:          RunStatusPending,
			Workload:        workload,
			Generations:     generations,
			Objectives:      names,
			CreatedAtUnixMs: nowUnixMs(),
		},
		objectives: append([]models.ObjectiveSpec(nil), objectives...),
		maxTrials:  1000,
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// OnStatusChange registers fn to be called after every status transition
func (s *LiveStatus) OnStatusChange(fn func(RunStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetStatus moves the run to status, stamping start and end times
func (s *LiveStatus) SetStatus(status RunStatus, errMsg string) {
	s.mu.Lock()
	s.snap.Status = status
	if errMsg != "" {
		s.snap.Error = errMsg
	}
	switch {
	case status == RunStatusRunning:
		if s.snap.StartedAtUnixMs == 0 {
			s.snap.StartedAtUnixMs = nowUnixMs()
		}
	case status.Terminal():
		s.snap.EndedAtUnixMs = nowUnixMs()
	}
	listeners := append([]func(RunStatus){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
}

// Snapshot returns a copy of the current status
func (s *LiveStatus) Snapshot() RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Front = append([]FrontEntry(nil), s.snap.Front...)
	return snap
}

// Front returns the current Pareto front in benchmark units
func (s *LiveStatus) Front() []FrontEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FrontEntry(nil), s.snap.Front...)
}

// Trials returns up to limit of the most recent trials, oldest first
func (s *LiveStatus) Trials(limit int) []*models.Trial {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.trials) {
		limit = len(s.trials)
	}
	return append([]*models.Trial(nil), s.trials[len(s.trials)-limit:]...)
}

// OnTrial implements the optimizer observer
func (s *LiveStatus) OnTrial(trial *models.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trials = append(s.trials, trial)
	if len(s.trials) > s.maxTrials {
		s.trials = s.trials[len(s.trials)-s.maxTrials:]
	}
	s.snap.Evaluations++
	s.snap.Generation = trial.Generation
	s.snap.LastTrial = trial
	return nil
}

// OnGeneration implements the optimizer observer
func (s *LiveStatus) OnGeneration(record *models.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Generation = record.Generation
	s.snap.Evaluations = record.Evaluations
	s.snap.StalledGenerations = record.StalledGenerations
	s.snap.Front = s.frontEntries(record.Front)
	return nil
}

// OnFinish implements the optimizer observer
func (s *LiveStatus) OnFinish(result *models.ResultSet, err error) {
	if err != nil {
		status := RunStatusFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = RunStatusCancelled
		}
		s.SetStatus(status, err.Error())
		return
	}
	s.mu.Lock()
	if result != nil {
		// an empty result front keeps the one from the last generation
		if len(result.Front) > 0 {
			s.snap.Front = s.frontEntries(result.Front)
		}
		s.snap.Evaluations = result.Evaluations
		s.snap.StalledGenerations = result.StalledGenerations
	}
	s.mu.Unlock()
	s.SetStatus(RunStatusCompleted, "")
}

func (s *LiveStatus) frontEntries(front []models.Solution) []FrontEntry {
	out := make([]FrontEntry, len(front))
	for i, sol := range front {
		raw := models.RawObjectives(s.objectives, sol)
		objs := make(map[string]float64, len(raw))
		for j, v := range raw {
			if j < len(s.objectives) {
				objs[s.objectives[j].Name] = v
			}
		}
		out[i] = FrontEntry{Vector: sol.Vector.Clone(), Objectives: objs}
	}
	return out
}

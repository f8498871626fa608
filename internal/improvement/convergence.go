package improvement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// StagnationConfig holds configuration for stagnation detection
type StagnationConfig struct {
	// Window is the number of generations without a front change after which
	// the run is reported as stagnant
	Window int
}

// DefaultStagnationConfig returns a default stagnation configuration
func DefaultStagnationConfig() *StagnationConfig {
	return &StagnationConfig{Window: 3}
}

// StagnationMonitor tracks how many generations have passed since the
// Pareto front last changed. It only reports; the run always completes every configured generation.
type StagnationMonitor struct {
	config      *StagnationConfig
	lastFront   string
	stalled     int
	generations int
}

// NewStagnationMonitor creates a new stagnation monitor
func NewStagnationMonitor(config *StagnationConfig) *StagnationMonitor {
	if config == nil {
		config = DefaultStagnationConfig()
	}
	return &StagnationMonitor{config: config}
}

// Update records the front of a finished generation and returns the number
// of consecutive generations it has stayed unchanged
func (m *StagnationMonitor) Update(front []models.Solution) int {
	sig := frontSignature(front)
	if m.generations > 0 && sig == m.lastFront {
		m.stalled++
	} else {
		m.stalled = 0
	}
	m.lastFront = sig
	m.generations++
	return m.stalled
}

// Stalled returns the current count of unchanged generations
func (m *StagnationMonitor) Stalled() int {
	return m.stalled
}

// Stagnant reports whether the stalled count has reached the window, with a reason
func (m *StagnationMonitor) Stagnant() (bool, string) {
	if m.config.Window <= 0 || m.stalled < m.config.Window {
		return false, ""
	}
	return true, fmt.Sprintf("pareto front unchanged for %d generations", m.stalled)
}

// frontSignature is an order-independent key of the front's objective vectors
func frontSignature(front []models.Solution) string {
	keys := make([]string, len(front))
	for i, s := range front {
		keys[i] = fmt.Sprint([]float64(s.Objectives))
	}
	sort.Strings(keys)
	return strings.Join(keys, ";")
}

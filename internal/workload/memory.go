package workload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// Metric keys printed by the synthetic memory benchmarks
var memoryFormats = map[string][]string{
	"thp_bench": {"elapsed_seconds", "bandwidth_GBps", "minor_faults", "major_faults"},
	"probe": {
		"time_sec", "throughput_MBps",
		"d_thp_fault_alloc", "d_thp_fault_fallback", "d_thp_collapse_alloc", "d_thp_split_page",
		"d_pgfault", "d_pgmajfault",
	},
}

// MemoryRunner runs a benchmark that touches a large buffer and prints one JSON report on stdout
type MemoryRunner struct {
	argv     []string
	provides []string
	opts     Options
	log      *slog.Logger
}

// NewMemoryRunner creates a memory benchmark runner
func NewMemoryRunner(cfg config.MemoryWorkload, opts Options) (*MemoryRunner, error) {
	provides, ok := memoryFormats[cfg.Format]
	if !ok {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("unknown memory benchmark format %q", cfg.Format)}
	}
	if len(cfg.Command) == 0 {
		return nil, &models.ConfigurationError{Reason: "memory benchmark command is empty"}
	}
	return &MemoryRunner{
		argv:     append([]string(nil), cfg.Command...),
		provides: provides,
		opts:     opts,
		log:      logger.Component("workload"),
	}, nil
}

// Name returns the runner name
func (r *MemoryRunner) Name() string { return "memory" }

// Provides lists the report keys of the configured format
func (r *MemoryRunner) Provides() []string {
	return append([]string(nil), r.provides...)
}

// Run executes the benchmark and keeps every numeric report field
func (r *MemoryRunner) Run(ctx context.Context) (models.Metrics, error) {
	cmd := r.opts.command(r.argv)
	res, err := r.opts.Commands.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	obj, err := ParseJSONObject(res.Stdout, cmd.Name+" stdout")
	if err != nil {
		return nil, err
	}
	metrics := NumericFields(obj)
	r.log.Debug("memory benchmark finished", "metrics", metrics)
	return metrics, nil
}

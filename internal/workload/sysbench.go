package workload

import (
	"context"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// timeFormat makes GNU time print its resource report as JSON
const timeFormat = `{"time": %e, "res": %M, "maj": %F, "min": %R}`

var sysbenchMetrics = []string{"time", "res", "maj", "min"}

// SysbenchRunner runs sysbench memory pinned to one CPU and measured by /usr/bin/time
type SysbenchRunner struct {
	cfg  config.SysbenchWorkload
	opts Options
}

// NewSysbenchRunner creates a sysbench runner
func NewSysbenchRunner(cfg config.SysbenchWorkload, opts Options) *SysbenchRunner {
	return &SysbenchRunner{cfg: cfg, opts: opts}
}

// Name returns the runner name
func (r *SysbenchRunner) Name() string { return "sysbench" }

// Provides lists the GNU time fields: elapsed seconds, max RSS in KiB, major and minor faults
func (r *SysbenchRunner) Provides() []string {
	return append([]string(nil), sysbenchMetrics...)
}

// Argv returns the full command line
func (r *SysbenchRunner) Argv() []string {
	argv := []string{
		r.cfg.TimeBinary, "-f", timeFormat, "-a",
		"taskset", "-c", r.cfg.CPU,
		r.cfg.Binary, "--verbosity=0", "memory",
		"--memory_block_size=" + r.cfg.BlockSize,
		"--memory_total_size=" + r.cfg.TotalSize,
		"--memory_access_mode=" + r.cfg.AccessMode,
	}
	argv = append(argv, r.cfg.ExtraArgs...)
	return append(argv, "run")
}

// Run executes sysbench and parses the time report from stderr
func (r *SysbenchRunner) Run(ctx context.Context) (models.Metrics, error) {
	res, err := r.opts.Commands.Run(ctx, r.opts.command(r.Argv()))
	if err != nil {
		return nil, err
	}
	obj, err := ParseJSONObject(res.Stderr, "time stderr")
	if err != nil {
		return nil, err
	}
	metrics := make(models.Metrics, len(sysbenchMetrics))
	for _, key := range sysbenchMetrics {
		v, err := LookupJSONPath(obj, "time stderr", key)
		if err != nil {
			return nil, err
		}
		metrics[key] = v
	}
	return metrics, nil
}

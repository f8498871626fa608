package workload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

var memtierMetrics = []string{"throughput", "latency", "fragmentation"}

// MemtierRunner drives memtier_benchmark against a redis server restarted
// before every run so no data survives between trials
type MemtierRunner struct {
	cfg  config.MemtierWorkload
	opts Options
	log  *slog.Logger
}

// NewMemtierRunner creates a memtier runner
func NewMemtierRunner(cfg config.MemtierWorkload, opts Options) *MemtierRunner {
	return &MemtierRunner{cfg: cfg, opts: opts, log: logger.Component("workload")}
}

// Name returns the runner name
func (r *MemtierRunner) Name() string { return "memtier" }

// Provides lists set throughput (ops/sec), p99.9 set latency (ms) and the redis fragmentation ratio
func (r *MemtierRunner) Provides() []string {
	return append([]string(nil), memtierMetrics...)
}

// Argv returns the benchmark command line writing its JSON report to outFile
func (r *MemtierRunner) Argv(outFile string) []string {
	argv := []string{r.cfg.Binary, "--protocol=redis", "--json-out-file=" + outFile}
	for _, k := range sortedKeys(r.cfg.Params) {
		argv = append(argv, fmt.Sprintf("--%s=%s", k, r.cfg.Params[k]))
	}
	return argv
}

// Run restarts redis, waits until it answers, benchmarks it and reads its memory report
func (r *MemtierRunner) Run(ctx context.Context) (models.Metrics, error) {
	if _, err := r.opts.Commands.Run(ctx, r.opts.command(r.cfg.RestartCommand)); err != nil {
		return nil, err
	}
	if err := r.waitReady(ctx); err != nil {
		return nil, err
	}

	out, err := os.CreateTemp(r.opts.Dir, "memtier-*.json")
	if err != nil {
		return nil, &models.BenchmarkExecutionError{Command: []string{r.cfg.Binary}, Err: err}
	}
	outFile := out.Name()
	out.Close()
	defer os.Remove(outFile)

	if _, err := r.opts.Commands.Run(ctx, r.opts.command(r.Argv(outFile))); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		return nil, &models.BenchmarkParseError{Source: outFile, Err: err}
	}
	obj, err := ParseJSONObject(data, "memtier json")
	if err != nil {
		return nil, err
	}
	throughput, err := LookupJSONPath(obj, "memtier json", "ALL STATS", "Sets", "Ops/sec")
	if err != nil {
		return nil, err
	}
	latency, err := LookupJSONPath(obj, "memtier json", "ALL STATS", "Sets", "Percentile Latencies", "p99.90")
	if err != nil {
		return nil, err
	}

	res, err := r.opts.Commands.Run(ctx, r.opts.command(r.cfg.InfoCommand))
	if err != nil {
		return nil, err
	}
	fragmentation, err := LookupFloat(ParseKeyValueReport(res.Stdout), "redis info memory", "mem_fragmentation_ratio")
	if err != nil {
		return nil, err
	}

	metrics := models.Metrics{
		"throughput":    throughput,
		"latency":       latency,
		"fragmentation": fragmentation,
	}
	r.log.Debug("memtier finished", "metrics", metrics)
	return metrics, nil
}

// waitReady polls the ping command until redis answers PONG
func (r *MemtierRunner) waitReady(ctx context.Context) error {
	backoff := utils.NewExponentialBackoff(r.cfg.ReadyBackoff, 10*r.cfg.ReadyBackoff, 2, false)
	ping := r.opts.command(r.cfg.PingCommand)
	err := utils.PollUntil(ctx, r.opts.Clock, backoff, r.cfg.ReadyAttempts, func() (bool, error) {
		res, err := r.opts.Commands.Run(ctx, ping)
		if err != nil {
			return false, err
		}
		reply := strings.TrimSpace(string(res.Stdout))
		if reply != "PONG" {
			return false, fmt.Errorf("unexpected ping reply %q", reply)
		}
		return true, nil
	})
	if err != nil {
		return &models.BenchmarkExecutionError{Command: ping.Argv(), Err: fmt.Errorf("redis not ready: %w", err)}
	}
	return nil
}

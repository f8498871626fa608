package workload

import (
	"context"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/host"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

// Runner executes one benchmark run and returns its raw metrics
type Runner interface {
	Name() string
	// Provides lists every metric key a successful run reports
	Provides() []string
	Run(ctx context.Context) (models.Metrics, error)
}

// Options carries what every runner needs from the host
type Options struct {
	Commands host.CommandRunner
	Clock    utils.Clock
	Timeout  time.Duration
	Dir      string
}

// New builds the runner selected by cfg.Type
func New(cfg config.Workload, commands host.CommandRunner, clock utils.Clock) (Runner, error) {
	if clock == nil {
		clock = utils.RealClock{}
	}
	opts := Options{Commands: commands, Clock: clock, Timeout: cfg.Timeout, Dir: cfg.Dir}
	switch cfg.Type {
	case "memory":
		return NewMemoryRunner(cfg.Memory, opts)
	case "sysbench":
		return NewSysbenchRunner(cfg.Sysbench, opts), nil
	case "memtier":
		return NewMemtierRunner(cfg.Memtier, opts), nil
	default:
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("unknown workload type %q", cfg.Type)}
	}
}

func (o Options) command(argv []string) host.Command {
	cmd := host.CommandFromArgv(argv)
	cmd.Dir = o.Dir
	cmd.Timeout = o.Timeout
	return cmd
}

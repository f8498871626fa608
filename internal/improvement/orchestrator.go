package improvement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/evaluation"
	"github.com/GoSim-25-26J-441/thp-tuner/internal/host"
	"github.com/GoSim-25-26J-441/thp-tuner/internal/metrics"
	"github.com/GoSim-25-26J-441/thp-tuner/internal/store"
	"github.com/GoSim-25-26J-441/thp-tuner/internal/workload"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

// OrchestratorOptions overrides the host bindings; zero values use the real machine
type OrchestratorOptions struct {
	FS        host.FileSystem
	Commands  host.CommandRunner
	Clock     utils.Clock
	Collector *metrics.Collector
	// Observers receive every event after the store, status and metrics observers
	Observers []Observer
	RunID     string
}

// Orchestrator builds every component of a tuning run from a Config and runs it
type Orchestrator struct {
	cfg        *config.Config
	runID      string
	clock      utils.Clock
	controller *host.Controller
	evaluator  *evaluation.Evaluator
	collector  *metrics.Collector
	status     *store.LiveStatus
	observers  []Observer
	log        *slog.Logger

	mu        sync.Mutex
	started   bool
	optimizer *Optimizer
}

// NewOrchestrator wires the evaluator and its host bindings. It touches
// nothing on the host: configuration problems, including objectives the
// workload cannot report, surface here as *models.ConfigurationError.
func NewOrchestrator(cfg *config.Config, opts OrchestratorOptions) (*Orchestrator, error) {
	if cfg == nil {
		return nil, &models.ConfigurationError{Reason: "configuration is required"}
	}
	if opts.FS == nil {
		opts.FS = host.NewOSFileSystem(cfg.Host.Root)
	}
	if opts.Commands == nil {
		opts.Commands = host.OSCommandRunner{}
	}
	if opts.Clock == nil {
		opts.Clock = utils.RealClock{}
	}
	if opts.Collector == nil {
		opts.Collector = metrics.NewCollector()
	}
	if opts.RunID == "" {
		opts.RunID = utils.GenerateRunID()
	}

	space := models.NewParameterSpace(cfg.Parameters)
	controller := host.NewController(opts.FS)
	resetter := host.NewResetter(opts.Commands, opts.FS, opts.Clock, host.ResetOptions{
		SyncCommand:        cfg.Reset.SyncCommand,
		DropCachesPath:     cfg.Reset.DropCachesPath,
		DropCachesValue:    cfg.Reset.DropCachesValue,
		CompactMemoryPath:  cfg.Reset.CompactMemoryPath,
		CompactMemoryValue: cfg.Reset.CompactMemoryValue,
		Settle:             cfg.Reset.Settle,
	})
	runner, err := workload.New(cfg.Workload, opts.Commands, opts.Clock)
	if err != nil {
		return nil, err
	}

	var probes []evaluation.Probe
	if cfg.Probes.VMStat {
		probes = append(probes, host.NewVMStatProbe(opts.FS, cfg.Probes.VMStatPath))
	}
	if cfg.Probes.ExtFrag {
		probes = append(probes, host.NewExtFragProbe(opts.FS, cfg.Probes.UnusableIndexPath))
	}

	evaluator, err := evaluation.NewEvaluator(evaluation.Config{
		Space:      space,
		Objectives: cfg.Objectives,
		Resetter:   resetter,
		Applier:    controller,
		Runner:     runner,
		Probes:     probes,
		Clock:      opts.Clock,
		Phases:     opts.Collector,
	})
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:        cfg,
		runID:      opts.RunID,
		clock:      opts.Clock,
		controller: controller,
		evaluator:  evaluator,
		collector:  opts.Collector,
		status:     store.NewLiveStatus(opts.RunID, cfg.Workload.Type, cfg.Search.Generations, cfg.Objectives),
		observers:  opts.Observers,
		log:        logger.Component("orchestrator").With("run_id", opts.RunID),
	}, nil
}

// RunID returns the identifier of the run
func (o *Orchestrator) RunID() string { return o.runID }

// Status returns the live status fed by the run
func (o *Orchestrator) Status() *store.LiveStatus { return o.status }

// Collector returns the metrics collector fed by the run
func (o *Orchestrator) Collector() *metrics.Collector { return o.collector }

// State returns the optimizer state, or initialized before Run
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.optimizer == nil {
		return StateInitialized
	}
	return o.optimizer.State()
}

// Run creates the result directory, applies the setup writes and runs the
// search to completion. The result directory must not exist yet.
func (o *Orchestrator) Run(ctx context.Context) (*models.ResultSet, error) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil, fmt.Errorf("run %s already started", o.runID)
	}
	o.started = true
	o.mu.Unlock()

	artifacts, err := store.CreateRunDir(o.cfg.Output.Dir)
	if err != nil {
		return nil, o.abort(err)
	}
	if err := artifacts.WriteConfig(o.cfg); err != nil {
		return nil, o.abort(err)
	}

	db, err := store.OpenDB(store.DBConfig{
		Path:   artifacts.Path(store.TrialsDB),
		Logger: logger.Component("badger"),
	})
	if err != nil {
		return nil, o.abort(err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			o.log.Warn("failed to close trial database", "error", cerr)
		}
	}()

	algorithm, err := NewNSGA2(o.evaluator.Space(), NSGA2Options{
		PopulationSize:      o.cfg.Search.PopulationSize,
		OffspringSize:       o.cfg.Search.OffspringSize,
		EliminateDuplicates: o.cfg.Search.DedupEnabled(),
		Seed:                o.cfg.Search.Seed,
	})
	if err != nil {
		return nil, o.abort(err)
	}
	if err := db.SaveRunInfo(store.RunInfo{
		RunID:     o.runID,
		Workload:  o.cfg.Workload.Type,
		Seed:      algorithm.Seed(),
		StartedAt: o.clock.Now().UTC().UnixMilli(),
	}); err != nil {
		return nil, o.abort(err)
	}

	if err := o.controller.Setup(setupSettings(o.cfg.Setup)); err != nil {
		return nil, o.abort(fmt.Errorf("setup: %w", err))
	}

	observers := Observers{db, o.status, NewMetricsObserver(o.collector)}
	observers = append(observers, o.observers...)
	optimizer := NewOptimizer(algorithm, o.evaluator, OptimizerOptions{
		Generations: o.cfg.Search.Generations,
		SaveHistory: o.cfg.Search.HistoryEnabled(),
		Observer:    observers,
		Clock:       o.clock,
	})
	o.mu.Lock()
	o.optimizer = optimizer
	o.mu.Unlock()

	o.log.Info("starting tuning run",
		"workload", o.cfg.Workload.Type,
		"parameters", o.evaluator.Space().Dim(),
		"objectives", len(o.cfg.Objectives),
		"population", o.cfg.Search.PopulationSize,
		"offspring", o.cfg.Search.OffspringSize,
		"generations", o.cfg.Search.Generations,
		"seed", algorithm.Seed(),
		"output", artifacts.Dir())
	o.collector.Start()
	o.status.SetStatus(store.RunStatusRunning, "")

	result, err := optimizer.Optimize(ctx)
	if err != nil {
		return nil, err
	}
	if err := artifacts.WriteResult(result); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	o.log.Info("results saved", "dir", artifacts.Dir(), "front_size", len(result.Front))
	return result, nil
}

// abort records a failure that happened before the optimizer took over
func (o *Orchestrator) abort(err error) error {
	o.log.Error("run aborted", "error", err)
	o.status.SetStatus(store.RunStatusFailed, err.Error())
	return err
}

func setupSettings(writes []config.Write) []host.Setting {
	out := make([]host.Setting, len(writes))
	for i, w := range writes {
		out[i] = host.Setting{Path: w.Path, Value: w.Value}
	}
	return out
}

package improvement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

// State is the lifecycle state of an optimization run
type State string

const (
	StateInitialized State = "initialized"
	StateEvaluating  State = "evaluating_generation"
	StateAdvancing   State = "advancing"
	StateTerminated  State = "terminated"
	StateFailed      State = "failed"
)

// Evaluator runs one trial for a candidate vector
type Evaluator interface {
	EvaluateAt(ctx context.Context, generation, index int, vector models.ParameterVector) (*models.Trial, error)
	Space() *models.ParameterSpace
	ObjectiveSpecs() []models.ObjectiveSpec
}

// OptimizerOptions configures the generational loop
type OptimizerOptions struct {
	// Generations counts every generation, the initial population included.
	// Values below 1 run the initial population only.
	Generations int
	SaveHistory bool
	Observer    Observer
	Stagnation  *StagnationConfig
	Clock       utils.Clock
}

// Optimizer drives an Algorithm generation by generation, evaluating every
// candidate serially in the order the algorithm proposed them
type Optimizer struct {
	algorithm Algorithm
	evaluator Evaluator
	opts      OptimizerOptions
	monitor   *StagnationMonitor
	log       *slog.Logger

	mu          sync.RWMutex
	state       State
	generation  int
	evaluations int
}

// NewOptimizer creates a new optimizer
func NewOptimizer(algorithm Algorithm, evaluator Evaluator, opts OptimizerOptions) *Optimizer {
	if opts.Observer == nil {
		opts.Observer = Observers(nil)
	}
	if opts.Clock == nil {
		opts.Clock = utils.RealClock{}
	}
	if opts.Generations < 1 {
		opts.Generations = 1
	}
	return &Optimizer{
		algorithm: algorithm,
		evaluator: evaluator,
		opts:      opts,
		monitor:   NewStagnationMonitor(opts.Stagnation),
		log:       logger.Component("improvement"),
		state:     StateInitialized,
	}
}

// State returns the current lifecycle state
func (o *Optimizer) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// GetGeneration returns the generation being evaluated or last completed
func (o *Optimizer) GetGeneration() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.generation
}

// GetEvaluations returns the number of trials evaluated so far
func (o *Optimizer) GetEvaluations() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.evaluations
}

// Optimize runs exactly opts.Generations generations: the initial population
// is generation 0 and each later one evaluates a batch of offspring. Any trial error aborts the run and
// no ResultSet is returned. Cancellation is honored between trials only.
func (o *Optimizer) Optimize(ctx context.Context) (*models.ResultSet, error) {
	if o.State() != StateInitialized {
		return nil, fmt.Errorf("optimizer already ran (state %s)", o.State())
	}

	started := o.opts.Clock.Now()
	progress := newProgressReporter(o.log, o.opts.Generations, started, o.opts.Clock)
	var history []models.GenerationRecord

	for gen := 0; gen < o.opts.Generations; gen++ {
		record, err := o.runGeneration(ctx, gen)
		if err != nil {
			return nil, o.fail(err)
		}
		if o.opts.SaveHistory {
			history = append(history, *record)
		}
		if err := o.opts.Observer.OnGeneration(record); err != nil {
			return nil, o.fail(fmt.Errorf("record generation %d: %w", gen, err))
		}
		progress.report(record)
		if stagnant, reason := o.monitor.Stagnant(); stagnant {
			o.log.Info("search is stagnating", "generation", gen, "reason", reason)
		}
	}

	population := o.algorithm.Population()
	result := &models.ResultSet{
		Objectives:         o.evaluator.ObjectiveSpecs(),
		Parameters:         o.evaluator.Space().Specs,
		Front:              ParetoFront(population),
		Population:         population,
		History:            history,
		Generations:        o.opts.Generations,
		Evaluations:        o.GetEvaluations(),
		StalledGenerations: o.monitor.Stalled(),
		StartedAt:          started,
		FinishedAt:         o.opts.Clock.Now(),
	}
	o.setState(StateTerminated)
	o.log.Info("optimization finished",
		"generations", result.Generations,
		"evaluations", result.Evaluations,
		"front_size", len(result.Front),
		"duration", utils.FormatDuration(result.FinishedAt.Sub(started)))
	o.opts.Observer.OnFinish(result, nil)
	return result, nil
}

// runGeneration asks for a batch, evaluates it in order and tells the results back
func (o *Optimizer) runGeneration(ctx context.Context, gen int) (*models.GenerationRecord, error) {
	o.mu.Lock()
	o.generation = gen
	o.state = StateEvaluating
	o.mu.Unlock()

	vectors, err := o.algorithm.Ask()
	if err != nil {
		return nil, fmt.Errorf("generation %d: ask: %w", gen, err)
	}
	o.log.Debug("evaluating generation", "generation", gen, "candidates", len(vectors))

	objectives := make([]models.ObjectiveVector, len(vectors))
	for i, v := range vectors {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation %d: stopped before trial %d: %w", gen, i, err)
		}
		trial, err := o.evaluator.EvaluateAt(ctx, gen, i, v)
		if err != nil {
			return nil, fmt.Errorf("generation %d trial %d: %w", gen, i, err)
		}
		o.mu.Lock()
		o.evaluations++
		o.mu.Unlock()
		if err := o.opts.Observer.OnTrial(trial); err != nil {
			return nil, fmt.Errorf("generation %d trial %d: record: %w", gen, i, err)
		}
		objectives[i] = trial.Objectives
	}

	o.setState(StateAdvancing)
	if err := o.algorithm.Tell(vectors, objectives); err != nil {
		return nil, fmt.Errorf("generation %d: tell: %w", gen, err)
	}

	population := o.algorithm.Population()
	front := ParetoFront(population)
	return &models.GenerationRecord{
		Generation:         gen,
		Evaluations:        o.GetEvaluations(),
		Population:         population,
		Front:              front,
		StalledGenerations: o.monitor.Update(front),
		FinishedAt:         o.opts.Clock.Now(),
	}, nil
}

func (o *Optimizer) fail(err error) error {
	o.setState(StateFailed)
	o.log.Error("optimization failed", "generation", o.GetGeneration(), "error", err)
	o.opts.Observer.OnFinish(nil, err)
	return err
}

func (o *Optimizer) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

// progressReporter logs one line per generation with an estimate of the time left
type progressReporter struct {
	log     *slog.Logger
	total   int
	started time.Time
	clock   utils.Clock
}

func newProgressReporter(log *slog.Logger, total int, started time.Time, clock utils.Clock) *progressReporter {
	return &progressReporter{log: log, total: total, started: started, clock: clock}
}

func (p *progressReporter) report(record *models.GenerationRecord) {
	done := record.Generation + 1
	elapsed := p.clock.Now().Sub(p.started)
	remaining := time.Duration(0)
	if done < p.total {
		remaining = elapsed / time.Duration(done) * time.Duration(p.total-done)
	}
	p.log.Info("generation complete",
		"generation", record.Generation,
		"progress", fmt.Sprintf("%d/%d", done, p.total),
		"evaluations", record.Evaluations,
		"front_size", len(record.Front),
		"stalled", record.StalledGenerations,
		"elapsed", utils.FormatDuration(elapsed),
		"remaining", utils.FormatDuration(remaining))
}

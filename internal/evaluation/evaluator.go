package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/telemetry"
	"github.com/GoSim-25-26J-441/thp-tuner/internal/workload"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

// Phase names used for spans and timings
const (
	PhaseReset   = "reset"
	PhaseApply   = "apply"
	PhaseRun     = "run"
	PhaseExtract = "extract"
)

// Resetter restores the host to a known state before a trial
type Resetter interface {
	Reset(ctx context.Context) error
}

// Applier writes an encoded parameter vector to the host
type Applier interface {
	Apply(specs []models.ParameterSpec, vector models.ParameterVector) (map[string]string, error)
}

// Probe collects host-side metrics around a benchmark run
type Probe interface {
	Name() string
	Provides() []string
	Before(ctx context.Context) error
	After(ctx context.Context) (models.Metrics, error)
}

// PhaseObserver receives the duration of each trial phase
type PhaseObserver interface {
	ObservePhase(phase string, d time.Duration)
}

// Config holds the evaluator's collaborators
type Config struct {
	Space      *models.ParameterSpace
	Objectives []models.ObjectiveSpec
	Resetter   Resetter
	Applier    Applier
	Runner     workload.Runner
	Probes     []Probe
	Clock      utils.Clock
	Tracer     trace.Tracer
	Phases     PhaseObserver
}

// Evaluator maps one parameter vector to one objective vector by running a
// full reset, apply, run and extract cycle on the host
type Evaluator struct {
	space      *models.ParameterSpace
	objectives []models.ObjectiveSpec
	resetter   Resetter
	applier    Applier
	runner     workload.Runner
	probes     []Probe
	clock      utils.Clock
	tracer     trace.Tracer
	phases     PhaseObserver
	log        *slog.Logger
}

// NewEvaluator creates an evaluator. Objectives that neither the runner nor a
// probe can report are rejected here, before any trial touches the host.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if cfg.Space == nil || cfg.Space.Dim() == 0 {
		return nil, &models.ConfigurationError{Reason: "parameter space is empty"}
	}
	if len(cfg.Objectives) == 0 {
		return nil, &models.ConfigurationError{Reason: "no objectives"}
	}
	if cfg.Resetter == nil || cfg.Applier == nil || cfg.Runner == nil {
		return nil, &models.ConfigurationError{Reason: "evaluator needs a resetter, an applier and a runner"}
	}

	provided := [][]string{cfg.Runner.Provides()}
	for _, p := range cfg.Probes {
		provided = append(provided, p.Provides())
	}
	if missing := MissingObjectives(cfg.Objectives, provided...); len(missing) > 0 {
		return nil, &models.ConfigurationError{
			Reason: fmt.Sprintf("workload %s cannot report objectives: %s", cfg.Runner.Name(), strings.Join(missing, ", ")),
		}
	}

	if cfg.Clock == nil {
		cfg.Clock = utils.RealClock{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.Tracer()
	}
	return &Evaluator{
		space:      cfg.Space,
		objectives: append([]models.ObjectiveSpec(nil), cfg.Objectives...),
		resetter:   cfg.Resetter,
		applier:    cfg.Applier,
		runner:     cfg.Runner,
		probes:     cfg.Probes,
		clock:      cfg.Clock,
		tracer:     cfg.Tracer,
		phases:     cfg.Phases,
		log:        logger.Component("evaluation"),
	}, nil
}

// Space returns the parameter space
func (e *Evaluator) Space() *models.ParameterSpace { return e.space }

// ObjectiveSpecs returns the objectives in output order
func (e *Evaluator) ObjectiveSpecs() []models.ObjectiveSpec {
	return append([]models.ObjectiveSpec(nil), e.objectives...)
}

// Objectives evaluates vector and returns only its objective vector
func (e *Evaluator) Objectives(ctx context.Context, vector models.ParameterVector) (models.ObjectiveVector, error) {
	trial, err := e.Evaluate(ctx, vector)
	if err != nil {
		return nil, err
	}
	return trial.Objectives, nil
}

// Evaluate runs one trial outside any generation
func (e *Evaluator) Evaluate(ctx context.Context, vector models.ParameterVector) (*models.Trial, error) {
	return e.EvaluateAt(ctx, 0, 0, vector)
}

// EvaluateAt runs one trial and labels it with its position in the search.
// Cancelling ctx does not interrupt a started trial; only the benchmark timeout can.
func (e *Evaluator) EvaluateAt(ctx context.Context, generation, index int, vector models.ParameterVector) (*models.Trial, error) {
	if err := e.space.Check(vector); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	ctx, span := e.tracer.Start(ctx, "trial", trace.WithAttributes(
		attribute.Int("generation", generation),
		attribute.Int("index", index),
		attribute.Float64Slice("vector", vector),
	))
	defer span.End()

	trial := &models.Trial{
		ID:         utils.GenerateID(),
		Generation: generation,
		Index:      index,
		Vector:     vector.Clone(),
		StartedAt:  e.clock.Now(),
	}

	err := e.phase(ctx, PhaseReset, func(ctx context.Context) error {
		return e.resetter.Reset(ctx)
	})
	if err == nil {
		err = e.phase(ctx, PhaseApply, func(ctx context.Context) error {
			encoded, err := e.applier.Apply(e.space.Specs, vector)
			trial.Encoded = encoded
			return err
		})
	}
	if err == nil {
		err = e.phase(ctx, PhaseRun, func(ctx context.Context) error {
			metrics, err := e.run(ctx)
			trial.Metrics = metrics
			return err
		})
	}
	if err == nil {
		err = e.phase(ctx, PhaseExtract, func(ctx context.Context) error {
			objectives, err := Extract(trial.Metrics, e.objectives)
			trial.Objectives = objectives
			return err
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	trial.FinishedAt = e.clock.Now()
	e.log.Debug("trial evaluated",
		"generation", generation,
		"index", index,
		"params", trial.Encoded,
		"metrics", trial.Metrics,
		"duration", utils.FormatDuration(trial.Duration()))
	return trial, nil
}

// run executes the benchmark bracketed by the probes and merges their metrics
func (e *Evaluator) run(ctx context.Context) (models.Metrics, error) {
	for _, p := range e.probes {
		if err := p.Before(ctx); err != nil {
			return nil, fmt.Errorf("probe %s: %w", p.Name(), err)
		}
	}
	metrics, err := e.runner.Run(ctx)
	if err != nil {
		return nil, err
	}
	metrics = metrics.Clone()
	if metrics == nil {
		metrics = make(models.Metrics)
	}
	for _, p := range e.probes {
		extra, err := p.After(ctx)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", p.Name(), err)
		}
		metrics.Merge(extra)
	}
	return metrics, nil
}

func (e *Evaluator) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, name)
	defer span.End()

	start := e.clock.Now()
	err := fn(ctx)
	if e.phases != nil {
		e.phases.ObservePhase(name, e.clock.Now().Sub(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

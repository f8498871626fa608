package improvement

import (
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// Observer receives optimizer progress. An error from OnTrial or
// OnGeneration aborts the run, since the trial could not be recorded.
type Observer interface {
	OnTrial(trial *models.Trial) error
	OnGeneration(record *models.GenerationRecord) error
	// OnFinish is called exactly once, with either a result or the error that ended the run
	OnFinish(result *models.ResultSet, err error)
}

// Observers fans every event out to each observer in order
type Observers []Observer

// OnTrial notifies every observer, stopping at the first error
func (o Observers) OnTrial(trial *models.Trial) error {
	for _, obs := range o {
		if err := obs.OnTrial(trial); err != nil {
			return err
		}
	}
	return nil
}

// OnGeneration notifies every observer, stopping at the first error
func (o Observers) OnGeneration(record *models.GenerationRecord) error {
	for _, obs := range o {
		if err := obs.OnGeneration(record); err != nil {
			return err
		}
	}
	return nil
}

// OnFinish notifies every observer
func (o Observers) OnFinish(result *models.ResultSet, err error) {
	for _, obs := range o {
		obs.OnFinish(result, err)
	}
}

// MetricsSink is the subset of the metrics collector the optimizer feeds
type MetricsSink interface {
	ObserveTrial(trial *models.Trial)
	ObserveFailure(err error)
	ObserveGeneration(generation, frontSize, stalled int)
	Stop()
}

// metricsObserver adapts a MetricsSink to Observer
type metricsObserver struct {
	sink MetricsSink
}

// NewMetricsObserver records trials and generations into sink
func NewMetricsObserver(sink MetricsSink) Observer {
	return &metricsObserver{sink: sink}
}

func (m *metricsObserver) OnTrial(trial *models.Trial) error {
	m.sink.ObserveTrial(trial)
	return nil
}

func (m *metricsObserver) OnGeneration(record *models.GenerationRecord) error {
	m.sink.ObserveGeneration(record.Generation, len(record.Front), record.StalledGenerations)
	return nil
}

// OnFinish counts err as a failed trial only when a trial caused it;
// cancellation and setup errors stop the run without a trial outcome.
func (m *metricsObserver) OnFinish(result *models.ResultSet, err error) {
	if models.IsTrialFailure(err) {
		m.sink.ObserveFailure(err)
	}
	m.sink.Stop()
}

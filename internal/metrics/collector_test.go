package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

func trial(metrics models.Metrics) *models.Trial {
	start := time.Unix(100, 0)
	return &models.Trial{Metrics: metrics, StartedAt: start, FinishedAt: start.Add(3 * time.Second)}
}

func TestCollectorObserveTrial(t *testing.T) {
	c := NewCollector()
	c.ObserveTrial(trial(models.Metrics{"throughput": 100}))
	c.ObserveTrial(trial(models.Metrics{"throughput": 300}))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.trials.WithLabelValues("ok")))
	assert.Equal(t, 300.0, testutil.ToFloat64(c.lastMetric.WithLabelValues("throughput")))

	agg := c.GetAggregation("throughput")
	require.NotNil(t, agg)
	assert.Equal(t, int64(2), agg.Count)
	assert.Equal(t, 200.0, agg.Mean)
	assert.Equal(t, 100.0, agg.Min)
	assert.Equal(t, 300.0, agg.Max)
	assert.Nil(t, c.GetAggregation("latency"))
	assert.Equal(t, []string{"throughput"}, c.GetMetricNames())
}

func TestCollectorObserveFailure(t *testing.T) {
	c := NewCollector()
	c.ObserveFailure(fmt.Errorf("trial 3: %w", &models.BenchmarkParseError{Key: "latency"}))
	c.ObserveFailure(&models.ResetError{Step: "sync"})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.trials.WithLabelValues(FailureParse)))
	summary := c.GetSummary()
	assert.Equal(t, map[string]int{FailureParse: 1, FailureReset: 1}, summary.Failures)
}

func TestCollectorGeneration(t *testing.T) {
	c := NewCollector()
	c.ObserveGeneration(4, 3, 2)
	assert.Equal(t, 4.0, testutil.ToFloat64(c.generation))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.frontSize))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.stalled))
}

func TestCollectorRegistryGathers(t *testing.T) {
	c := NewCollector()
	c.ObservePhase("reset", 1500*time.Millisecond)
	families, err := c.Registry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["thptune_trial_phase_duration_seconds"])
	assert.True(t, names["go_goroutines"])
}

func TestSummaryPhaseTimings(t *testing.T) {
	c := NewCollector()
	c.ObservePhase("reset", 1500*time.Millisecond)
	c.ObservePhase("reset", 500*time.Millisecond)
	c.ObservePhase("benchmark", 10*time.Second)

	phases := c.GetSummary().Phases
	require.Len(t, phases, 2)
	assert.Equal(t, uint64(2), phases["reset"].Count)
	assert.Equal(t, 2*time.Second, phases["reset"].Total)
	assert.Equal(t, uint64(1), phases["benchmark"].Count)
}

func TestPercentileCalculation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 3.0, calculatePercentile(sorted, 0.5))
	assert.Equal(t, 5.0, calculatePercentile(sorted, 1))
	assert.Equal(t, 0.0, calculatePercentile(nil, 0.5))
	assert.Equal(t, 7.0, calculatePercentile([]float64{7}, 0.99))
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, FailureOutOfBounds, FailureKind(&models.OutOfBoundsError{}))
	assert.Equal(t, FailureApply, FailureKind(&models.ApplyError{}))
	assert.Equal(t, FailureExecution, FailureKind(&models.BenchmarkExecutionError{}))
	assert.Equal(t, FailureOther, FailureKind(errors.New("x")))
}

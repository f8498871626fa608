package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

const namespace = "thptune"

// Collector records trial and generation metrics. Everything is exported to
// prometheus through a private registry; raw benchmark values are also kept
// in memory so a run summary can be computed at the end.
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time

	registry *prometheus.Registry

	trials        *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	trialDuration prometheus.Histogram
	generation    prometheus.Gauge
	frontSize     prometheus.Gauge
	stalled       prometheus.Gauge
	lastMetric    *prometheus.GaugeVec

	// Raw benchmark metric name -> one value per successful trial
	series   map[string][]float64
	failures map[string]int
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		startTime: time.Now(),
		registry:  reg,
		trials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_total",
			Help:      "Trials evaluated, by outcome.",
		}, []string{"status"}),
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trial_phase_duration_seconds",
			Help:      "Time spent in each trial phase.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"phase"}),
		trialDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trial_duration_seconds",
			Help:      "Wall time of a whole trial.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		generation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Last completed generation.",
		}),
		frontSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pareto_front_size",
			Help:      "Non-dominated solutions in the current population.",
		}),
		stalled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stalled_generations",
			Help:      "Generations since the Pareto front last changed.",
		}),
		lastMetric: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "benchmark_metric",
			Help:      "Raw benchmark metric of the last successful trial.",
		}, []string{"metric"}),
		series:   make(map[string][]float64),
		failures: make(map[string]int),
	}
}

// Registry returns the registry to expose over HTTP
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Start marks the start of the run
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Stop marks the end of the run
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// ObservePhase records the duration of one trial phase
func (c *Collector) ObservePhase(phase string, d time.Duration) {
	c.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveTrial records a successful trial
func (c *Collector) ObserveTrial(trial *models.Trial) {
	c.trials.WithLabelValues("ok").Inc()
	c.trialDuration.Observe(trial.Duration().Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, v := range trial.Metrics {
		c.series[name] = append(c.series[name], v)
		c.lastMetric.WithLabelValues(name).Set(v)
	}
}

// ObserveFailure records a failed trial by error kind
func (c *Collector) ObserveFailure(err error) {
	kind := FailureKind(err)
	c.trials.WithLabelValues(kind).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[kind]++
}

// ObserveGeneration records generation progress
func (c *Collector) ObserveGeneration(generation, frontSize, stalled int) {
	c.generation.Set(float64(generation))
	c.frontSize.Set(float64(frontSize))
	c.stalled.Set(float64(stalled))
}

// GetAggregation returns statistics over every recorded value of a benchmark metric
func (c *Collector) GetAggregation(name string) *Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return calculateAggregation(c.series[name])
}

// GetSummary returns a summary of the run
func (c *Collector) GetSummary() *Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	end := c.endTime
	if end.IsZero() {
		end = time.Now()
	}
	summary := &Summary{
		StartTime:    c.startTime,
		EndTime:      c.endTime,
		Duration:     end.Sub(c.startTime),
		Failures:     make(map[string]int, len(c.failures)),
		Aggregations: make(map[string]*Aggregation, len(c.series)),
	}
	for kind, n := range c.failures {
		summary.Failures[kind] = n
	}
	summary.Phases = c.phaseTimings()
	for name, values := range c.series {
		if agg := calculateAggregation(values); agg != nil {
			summary.Aggregations[name] = agg
			if int(agg.Count) > summary.Trials {
				summary.Trials = int(agg.Count)
			}
		}
	}
	return summary
}

// phaseTimings reads the phase histogram back from the registry
func (c *Collector) phaseTimings() map[string]PhaseTiming {
	families, err := c.registry.Gather()
	if err != nil {
		return nil
	}
	out := make(map[string]PhaseTiming)
	for _, mf := range families {
		if mf.GetName() != namespace+"_trial_phase_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			h := m.GetHistogram()
			out[labelValue(m, "phase")] = PhaseTiming{
				Count: h.GetSampleCount(),
				Total: time.Duration(h.GetSampleSum() * float64(time.Second)),
			}
		}
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// GetMetricNames returns the benchmark metrics seen so far, sorted
func (c *Collector) GetMetricNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.series))
	for name := range c.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// calculateAggregation calculates aggregated statistics from values
func calculateAggregation(values []float64) *Aggregation {
	if len(values) == 0 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return &Aggregation{
		Count: int64(len(sorted)),
		Sum:   sum,
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / float64(len(sorted)),
		P50:   calculatePercentile(sorted, 0.50),
		P95:   calculatePercentile(sorted, 0.95),
		P99:   calculatePercentile(sorted, 0.99),
	}
}

// calculatePercentile calculates the percentile value from a sorted slice
func calculatePercentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return 0.0
	}
	if len(sortedValues) == 1 {
		return sortedValues[0]
	}

	index := p * float64(len(sortedValues)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sortedValues) {
		return sortedValues[len(sortedValues)-1]
	}

	weight := index - float64(lower)
	return sortedValues[lower]*(1-weight) + sortedValues[upper]*weight
}

package evaluation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/host"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

const (
	defragPath = "/sys/kernel/mm/transparent_hugepage/defrag"
	scanPath   = "/sys/kernel/mm/transparent_hugepage/khugepaged/pages_to_scan"
)

type fakeRunner struct {
	provides []string
	metrics  models.Metrics
	err      error
	onRun    func()
	calls    int
}

func (f *fakeRunner) Name() string       { return "fake" }
func (f *fakeRunner) Provides() []string { return f.provides }
func (f *fakeRunner) Run(ctx context.Context) (models.Metrics, error) {
	f.calls++
	if f.onRun != nil {
		f.onRun()
	}
	return f.metrics, f.err
}

type phaseRecorder struct {
	phases []string
}

func (p *phaseRecorder) ObservePhase(phase string, d time.Duration) {
	p.phases = append(p.phases, phase)
}

type fixture struct {
	fs       *host.MemFileSystem
	commands *host.ScriptedRunner
	runner   *fakeRunner
	phases   *phaseRecorder
	eval     *Evaluator
}

func newFixture(t *testing.T, objectives []models.ObjectiveSpec, runner *fakeRunner, probes ...Probe) *fixture {
	t.Helper()
	fs := host.NewMemFileSystem(nil)
	commands := host.NewScriptedRunner().On("sync", host.ScriptedResponse{})
	clock := utils.NewFakeClock(time.Unix(1700000000, 0))
	resetter := host.NewResetter(commands, fs, clock, host.ResetOptions{
		SyncCommand:        []string{"sync"},
		DropCachesPath:     "/proc/sys/vm/drop_caches",
		DropCachesValue:    "3",
		CompactMemoryPath:  "/proc/sys/vm/compact_memory",
		CompactMemoryValue: "1",
		Settle:             time.Second,
	})
	phases := &phaseRecorder{}
	eval, err := NewEvaluator(Config{
		Space: models.NewParameterSpace([]models.ParameterSpec{
			{Name: defragPath, Lower: 0, Upper: 1, Encoding: models.Encoding{Kind: models.EncodingThreshold, States: []string{"defer", "always"}}},
			{Name: scanPath, Lower: 100, Upper: 20000},
		}),
		Objectives: objectives,
		Resetter:   resetter,
		Applier:    host.NewController(fs),
		Runner:     runner,
		Probes:     probes,
		Clock:      clock,
		Phases:     phases,
	})
	require.NoError(t, err)
	return &fixture{fs: fs, commands: commands, runner: runner, phases: phases, eval: eval}
}

var throughputLatency = []models.ObjectiveSpec{
	{Name: "throughput", Direction: models.Maximize},
	{Name: "latency", Direction: models.Minimize},
}

func TestEvaluateNormalizesSigns(t *testing.T) {
	runner := &fakeRunner{
		provides: []string{"throughput", "latency", "fragmentation"},
		metrics:  models.Metrics{"throughput": 1000, "latency": 1.2, "fragmentation": 1.1},
	}
	f := newFixture(t, throughputLatency, runner)

	obj, err := f.eval.Objectives(context.Background(), models.ParameterVector{0.7, 4096})
	require.NoError(t, err)
	assert.Equal(t, models.ObjectiveVector{-1000, 1.2}, obj)
}

func TestEvaluateMissingMetric(t *testing.T) {
	runner := &fakeRunner{
		provides: []string{"throughput", "latency"},
		metrics:  models.Metrics{"throughput": 1000},
	}
	f := newFixture(t, throughputLatency, runner)

	obj, err := f.eval.Objectives(context.Background(), models.ParameterVector{0.2, 100})
	assert.Nil(t, obj)
	var parseErr *models.BenchmarkParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "latency", parseErr.Key)
}

func TestEvaluateStepOrder(t *testing.T) {
	runner := &fakeRunner{provides: []string{"time"}, metrics: models.Metrics{"time": 12.5}}
	f := newFixture(t, []models.ObjectiveSpec{{Name: "time", Direction: models.Minimize}}, runner)
	runner.onRun = func() {
		assert.Equal(t, []host.WriteRecord{
			{Path: "/proc/sys/vm/drop_caches", Value: "3"},
			{Path: "/proc/sys/vm/compact_memory", Value: "1"},
			{Path: defragPath, Value: "defer"},
			{Path: scanPath, Value: "100"},
		}, f.fs.Writes())
	}

	trial, err := f.eval.EvaluateAt(context.Background(), 2, 3, models.ParameterVector{0.5, 100.9})
	require.NoError(t, err)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, []string{PhaseReset, PhaseApply, PhaseRun, PhaseExtract}, f.phases.phases)

	assert.Equal(t, 2, trial.Generation)
	assert.Equal(t, 3, trial.Index)
	assert.NotEmpty(t, trial.ID)
	assert.Equal(t, map[string]string{defragPath: "defer", scanPath: "100"}, trial.Encoded)
	assert.Equal(t, models.ObjectiveVector{12.5}, trial.Objectives)
	assert.Equal(t, time.Second, trial.Duration())
}

func TestEvaluateRejectsOutOfBounds(t *testing.T) {
	runner := &fakeRunner{provides: []string{"time"}, metrics: models.Metrics{"time": 1}}
	f := newFixture(t, []models.ObjectiveSpec{{Name: "time", Direction: models.Minimize}}, runner)

	_, err := f.eval.Evaluate(context.Background(), models.ParameterVector{0.5, 20001})
	var oob *models.OutOfBoundsError
	require.True(t, errors.As(err, &oob))
	assert.Empty(t, f.fs.Writes())
	assert.Empty(t, f.commands.Calls())
	assert.Zero(t, runner.calls)
}

func TestEvaluateApplyFailureStopsBeforeRun(t *testing.T) {
	runner := &fakeRunner{provides: []string{"time"}, metrics: models.Metrics{"time": 1}}
	f := newFixture(t, []models.ObjectiveSpec{{Name: "time", Direction: models.Minimize}}, runner)
	f.fs.FailWrites(scanPath, errors.New("invalid argument"))

	_, err := f.eval.Evaluate(context.Background(), models.ParameterVector{1, 500})
	var applyErr *models.ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Equal(t, scanPath, applyErr.Path)
	assert.Zero(t, runner.calls)
}

func TestEvaluateBenchmarkFailure(t *testing.T) {
	runner := &fakeRunner{
		provides: []string{"time"},
		err:      &models.BenchmarkExecutionError{Command: []string{"sysbench"}, ExitCode: 1},
	}
	f := newFixture(t, []models.ObjectiveSpec{{Name: "time", Direction: models.Minimize}}, runner)

	trial, err := f.eval.Evaluate(context.Background(), models.ParameterVector{1, 500})
	assert.Nil(t, trial)
	var execErr *models.BenchmarkExecutionError
	assert.True(t, errors.As(err, &execErr))
}

func TestEvaluateIgnoresCancellationOnceStarted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{provides: []string{"time"}, metrics: models.Metrics{"time": 3}}
	f := newFixture(t, []models.ObjectiveSpec{{Name: "time", Direction: models.Minimize}}, runner)
	cancel()

	obj, err := f.eval.Objectives(ctx, models.ParameterVector{0, 100})
	require.NoError(t, err)
	assert.Equal(t, models.ObjectiveVector{3}, obj)
}

func TestEvaluateMergesProbeMetrics(t *testing.T) {
	runner := &fakeRunner{provides: []string{"time"}, metrics: models.Metrics{"time": 3}}
	fs := host.NewMemFileSystem(map[string]string{"/idx": "Node 0, zone   Normal 0 0 0 0 0 0 0 0 0.5 0.5 0.5\n"})
	probe := host.NewExtFragProbe(fs, "/idx")
	f := newFixture(t, []models.ObjectiveSpec{
		{Name: "time", Direction: models.Minimize},
		{Name: "host_frag_score", Direction: models.Minimize},
	}, runner, probe)

	trial, err := f.eval.Evaluate(context.Background(), models.ParameterVector{0, 100})
	require.NoError(t, err)
	assert.Equal(t, models.ObjectiveVector{3, 500}, trial.Objectives)
	assert.Equal(t, 500.0, trial.Metrics["host_frag_score"])
}

func TestNewEvaluatorRejectsUnreportableObjective(t *testing.T) {
	_, err := NewEvaluator(Config{
		Space:      models.NewParameterSpace([]models.ParameterSpec{{Name: scanPath, Lower: 1, Upper: 2}}),
		Objectives: []models.ObjectiveSpec{{Name: "throughput", Direction: models.Maximize}},
		Resetter:   host.NewResetter(host.NewScriptedRunner(), host.NewMemFileSystem(nil), nil, host.ResetOptions{}),
		Applier:    host.NewController(host.NewMemFileSystem(nil)),
		Runner:     &fakeRunner{provides: []string{"time", "res"}},
	})
	var cfgErr *models.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "throughput")
}

func TestExtract(t *testing.T) {
	obj, err := Extract(models.Metrics{"a": 1, "b": 2, "c": 3}, []models.ObjectiveSpec{
		{Name: "c", Direction: models.Maximize},
		{Name: "a", Direction: models.Minimize},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ObjectiveVector{-3, 1}, obj)
}

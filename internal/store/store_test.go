package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

var testObjectives = []models.ObjectiveSpec{
	{Name: "throughput", Direction: models.Maximize},
	{Name: "latency", Direction: models.Minimize},
}

func testTrial(gen, idx int) *models.Trial {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Trial{
		ID:         fmt.Sprintf("id-%d-%d", gen, idx),
		Generation: gen,
		Index:      idx,
		Vector:     models.ParameterVector{0.25, float64(100 + idx)},
		Encoded:    map[string]string{"/sys/kernel/mm/transparent_hugepage/defrag": "defer"},
		Metrics:    models.Metrics{"throughput": 1000, "latency": 1.2},
		Objectives: models.ObjectiveVector{-1000, 1.2},
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}
}

func openMem(t *testing.T) *TrialDB {
	t.Helper()
	db, err := OpenDB(DBConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTrialDBOrdersByGenerationAndIndex(t *testing.T) {
	db := openMem(t)

	for _, k := range [][2]int{{1, 0}, {0, 2}, {0, 0}, {0, 10}, {0, 1}} {
		require.NoError(t, db.OnTrial(testTrial(k[0], k[1])))
	}

	trials, err := db.ListTrials()
	require.NoError(t, err)
	require.Len(t, trials, 5)
	var order [][2]int
	for _, tr := range trials {
		order = append(order, [2]int{tr.Generation, tr.Index})
	}
	assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {0, 2}, {0, 10}, {1, 0}}, order)
	assert.Equal(t, models.ObjectiveVector{-1000, 1.2}, trials[0].Objectives)
	assert.Equal(t, "defer", trials[0].Encoded["/sys/kernel/mm/transparent_hugepage/defrag"])
}

func TestTrialDBDropsNonFiniteMetrics(t *testing.T) {
	db := openMem(t)
	trial := testTrial(0, 0)
	trial.Metrics["d_thp_fault_alloc"] = math.NaN()

	require.NoError(t, db.SaveTrial(trial))
	trials, err := db.ListTrials()
	require.NoError(t, err)
	require.Len(t, trials, 1)
	assert.NotContains(t, trials[0].Metrics, "d_thp_fault_alloc")
	assert.Contains(t, trial.Metrics, "d_thp_fault_alloc", "caller's trial must not be modified")
}

func TestTrialDBGenerationsAndRunInfo(t *testing.T) {
	db := openMem(t)
	for gen := 2; gen >= 0; gen-- {
		require.NoError(t, db.OnGeneration(&models.GenerationRecord{Generation: gen, Evaluations: 5 * (gen + 1)}))
	}
	require.NoError(t, db.SaveRunInfo(RunInfo{RunID: "run-1", Workload: "memtier", Seed: 42}))

	gens, err := db.ListGenerations()
	require.NoError(t, err)
	require.Len(t, gens, 3)
	for i, g := range gens {
		assert.Equal(t, i, g.Generation)
	}

	info, err := db.RunInfo()
	require.NoError(t, err)
	assert.Equal(t, "run-1", info.RunID)
	assert.Equal(t, int64(42), info.Seed)
}

func TestTrialDBPersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), TrialsDB)
	db, err := OpenDB(DBConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, db.SaveTrial(testTrial(0, 0)))
	require.NoError(t, db.Close())

	db, err = OpenDB(DBConfig{Path: path})
	require.NoError(t, err)
	defer db.Close()
	trials, err := db.ListTrials()
	require.NoError(t, err)
	assert.Len(t, trials, 1)
}

func TestOpenDBRequiresPath(t *testing.T) {
	_, err := OpenDB(DBConfig{})
	assert.Error(t, err)
}

func TestCreateRunDirRefusesExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results", "run-1")

	a, err := CreateRunDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, a.Dir())

	_, err = CreateRunDir(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunDirExists))
}

func TestArtifactsRoundTrip(t *testing.T) {
	a, err := CreateRunDir(filepath.Join(t.TempDir(), "run"))
	require.NoError(t, err)

	cfg, err := config.ParseConfigYAMLString(`
parameters:
  - name: /sys/kernel/mm/transparent_hugepage/khugepaged/pages_to_scan
    lower: 100
    upper: 20000
objectives:
  - name: throughput
    direction: maximize
workload:
  type: memory
  memory:
    command: ["sh", "-c", "echo {}"]
output:
  dir: /tmp/out
`)
	require.NoError(t, err)
	require.NoError(t, a.WriteConfig(cfg))
	loaded, err := a.ReadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg.Parameters, loaded.Parameters)

	front := []models.Solution{{Vector: models.ParameterVector{0.7, 4096}, Objectives: models.ObjectiveVector{-1000, 1.2}}}
	result := &models.ResultSet{
		Objectives:  testObjectives,
		Front:       front,
		Population:  front,
		History:     []models.GenerationRecord{{Generation: 0, Front: front}},
		Generations: 0,
		Evaluations: 5,
	}
	require.NoError(t, a.WriteResult(result))
	assert.FileExists(t, a.Path(ResultFile))
	assert.FileExists(t, a.Path(HistoryFile))

	opened, err := OpenRunDir(a.Dir())
	require.NoError(t, err)
	got, err := opened.ReadResult()
	require.NoError(t, err)
	assert.Equal(t, front, got.Front)
	assert.Equal(t, 5, got.Evaluations)
	require.Len(t, got.History, 1)
	assert.Equal(t, front, got.History[0].Front)
}

func TestWriteResultWithoutHistory(t *testing.T) {
	a, err := CreateRunDir(filepath.Join(t.TempDir(), "run"))
	require.NoError(t, err)
	require.NoError(t, a.WriteResult(&models.ResultSet{Evaluations: 3}))

	_, err = os.Stat(a.Path(HistoryFile))
	assert.True(t, os.IsNotExist(err))

	got, err := a.ReadResult()
	require.NoError(t, err)
	assert.Empty(t, got.History)
}

func TestOpenRunDirMissing(t *testing.T) {
	_, err := OpenRunDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLiveStatusLifecycle(t *testing.T) {
	s := NewLiveStatus("run-1", "memtier", 2, testObjectives)
	var seen []RunStatus
	s.OnStatusChange(func(st RunStatus) { seen = append(seen, st) })

	snap := s.Snapshot()
	assert.Equal(t, RunStatusPending, snap.Status)
	assert.Equal(t, []string{"throughput", "latency"}, snap.Objectives)

	s.SetStatus(RunStatusRunning, "")
	require.NoError(t, s.OnTrial(testTrial(0, 0)))
	require.NoError(t, s.OnTrial(testTrial(0, 1)))
	require.NoError(t, s.OnGeneration(&models.GenerationRecord{
		Generation:  0,
		Evaluations: 2,
		Front:       []models.Solution{{Vector: models.ParameterVector{0.25, 100}, Objectives: models.ObjectiveVector{-1000, 1.2}}},
	}))

	snap = s.Snapshot()
	assert.Equal(t, 2, snap.Evaluations)
	assert.NotZero(t, snap.StartedAtUnixMs)
	require.Len(t, s.Front(), 1)
	assert.Equal(t, map[string]float64{"throughput": 1000, "latency": 1.2}, s.Front()[0].Objectives)

	trials := s.Trials(1)
	require.Len(t, trials, 1)
	assert.Equal(t, 1, trials[0].Index)
	assert.Len(t, s.Trials(0), 2)

	s.OnFinish(&models.ResultSet{Evaluations: 15}, nil)
	snap = s.Snapshot()
	assert.Equal(t, RunStatusCompleted, snap.Status)
	assert.Equal(t, 15, snap.Evaluations)
	require.Len(t, s.Front(), 1, "an empty result front keeps the last generation's front")
	assert.Equal(t, models.ParameterVector{0.25, 100}, s.Front()[0].Vector)
	assert.NotZero(t, snap.EndedAtUnixMs)
	assert.Equal(t, []RunStatus{RunStatusRunning, RunStatusCompleted}, seen)
}

func TestLiveStatusFailure(t *testing.T) {
	s := NewLiveStatus("run-1", "memory", 1, testObjectives)
	s.OnFinish(nil, &models.BenchmarkParseError{Source: "memtier", Key: "throughput"})
	snap := s.Snapshot()
	assert.Equal(t, RunStatusFailed, snap.Status)
	assert.Contains(t, snap.Error, "throughput")

	c := NewLiveStatus("run-2", "memory", 1, testObjectives)
	c.OnFinish(nil, fmt.Errorf("generation 0: %w", context.Canceled))
	assert.Equal(t, RunStatusCancelled, c.Snapshot().Status)
	assert.True(t, c.Snapshot().Status.Terminal())
}

func TestLiveStatusFinishReplacesFront(t *testing.T) {
	s := NewLiveStatus("run-1", "memtier", 2, testObjectives)
	require.NoError(t, s.OnGeneration(&models.GenerationRecord{
		Front: []models.Solution{{Vector: models.ParameterVector{0.25, 100}, Objectives: models.ObjectiveVector{-1000, 1.2}}},
	}))
	s.OnFinish(&models.ResultSet{Front: []models.Solution{
		{Vector: models.ParameterVector{1, 4096}, Objectives: models.ObjectiveVector{-2000, 0.8}},
		{Vector: models.ParameterVector{0, 512}, Objectives: models.ObjectiveVector{-500, 0.3}},
	}}, nil)

	front := s.Front()
	require.Len(t, front, 2)
	assert.Equal(t, map[string]float64{"throughput": 2000, "latency": 0.8}, front[0].Objectives)
}

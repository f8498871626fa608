package improvement

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/host"
	"github.com/GoSim-25-26J-441/thp-tuner/internal/store"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

const (
	defragPath = "/sys/kernel/mm/transparent_hugepage/defrag"
	scanPath   = "/sys/kernel/mm/transparent_hugepage/khugepaged/pages_to_scan"
)

func testConfig(t *testing.T, objective string, generations int) *config.Config {
	t.Helper()
	cfg, err := config.ParseConfigYAMLString(fmt.Sprintf(`
parameters:
  - name: %s
    lower: 0
    upper: 1
    encoding:
      kind: threshold
      states: [defer, always]
  - name: %s
    lower: 100
    upper: 20000
objectives:
  - name: %s
    direction: maximize
search:
  population_size: 5
  generations: %d
  seed: 42
workload:
  type: memory
  memory:
    command: ["thp_bench", "--size", "1G"]
output:
  dir: %s
`, defragPath, scanPath, objective, generations, filepath.Join(t.TempDir(), "run")))
	require.NoError(t, err)
	return cfg
}

func testHost() (*host.MemFileSystem, *host.ScriptedRunner) {
	fs := host.NewMemFileSystem(nil)
	runner := host.NewScriptedRunner().
		On("sync", host.ScriptedResponse{}).
		On("thp_bench", host.ScriptedResponse{
			Stdout: `{"elapsed_seconds": 2.5, "bandwidth_GBps": 11.2, "minor_faults": 1200, "major_faults": 0}`,
		})
	return fs, runner
}

func testOrchestrator(t *testing.T, cfg *config.Config, fs host.FileSystem, runner host.CommandRunner) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(cfg, OrchestratorOptions{
		FS:       fs,
		Commands: runner,
		Clock:    utils.NewFakeClock(time.Unix(0, 0)),
		RunID:    "run-test",
	})
	require.NoError(t, err)
	return o
}

func TestOrchestratorRunsScenario(t *testing.T) {
	cfg := testConfig(t, "bandwidth_GBps", 2)
	fs, runner := testHost()
	o := testOrchestrator(t, cfg, fs, runner)
	assert.Equal(t, StateInitialized, o.State())

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, o.State())

	assert.Equal(t, 10, result.Evaluations)
	assert.Equal(t, 2, result.Generations)
	require.NotEmpty(t, result.Front)
	assert.LessOrEqual(t, len(result.Front), 5)
	space := models.NewParameterSpace(cfg.Parameters)
	for _, s := range result.Front {
		require.NoError(t, space.Check(s.Vector))
		assert.Equal(t, models.ObjectiveVector{-11.2}, s.Objectives)
	}

	writes := fs.Writes()
	require.NotEmpty(t, writes)
	assert.Equal(t, host.WriteRecord{Path: config.DefaultTHPEnabledPath, Value: "always"}, writes[0])
	// every trial: drop caches, compact memory, then the two parameters in declaration order
	require.Len(t, writes, 1+10*4)
	for i := 0; i < 10; i++ {
		trial := writes[1+i*4 : 1+(i+1)*4]
		assert.Equal(t, config.DefaultDropCachesPath, trial[0].Path)
		assert.Equal(t, "3", trial[0].Value)
		assert.Equal(t, config.DefaultCompactMemoryPath, trial[1].Path)
		assert.Equal(t, defragPath, trial[2].Path)
		assert.Contains(t, []string{"defer", "always"}, trial[2].Value)
		assert.Equal(t, scanPath, trial[3].Path)
	}

	snap := o.Status().Snapshot()
	assert.Equal(t, store.RunStatusCompleted, snap.Status)
	assert.Equal(t, 10, snap.Evaluations)
	assert.Equal(t, 10, o.Collector().GetSummary().Trials)

	artifacts, err := store.OpenRunDir(cfg.Output.Dir)
	require.NoError(t, err)
	saved, err := artifacts.ReadResult()
	require.NoError(t, err)
	// crowding distance is not serialized, so compare what is
	require.Len(t, saved.Front, len(result.Front))
	for i := range result.Front {
		assert.Equal(t, result.Front[i].Vector, saved.Front[i].Vector)
		assert.Equal(t, result.Front[i].Objectives, saved.Front[i].Objectives)
		assert.Equal(t, result.Front[i].Rank, saved.Front[i].Rank)
		assert.Zero(t, saved.Front[i].Crowding)
	}
	assert.Len(t, saved.History, 2)
	assert.FileExists(t, artifacts.Path(store.ConfigFile))

	db, err := store.OpenDB(store.DBConfig{Path: artifacts.Path(store.TrialsDB)})
	require.NoError(t, err)
	defer db.Close()
	trials, err := db.ListTrials()
	require.NoError(t, err)
	assert.Len(t, trials, 10)
	info, err := db.RunInfo()
	require.NoError(t, err)
	assert.Equal(t, "run-test", info.RunID)
	assert.Equal(t, int64(42), info.Seed)

	_, err = o.Run(context.Background())
	assert.Error(t, err, "an orchestrator runs once")
}

func TestOrchestratorRejectsUnreportableObjective(t *testing.T) {
	cfg := testConfig(t, "throughput", 1)
	fs, runner := testHost()

	_, err := NewOrchestrator(cfg, OrchestratorOptions{FS: fs, Commands: runner})
	var cfgErr *models.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "throughput")
	assert.Empty(t, fs.Writes())
	assert.Empty(t, runner.Calls())
	_, statErr := os.Stat(cfg.Output.Dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOrchestratorRefusesExistingOutput(t *testing.T) {
	cfg := testConfig(t, "bandwidth_GBps", 1)
	require.NoError(t, os.MkdirAll(cfg.Output.Dir, 0750))
	fs, runner := testHost()
	o := testOrchestrator(t, cfg, fs, runner)

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrRunDirExists)
	assert.Empty(t, fs.Writes())
	assert.Equal(t, store.RunStatusFailed, o.Status().Snapshot().Status)
}

func TestOrchestratorSetupFailure(t *testing.T) {
	cfg := testConfig(t, "bandwidth_GBps", 1)
	fs, runner := testHost()
	fs.FailWrites(config.DefaultTHPEnabledPath, os.ErrPermission)
	o := testOrchestrator(t, cfg, fs, runner)

	_, err := o.Run(context.Background())
	var applyErr *models.ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Equal(t, config.DefaultTHPEnabledPath, applyErr.Path)
	assert.Empty(t, runner.Calls(), "no trial runs after a failed setup")
}

func TestOrchestratorBenchmarkFailureIsFatal(t *testing.T) {
	cfg := testConfig(t, "bandwidth_GBps", 2)
	fs := host.NewMemFileSystem(nil)
	ok := host.ScriptedResponse{Stdout: `{"elapsed_seconds": 2.5, "bandwidth_GBps": 11.2, "minor_faults": 1, "major_faults": 0}`}
	runner := host.NewScriptedRunner().
		On("sync", host.ScriptedResponse{}).
		On("thp_bench", ok, ok, ok, host.ScriptedResponse{ExitCode: 137, Stderr: "killed"})
	o := testOrchestrator(t, cfg, fs, runner)

	result, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	var execErr *models.BenchmarkExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 137, execErr.ExitCode)
	assert.Contains(t, err.Error(), "generation 0 trial 3")

	snap := o.Status().Snapshot()
	assert.Equal(t, store.RunStatusFailed, snap.Status)
	assert.Equal(t, 3, snap.Evaluations)
	assert.Equal(t, StateFailed, o.State())

	artifacts, err := store.OpenRunDir(cfg.Output.Dir)
	require.NoError(t, err)
	assert.NoFileExists(t, artifacts.Path(store.ResultFile))
}

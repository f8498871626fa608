//go:build integration
// +build integration

package integration_test

import (
	"path/filepath"
	"testing"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/host"
	"github.com/GoSim-25-26J-441/thp-tuner/internal/improvement"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
)

// TestIntegration_SampleConfigsLoadAndWire loads every shipped config and builds
// an orchestrator from it without touching the host.
func TestIntegration_SampleConfigsLoadAndWire(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "config", "*.yaml"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(paths) == 0 {
		t.Fatalf("expected sample configs under config/")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			cfg, err := config.LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig(%s) failed: %v", path, err)
			}
			if cfg.Search.PopulationSize < 1 || len(cfg.Objectives) == 0 {
				t.Fatalf("unexpected search settings: %+v", cfg.Search)
			}

			fs := host.NewMemFileSystem(nil)
			orch, err := improvement.NewOrchestrator(cfg, improvement.OrchestratorOptions{
				FS:       fs,
				Commands: host.NewScriptedRunner(),
			})
			if err != nil {
				t.Fatalf("NewOrchestrator(%s) failed: %v", path, err)
			}
			if orch.RunID() == "" {
				t.Fatalf("expected a run id")
			}
			if len(fs.Writes()) != 0 {
				t.Fatalf("building the orchestrator must not write to the host")
			}
		})
	}
}

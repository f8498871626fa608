//go:build integration
// +build integration

package integration_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/improvement"
	"github.com/GoSim-25-26J-441/thp-tuner/internal/store"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
)

// TestIntegration_TuningRunAgainstHostRoot runs a full search against a temp host
// root, real control-file writes and a shell benchmark.
func TestIntegration_TuningRunAgainstHostRoot(t *testing.T) {
	root := newHostRoot(t)
	cfg := tuningConfig(t, root, 4, 3)

	orch, err := improvement.NewOrchestrator(cfg, improvement.OrchestratorOptions{})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Evaluations != 12 {
		t.Fatalf("expected 12 evaluations (initial population plus 2 offspring batches of 4), got %d", result.Evaluations)
	}
	if len(result.Front) == 0 {
		t.Fatalf("expected a non-empty front")
	}
	if len(result.History) != 3 {
		t.Fatalf("expected 3 history records, got %d", len(result.History))
	}

	// The benchmark reports pages_to_scan as bandwidth, so the file must hold
	// the integer encoding of the last evaluated vector.
	last := strings.TrimSpace(readControl(t, root, pagesToScan))
	if last == "" || last == "4096" {
		t.Fatalf("expected pages_to_scan to be rewritten, got %q", last)
	}
	if got := strings.TrimSpace(readControl(t, root, thpDir+"/enabled")); got != "always" {
		t.Fatalf("expected THP enabled=always, got %q", got)
	}
	if got := strings.TrimSpace(readControl(t, root, defragControl)); got != "always" && got != "defer" {
		t.Fatalf("expected defrag to hold an encoded state, got %q", got)
	}
	if got := strings.TrimSpace(readControl(t, root, "proc/sys/vm/drop_caches")); got != "3" {
		t.Fatalf("expected drop_caches=3, got %q", got)
	}
	if got := strings.TrimSpace(readControl(t, root, "proc/sys/vm/compact_memory")); got != "1" {
		t.Fatalf("expected compact_memory=1, got %q", got)
	}

	for _, sol := range result.Front {
		if sol.Objectives[0] > 0 {
			t.Fatalf("maximized objective must be stored negated, got %v", sol.Objectives)
		}
	}

	if snap := orch.Status().Snapshot(); snap.Status != store.RunStatusCompleted {
		t.Fatalf("expected completed status, got %s (%s)", snap.Status, snap.Error)
	}

	artifacts, err := store.OpenRunDir(cfg.Output.Dir)
	if err != nil {
		t.Fatalf("OpenRunDir: %v", err)
	}
	saved, err := artifacts.ReadResult()
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if len(saved.Front) != len(result.Front) || len(saved.History) != 3 {
		t.Fatalf("saved result differs: front %d/%d history %d", len(saved.Front), len(result.Front), len(saved.History))
	}

	db, err := store.OpenDB(store.DBConfig{Path: artifacts.Path(store.TrialsDB), Logger: logger.Component("badger")})
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()
	trials, err := db.ListTrials()
	if err != nil {
		t.Fatalf("ListTrials: %v", err)
	}
	if len(trials) != 12 {
		t.Fatalf("expected 12 stored trials, got %d", len(trials))
	}
	for _, tr := range trials {
		if _, ok := tr.Metrics["d_thp_fault_alloc"]; !ok {
			t.Fatalf("trial %s is missing vmstat deltas: %v", tr.ID, tr.Metrics)
		}
	}
}

// TestIntegration_CancelledRunStopsBetweenTrials cancels before the run starts
// and expects no trial to be evaluated.
func TestIntegration_CancelledRunStopsBetweenTrials(t *testing.T) {
	root := newHostRoot(t)
	cfg := tuningConfig(t, root, 4, 1)

	orch, err := improvement.NewOrchestrator(cfg, improvement.OrchestratorOptions{})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := orch.Run(ctx); err == nil {
		t.Fatalf("expected cancelled run to fail")
	}
	if got := strings.TrimSpace(readControl(t, root, pagesToScan)); got != "4096" {
		t.Fatalf("expected no trial to be applied, pages_to_scan=%q", got)
	}
	if snap := orch.Status().Snapshot(); snap.Status != store.RunStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", snap.Status)
	}
}

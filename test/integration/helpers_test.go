//go:build integration
// +build integration

package integration_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
)

const (
	thpDir        = "sys/kernel/mm/transparent_hugepage"
	pagesToScan   = thpDir + "/khugepaged/pages_to_scan"
	defragControl = thpDir + "/defrag"
)

// newHostRoot creates the THP and vm control files under a temp directory
func newHostRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range map[string]string{
		thpDir + "/enabled":          "always [madvise] never\n",
		defragControl:                "always defer defer+madvise [madvise] never\n",
		pagesToScan:                  "4096\n",
		"proc/sys/vm/drop_caches":    "0\n",
		"proc/sys/vm/compact_memory": "0\n",
		"proc/vmstat":                "thp_fault_alloc 10\nthp_fault_fallback 0\nthp_collapse_alloc 2\nthp_split_page 0\npgfault 1000\npgmajfault 3\n",
	} {
		full := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
			t.Fatalf("MkdirAll(%s): %v", full, err)
		}
		if err := os.WriteFile(full, []byte(content), 0640); err != nil {
			t.Fatalf("WriteFile(%s): %v", full, err)
		}
	}
	return root
}

// benchmarkScript reports pages_to_scan as bandwidth, so the best trial is the largest value
func benchmarkScript(root string) string {
	return fmt.Sprintf(`v=$(cat %s/%s); `+
		`echo "{\"elapsed_seconds\": 2.0, \"bandwidth_GBps\": $v, \"minor_faults\": 100, \"major_faults\": 0}"`,
		root, pagesToScan)
}

func tuningConfig(t *testing.T, root string, population, generations int) *config.Config {
	t.Helper()
	yamlText := fmt.Sprintf(`
log_level: warn
host:
  root: %s
parameters:
  - name: /%s
    lower: 0
    upper: 1
    encoding: {kind: threshold, states: [defer, always]}
  - name: /%s
    lower: 100
    upper: 20000
objectives:
  - name: bandwidth_GBps
    direction: maximize
  - name: elapsed_seconds
    direction: minimize
search:
  population_size: %d
  generations: %d
  seed: 42
reset:
  sync_command: ["true"]
  settle: 1ms
workload:
  type: memory
  timeout: 30s
  memory:
    command: ["sh", "-c", %q]
probes:
  vmstat: true
output:
  dir: %s
`, root, defragControl, pagesToScan, population, generations, benchmarkScript(root), filepath.Join(t.TempDir(), "run"))

	cfg, err := config.ParseConfigYAMLString(yamlText)
	if err != nil {
		t.Fatalf("ParseConfigYAMLString: %v", err)
	}
	return cfg
}

func readControl(t *testing.T, root, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, path))
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	return string(data)
}

package host

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// VMStatCounters are the /proc/vmstat counters reported as run deltas
var VMStatCounters = []string{
	"thp_fault_alloc",
	"thp_fault_fallback",
	"thp_collapse_alloc",
	"thp_split_page",
	"pgfault",
	"pgmajfault",
}

// ParseVMStat parses "name value" lines
func ParseVMStat(data []byte) (map[string]uint64, error) {
	out := make(map[string]uint64)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("vmstat %s: %w", fields[0], err)
		}
		out[fields[0]] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// VMStatProbe reports how much each THP and fault counter moved during a run
type VMStatProbe struct {
	fs     FileSystem
	path   string
	before map[string]uint64
}

// NewVMStatProbe creates a probe reading path (normally /proc/vmstat)
func NewVMStatProbe(fs FileSystem, path string) *VMStatProbe {
	return &VMStatProbe{fs: fs, path: path}
}

// Name returns the probe name
func (p *VMStatProbe) Name() string { return "vmstat" }

// Provides lists the metric keys the probe reports
func (p *VMStatProbe) Provides() []string {
	out := make([]string, len(VMStatCounters))
	for i, c := range VMStatCounters {
		out[i] = "d_" + c
	}
	return out
}

// Before snapshots the counters
func (p *VMStatProbe) Before(ctx context.Context) error {
	snap, err := p.snapshot()
	if err != nil {
		return err
	}
	p.before = snap
	return nil
}

// After snapshots again and reports the deltas
func (p *VMStatProbe) After(ctx context.Context) (models.Metrics, error) {
	if p.before == nil {
		return nil, &models.BenchmarkParseError{Source: p.path, Reason: "no snapshot taken before the run"}
	}
	after, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	metrics := make(models.Metrics, len(VMStatCounters))
	for _, c := range VMStatCounters {
		b, okB := p.before[c]
		a, okA := after[c]
		if !okB || !okA {
			return nil, &models.BenchmarkParseError{Source: p.path, Key: c, Reason: "counter missing"}
		}
		metrics["d_"+c] = float64(a) - float64(b)
	}
	p.before = nil
	return metrics, nil
}

func (p *VMStatProbe) snapshot() (map[string]uint64, error) {
	data, err := p.fs.ReadFile(p.path)
	if err != nil {
		return nil, &models.BenchmarkParseError{Source: p.path, Err: err}
	}
	snap, err := ParseVMStat(data)
	if err != nil {
		return nil, &models.BenchmarkParseError{Source: p.path, Err: err}
	}
	return snap, nil
}

package host

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strconv"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

// highOrder is the first buddy order counted by the fragmentation score (2MiB on x86)
const highOrder = 8

var unusableIndexLine = regexp.MustCompile(`^Node ([0-9]+), zone +Normal ([0-9. ]+)`)

// NodeFragScore is the fragmentation score of one NUMA node
type NodeFragScore struct {
	Node  int
	Score float64
}

// ParseUnusableIndex computes per-node scores from extfrag/unusable_index:
// the mean unusable index over orders >= 8, scaled by 1000, as the kernel does.
func ParseUnusableIndex(data []byte) ([]NodeFragScore, error) {
	var results []NodeFragScore
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		match := unusableIndexLine.FindStringSubmatch(scanner.Text())
		if len(match) != 3 {
			continue
		}
		node, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, err
		}
		var values []float64
		for _, field := range bytes.Fields([]byte(match[2])) {
			v, err := strconv.ParseFloat(string(field), 64)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		if len(values) <= highOrder {
			continue
		}
		results = append(results, NodeFragScore{Node: node, Score: utils.Mean(values[highOrder:]) * 1000})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ExtFragProbe reports the host fragmentation score after each run
type ExtFragProbe struct {
	fs   FileSystem
	path string
}

// NewExtFragProbe creates a probe reading path (normally /sys/kernel/debug/extfrag/unusable_index)
func NewExtFragProbe(fs FileSystem, path string) *ExtFragProbe {
	return &ExtFragProbe{fs: fs, path: path}
}

// Name returns the probe name
func (p *ExtFragProbe) Name() string { return "extfrag" }

// Provides lists the metric keys the probe reports
func (p *ExtFragProbe) Provides() []string { return []string{"host_frag_score"} }

// Before is a no-op; the score is a level, not a counter
func (p *ExtFragProbe) Before(ctx context.Context) error { return nil }

// After reports the mean score over all nodes
func (p *ExtFragProbe) After(ctx context.Context) (models.Metrics, error) {
	data, err := p.fs.ReadFile(p.path)
	if err != nil {
		return nil, &models.BenchmarkParseError{Source: p.path, Err: err}
	}
	nodes, err := ParseUnusableIndex(data)
	if err != nil {
		return nil, &models.BenchmarkParseError{Source: p.path, Err: err}
	}
	if len(nodes) == 0 {
		return nil, &models.BenchmarkParseError{Source: p.path, Key: "host_frag_score", Reason: "no Normal zone with enough orders"}
	}
	scores := make([]float64, len(nodes))
	for i, n := range nodes {
		scores[i] = n.Score
	}
	return models.Metrics{"host_frag_score": utils.Mean(scores)}, nil
}

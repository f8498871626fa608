package evaluation

import (
	"math"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// Extract picks the declared objectives from raw metrics, in declaration
// order, and sign-normalizes them for minimization. A missing or non-finite
// value fails the whole extraction; no default is ever substituted.
func Extract(metrics models.Metrics, objectives []models.ObjectiveSpec) (models.ObjectiveVector, error) {
	out := make(models.ObjectiveVector, len(objectives))
	for i, obj := range objectives {
		v, ok := metrics[obj.Name]
		if !ok {
			return nil, &models.BenchmarkParseError{Key: obj.Name, Reason: "metric missing from benchmark output"}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &models.BenchmarkParseError{Key: obj.Name, Reason: "metric is not finite"}
		}
		out[i] = obj.Normalize(v)
	}
	return out, nil
}

// MissingObjectives returns the objectives that no metric source can provide
func MissingObjectives(objectives []models.ObjectiveSpec, provided ...[]string) []string {
	have := make(map[string]bool)
	for _, keys := range provided {
		for _, k := range keys {
			have[k] = true
		}
	}
	var missing []string
	for _, obj := range objectives {
		if !have[obj.Name] {
			missing = append(missing, obj.Name)
		}
	}
	return missing
}

package metrics

import (
	"errors"
	"time"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// Aggregation summarizes the values of one benchmark metric across trials
type Aggregation struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Summary describes a finished or running tuning run
type Summary struct {
	StartTime    time.Time               `json:"start_time"`
	EndTime      time.Time               `json:"end_time"`
	Duration     time.Duration           `json:"duration"`
	Trials       int                     `json:"trials"`
	Failures     map[string]int          `json:"failures,omitempty"`
	Phases       map[string]PhaseTiming  `json:"phases,omitempty"`
	Aggregations map[string]*Aggregation `json:"aggregations"`
}

// PhaseTiming is the time spent in one trial phase over the whole run
type PhaseTiming struct {
	Count uint64        `json:"count"`
	Total time.Duration `json:"total"`
}

// Failure kinds used as the status label of thptune_trials_total
const (
	FailureOutOfBounds = "out_of_bounds"
	FailureApply       = "apply_error"
	FailureReset       = "reset_error"
	FailureExecution   = "execution_error"
	FailureParse       = "parse_error"
	FailureOther       = "error"
)

// FailureKind maps a trial error onto its taxonomy label
func FailureKind(err error) string {
	var (
		oob   *models.OutOfBoundsError
		apply *models.ApplyError
		reset *models.ResetError
		exec  *models.BenchmarkExecutionError
		parse *models.BenchmarkParseError
	)
	switch {
	case errors.As(err, &oob):
		return FailureOutOfBounds
	case errors.As(err, &apply):
		return FailureApply
	case errors.As(err, &reset):
		return FailureReset
	case errors.As(err, &exec):
		return FailureExecution
	case errors.As(err, &parse):
		return FailureParse
	default:
		return FailureOther
	}
}

package host

import (
	"context"
	"log/slog"
	"time"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

// Reset step names reported in *models.ResetError
const (
	StepSync          = "sync"
	StepDropCaches    = "drop_caches"
	StepCompactMemory = "compact_memory"
	StepSettle        = "settle"
)

// ResetOptions configures the state reset sequence
type ResetOptions struct {
	SyncCommand        []string
	DropCachesPath     string
	DropCachesValue    string
	CompactMemoryPath  string
	CompactMemoryValue string
	Settle             time.Duration
}

// Resetter flushes file system buffers, drops caches, compacts memory and
// waits for the machine to settle. Every run writes the same trigger values,
// so repeating it leaves the host in the same state.
type Resetter struct {
	runner CommandRunner
	fs     FileSystem
	clock  utils.Clock
	opts   ResetOptions
	log    *slog.Logger
}

// NewResetter creates a resetter
func NewResetter(runner CommandRunner, fs FileSystem, clock utils.Clock, opts ResetOptions) *Resetter {
	if clock == nil {
		clock = utils.RealClock{}
	}
	return &Resetter{runner: runner, fs: fs, clock: clock, opts: opts, log: logger.Component("host")}
}

// Reset runs the whole sequence; the first failing step aborts it
func (r *Resetter) Reset(ctx context.Context) error {
	if len(r.opts.SyncCommand) > 0 {
		if _, err := r.runner.Run(ctx, CommandFromArgv(r.opts.SyncCommand)); err != nil {
			return &models.ResetError{Step: StepSync, Err: err}
		}
	}
	if err := r.fs.WriteFile(r.opts.DropCachesPath, []byte(r.opts.DropCachesValue)); err != nil {
		return &models.ResetError{Step: StepDropCaches, Err: err}
	}
	if err := r.fs.WriteFile(r.opts.CompactMemoryPath, []byte(r.opts.CompactMemoryValue)); err != nil {
		return &models.ResetError{Step: StepCompactMemory, Err: err}
	}
	if err := r.clock.Sleep(ctx, r.opts.Settle); err != nil {
		return &models.ResetError{Step: StepSettle, Err: err}
	}
	r.log.Debug("host state reset", "settle", r.opts.Settle)
	return nil
}

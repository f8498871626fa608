package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

// Key prefixes inside the trial database
const (
	trialPrefix      = "trial/"
	generationPrefix = "generation/"
	runInfoKey       = "run"
)

// DBConfig configures the trial database
type DBConfig struct {
	Path string
	// InMemory keeps everything in RAM; used by tests
	InMemory bool
	Logger   *slog.Logger
}

// RunInfo identifies the run a database belongs to
type RunInfo struct {
	RunID     string `json:"run_id"`
	Workload  string `json:"workload"`
	Seed      int64  `json:"seed"`
	StartedAt int64  `json:"started_at_unix_ms"`
}

// TrialDB persists every trial and generation record of a run
type TrialDB struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenDB opens or creates the trial database
func OpenDB(cfg DBConfig) (*TrialDB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &TrialDB{db: db}, nil
}

// Close flushes and closes the database
func (d *TrialDB) Close() error {
	return d.db.Close()
}

// SaveRunInfo records which run the database belongs to
func (d *TrialDB) SaveRunInfo(info RunInfo) error {
	return d.put(runInfoKey, info)
}

// RunInfo returns the recorded run identity
func (d *TrialDB) RunInfo() (*RunInfo, error) {
	var info RunInfo
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runInfoKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &info)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read run info: %w", err)
	}
	return &info, nil
}

// SaveTrial stores a trial under its generation and index. Non-finite
// metrics are dropped since JSON cannot carry them.
func (d *TrialDB) SaveTrial(trial *models.Trial) error {
	t := *trial
	t.Metrics = make(models.Metrics, len(trial.Metrics))
	for k, v := range trial.Metrics {
		if utils.IsFinite(v) {
			t.Metrics[k] = v
		}
	}
	return d.put(trialPrefix+utils.TrialID(t.Generation, t.Index), &t)
}

// SaveGeneration stores a generation snapshot
func (d *TrialDB) SaveGeneration(record *models.GenerationRecord) error {
	return d.put(fmt.Sprintf("%s%04d", generationPrefix, record.Generation), record)
}

// ListTrials returns every stored trial ordered by generation then index
func (d *TrialDB) ListTrials() ([]*models.Trial, error) {
	var out []*models.Trial
	err := d.scan(trialPrefix, func(val []byte) error {
		var t models.Trial
		if err := json.Unmarshal(val, &t); err != nil {
			return err
		}
		out = append(out, &t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	return out, nil
}

// ListGenerations returns every stored generation record in order
func (d *TrialDB) ListGenerations() ([]*models.GenerationRecord, error) {
	var out []*models.GenerationRecord
	err := d.scan(generationPrefix, func(val []byte) error {
		var r models.GenerationRecord
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, &r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	return out, nil
}

// OnTrial implements the optimizer observer
func (d *TrialDB) OnTrial(trial *models.Trial) error {
	return d.SaveTrial(trial)
}

// OnGeneration implements the optimizer observer
func (d *TrialDB) OnGeneration(record *models.GenerationRecord) error {
	return d.SaveGeneration(record)
}

// OnFinish implements the optimizer observer; the owner closes the database
func (d *TrialDB) OnFinish(*models.ResultSet, error) {}

func (d *TrialDB) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	}); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// scan visits every value under prefix in key order
func (d *TrialDB) scan(prefix string, fn func(val []byte) error) error {
	return d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// Artifact file names inside a run directory
const (
	ConfigFile  = "config.yaml"
	ResultFile  = "result.json"
	HistoryFile = "history.json"
	TrialsDB    = "trials.db"
)

// ErrRunDirExists is returned when a run would overwrite an earlier one
var ErrRunDirExists = errors.New("result directory already exists")

// Artifacts manages the files of one run directory
type Artifacts struct {
	dir string
}

// CreateRunDir creates a fresh run directory, refusing one that already exists
func CreateRunDir(dir string) (*Artifacts, error) {
	if dir == "" {
		return nil, errors.New("result directory is required")
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunDirExists, dir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0750); err != nil {
		return nil, fmt.Errorf("create parent of %s: %w", dir, err)
	}
	if err := os.Mkdir(dir, 0750); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunDirExists, dir)
		}
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	return &Artifacts{dir: dir}, nil
}

// OpenRunDir opens an existing run directory for reading
func OpenRunDir(dir string) (*Artifacts, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open result directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open result directory: %s is not a directory", dir)
	}
	return &Artifacts{dir: dir}, nil
}

// Dir returns the run directory
func (a *Artifacts) Dir() string { return a.dir }

// Path returns the path of a file inside the run directory
func (a *Artifacts) Path(name string) string {
	return filepath.Join(a.dir, name)
}

// WriteConfig saves the effective configuration of the run
func (a *Artifacts) WriteConfig(cfg *config.Config) error {
	data, err := config.MarshalConfigYAML(cfg)
	if err != nil {
		return err
	}
	return a.write(ConfigFile, data)
}

// ReadConfig loads the configuration saved with the run
func (a *Artifacts) ReadConfig() (*config.Config, error) {
	return config.LoadConfig(a.Path(ConfigFile))
}

// WriteResult saves the final front and population to result.json and,
// when present, the generation history to history.json
func (a *Artifacts) WriteResult(result *models.ResultSet) error {
	trimmed := *result
	trimmed.History = nil
	if err := a.writeJSON(ResultFile, &trimmed); err != nil {
		return err
	}
	if len(result.History) == 0 {
		return nil
	}
	return a.writeJSON(HistoryFile, result.History)
}

// ReadResult loads result.json and attaches history.json if it exists
func (a *Artifacts) ReadResult() (*models.ResultSet, error) {
	var result models.ResultSet
	if err := a.readJSON(ResultFile, &result); err != nil {
		return nil, err
	}
	history, err := a.ReadHistory()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	result.History = history
	return &result, nil
}

// ReadHistory loads history.json
func (a *Artifacts) ReadHistory() ([]models.GenerationRecord, error) {
	var history []models.GenerationRecord
	if err := a.readJSON(HistoryFile, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (a *Artifacts) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return a.write(name, append(data, '\n'))
}

func (a *Artifacts) readJSON(name string, v any) error {
	data, err := os.ReadFile(a.Path(name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (a *Artifacts) write(name string, data []byte) error {
	if err := os.WriteFile(a.Path(name), data, 0640); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

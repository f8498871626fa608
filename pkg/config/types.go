package config

import (
	"time"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// Config represents one tuning run
type Config struct {
	LogLevel   string                 `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat  string                 `yaml:"log_format" validate:"oneof=json text"`
	Host       Host                   `yaml:"host"`
	Parameters []models.ParameterSpec `yaml:"parameters" validate:"required,min=1"`
	Objectives []models.ObjectiveSpec `yaml:"objectives" validate:"required,min=1"`
	Search     Search                 `yaml:"search"`
	Setup      []Write                `yaml:"setup"`
	Reset      Reset                  `yaml:"reset"`
	Workload   Workload               `yaml:"workload"`
	Probes     Probes                 `yaml:"probes"`
	Output     Output                 `yaml:"output"`
	Status     Status                 `yaml:"status"`
}

// Host locates the kernel control files
type Host struct {
	// Root is prepended to every absolute control path; "/" on a real machine
	Root string `yaml:"root" validate:"required"`
}

// Search configures the evolutionary search
type Search struct {
	PopulationSize      int   `yaml:"population_size" validate:"gte=1"`
	OffspringSize       int   `yaml:"offspring_size" validate:"gte=1"`
	Generations         int   `yaml:"generations" validate:"gte=1"`
	Seed                int64 `yaml:"seed"`
	SaveHistory         *bool `yaml:"save_history,omitempty"`
	EliminateDuplicates *bool `yaml:"eliminate_duplicates,omitempty"`
}

// HistoryEnabled reports whether per-generation snapshots are kept
func (s Search) HistoryEnabled() bool {
	return s.SaveHistory == nil || *s.SaveHistory
}

// DedupEnabled reports whether duplicate candidates are eliminated
func (s Search) DedupEnabled() bool {
	return s.EliminateDuplicates == nil || *s.EliminateDuplicates
}

// Write is a single value written to a control file
type Write struct {
	Path  string `yaml:"path" validate:"required"`
	Value string `yaml:"value" validate:"required"`
}

// Reset configures the state reset run before every trial
type Reset struct {
	SyncCommand        []string      `yaml:"sync_command"`
	DropCachesPath     string        `yaml:"drop_caches_path" validate:"required"`
	DropCachesValue    string        `yaml:"drop_caches_value" validate:"required"`
	CompactMemoryPath  string        `yaml:"compact_memory_path" validate:"required"`
	CompactMemoryValue string        `yaml:"compact_memory_value" validate:"required"`
	Settle             time.Duration `yaml:"settle" validate:"gte=0"`
}

// Workload selects and configures the benchmark
type Workload struct {
	Type     string           `yaml:"type" validate:"required,oneof=memory sysbench memtier"`
	Timeout  time.Duration    `yaml:"timeout" validate:"gte=0"`
	Dir      string           `yaml:"dir"`
	Memory   MemoryWorkload   `yaml:"memory"`
	Sysbench SysbenchWorkload `yaml:"sysbench"`
	Memtier  MemtierWorkload  `yaml:"memtier"`
}

// MemoryWorkload runs a synthetic memory benchmark printing one JSON object
type MemoryWorkload struct {
	Command []string `yaml:"command,omitempty"`
	// Format is thp_bench or probe
	Format string `yaml:"format"`
}

// SysbenchWorkload runs sysbench memory under /usr/bin/time
type SysbenchWorkload struct {
	TimeBinary string   `yaml:"time_binary"`
	Binary     string   `yaml:"binary"`
	CPU        string   `yaml:"cpu"`
	BlockSize  string   `yaml:"block_size"`
	TotalSize  string   `yaml:"total_size"`
	AccessMode string   `yaml:"access_mode"`
	ExtraArgs  []string `yaml:"extra_args,omitempty"`
}

// MemtierWorkload runs memtier_benchmark against a freshly restarted redis
type MemtierWorkload struct {
	Binary         string            `yaml:"binary"`
	RestartCommand []string          `yaml:"restart_command"`
	PingCommand    []string          `yaml:"ping_command"`
	InfoCommand    []string          `yaml:"info_command"`
	Params         map[string]string `yaml:"params,omitempty"`
	ReadyAttempts  int               `yaml:"ready_attempts" validate:"gte=0"`
	ReadyBackoff   time.Duration     `yaml:"ready_backoff" validate:"gte=0"`
}

// Probes enables host-side metric collection around each benchmark
type Probes struct {
	VMStat            bool   `yaml:"vmstat"`
	VMStatPath        string `yaml:"vmstat_path"`
	ExtFrag           bool   `yaml:"extfrag"`
	UnusableIndexPath string `yaml:"unusable_index_path"`
}

// Output locates the run artifacts
type Output struct {
	Dir string `yaml:"dir" validate:"required"`
}

// Status configures the optional status servers; empty addresses disable them
type Status struct {
	HTTPAddr       string `yaml:"http_addr,omitempty"`
	GRPCAddr       string `yaml:"grpc_addr,omitempty"`
	// CallbackURL receives a JSON summary when the run ends; {run_id} is substituted
	CallbackURL    string `yaml:"callback_url,omitempty" validate:"omitempty,url"`
	CallbackSecret string `yaml:"callback_secret,omitempty"`
}

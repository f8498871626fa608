package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHostRoot          = "/"
	DefaultTHPEnabledPath    = "/sys/kernel/mm/transparent_hugepage/enabled"
	DefaultDropCachesPath    = "/proc/sys/vm/drop_caches"
	DefaultCompactMemoryPath = "/proc/sys/vm/compact_memory"
	DefaultVMStatPath        = "/proc/vmstat"
	DefaultUnusableIndexPath = "/sys/kernel/debug/extfrag/unusable_index"
	DefaultSettle            = time.Second
	DefaultWorkloadTimeout   = 30 * time.Minute
	DefaultGenerations       = 10
)

// ParseConfigYAML parses a Config from YAML bytes, applies defaults and validates it.
// Errors are *models.ConfigurationError.
func ParseConfigYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, configError("failed to parse config yaml", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseConfigYAMLString parses a Config from a YAML string and validates it.
func ParseConfigYAMLString(yamlText string) (*Config, error) {
	return ParseConfigYAML([]byte(yamlText))
}

// MarshalConfigYAML renders the effective configuration, defaults included
func MarshalConfigYAML(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config yaml: %w", err)
	}
	return data, nil
}

// ApplyDefaults fills every unset field with the value used on a stock Linux host
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Host.Root == "" {
		cfg.Host.Root = DefaultHostRoot
	}

	s := &cfg.Search
	if s.PopulationSize == 0 {
		s.PopulationSize = 5
	}
	if s.OffspringSize == 0 {
		s.OffspringSize = s.PopulationSize
	}
	if s.Generations == 0 {
		s.Generations = DefaultGenerations
	}

	// An absent setup list enables THP; an explicit empty list writes nothing.
	if cfg.Setup == nil {
		cfg.Setup = []Write{{Path: DefaultTHPEnabledPath, Value: "always"}}
	}

	r := &cfg.Reset
	if r.SyncCommand == nil {
		r.SyncCommand = []string{"sync"}
	}
	if r.DropCachesPath == "" {
		r.DropCachesPath = DefaultDropCachesPath
	}
	if r.DropCachesValue == "" {
		r.DropCachesValue = "3"
	}
	if r.CompactMemoryPath == "" {
		r.CompactMemoryPath = DefaultCompactMemoryPath
	}
	if r.CompactMemoryValue == "" {
		r.CompactMemoryValue = "1"
	}
	if r.Settle == 0 {
		r.Settle = DefaultSettle
	}

	w := &cfg.Workload
	if w.Timeout == 0 {
		w.Timeout = DefaultWorkloadTimeout
	}
	switch w.Type {
	case "memory":
		if w.Memory.Format == "" {
			w.Memory.Format = "thp_bench"
		}
	case "sysbench":
		sb := &w.Sysbench
		if sb.TimeBinary == "" {
			sb.TimeBinary = "/usr/bin/time"
		}
		if sb.Binary == "" {
			sb.Binary = "sysbench"
		}
		if sb.CPU == "" {
			sb.CPU = "0"
		}
		if sb.BlockSize == "" {
			sb.BlockSize = "64M"
		}
		if sb.TotalSize == "" {
			sb.TotalSize = "4096G"
		}
		if sb.AccessMode == "" {
			sb.AccessMode = "rnd"
		}
	case "memtier":
		mt := &w.Memtier
		if mt.Binary == "" {
			mt.Binary = "memtier_benchmark"
		}
		if mt.RestartCommand == nil {
			mt.RestartCommand = []string{"systemctl", "restart", "redis-server"}
		}
		if mt.PingCommand == nil {
			mt.PingCommand = []string{"redis-cli", "ping"}
		}
		if mt.InfoCommand == nil {
			mt.InfoCommand = []string{"redis-cli", "info", "memory"}
		}
		if mt.ReadyAttempts == 0 {
			mt.ReadyAttempts = 10
		}
		if mt.ReadyBackoff == 0 {
			mt.ReadyBackoff = 100 * time.Millisecond
		}
	}

	if cfg.Probes.VMStatPath == "" {
		cfg.Probes.VMStatPath = DefaultVMStatPath
	}
	if cfg.Probes.UnusableIndexPath == "" {
		cfg.Probes.UnusableIndexPath = DefaultUnusableIndexPath
	}
}

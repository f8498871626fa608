package config

import (
	"fmt"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

var validate = validator.New()

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError(fmt.Sprintf("failed to read config file %s", path), err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate runs struct-tag and semantic validation and reports every problem at once
func Validate(cfg *Config) error {
	var errs *multierror.Error

	if err := validate.Struct(cfg); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				errs = multierror.Append(errs, fmt.Errorf("%s: failed %q constraint", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = multierror.Append(errs, err)
		}
	}

	errs = multierror.Append(errs, validateParameters(cfg.Parameters)...)
	errs = multierror.Append(errs, validateObjectives(cfg.Objectives)...)
	errs = multierror.Append(errs, validateWorkload(&cfg.Workload)...)

	if err := errs.ErrorOrNil(); err != nil {
		return configError("invalid config", err)
	}
	return nil
}

// validateParameters checks names, bounds and encodings
func validateParameters(params []models.ParameterSpec) []error {
	var errs []error
	seen := make(map[string]bool)
	for i, p := range params {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("parameter %d: name cannot be empty", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("duplicate parameter: %s", p.Name))
		}
		seen[p.Name] = true

		if math.IsNaN(p.Lower) || math.IsNaN(p.Upper) || math.IsInf(p.Lower, 0) || math.IsInf(p.Upper, 0) {
			errs = append(errs, fmt.Errorf("parameter %s: bounds must be finite", p.Name))
			continue
		}
		if p.Lower > p.Upper {
			errs = append(errs, fmt.Errorf("parameter %s: lower %v exceeds upper %v", p.Name, p.Lower, p.Upper))
		}

		switch p.Encoding.EffectiveKind() {
		case models.EncodingInteger, models.EncodingFloat:
			if len(p.Encoding.States) != 0 {
				errs = append(errs, fmt.Errorf("parameter %s: states only apply to threshold encoding", p.Name))
			}
		case models.EncodingThreshold:
			if len(p.Encoding.States) != 2 {
				errs = append(errs, fmt.Errorf("parameter %s: threshold encoding needs exactly 2 states, got %d", p.Name, len(p.Encoding.States)))
			}
			if p.Lower < 0 || p.Upper > 1 {
				errs = append(errs, fmt.Errorf("parameter %s: threshold bounds must lie within [0, 1]", p.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("parameter %s: unknown encoding kind %q (must be integer, float, or threshold)", p.Name, p.Encoding.Kind))
		}
	}
	return errs
}

// validateObjectives checks objective names and directions
func validateObjectives(objectives []models.ObjectiveSpec) []error {
	var errs []error
	seen := make(map[string]bool)
	for i, o := range objectives {
		if o.Name == "" {
			errs = append(errs, fmt.Errorf("objective %d: name cannot be empty", i))
			continue
		}
		if seen[o.Name] {
			errs = append(errs, fmt.Errorf("duplicate objective: %s", o.Name))
		}
		seen[o.Name] = true
		if o.Direction != models.Minimize && o.Direction != models.Maximize {
			errs = append(errs, fmt.Errorf("objective %s: invalid direction %q (must be minimize or maximize)", o.Name, o.Direction))
		}
	}
	return errs
}

// validateWorkload checks the section matching the selected workload type
func validateWorkload(w *Workload) []error {
	var errs []error
	switch w.Type {
	case "memory":
		if len(w.Memory.Command) == 0 {
			errs = append(errs, fmt.Errorf("workload memory: command cannot be empty"))
		}
		if w.Memory.Format != "thp_bench" && w.Memory.Format != "probe" {
			errs = append(errs, fmt.Errorf("workload memory: invalid format %q (must be thp_bench or probe)", w.Memory.Format))
		}
	case "memtier":
		if len(w.Memtier.RestartCommand) == 0 || len(w.Memtier.PingCommand) == 0 || len(w.Memtier.InfoCommand) == 0 {
			errs = append(errs, fmt.Errorf("workload memtier: restart, ping and info commands cannot be empty"))
		}
		for k := range w.Memtier.Params {
			if k == "protocol" || k == "json-out-file" {
				errs = append(errs, fmt.Errorf("workload memtier: param %q is set by the runner", k))
			}
		}
	}
	return errs
}

func configError(reason string, err error) error {
	return &models.ConfigurationError{Reason: reason, Err: err}
}

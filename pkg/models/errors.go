package models

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError reports malformed or inconsistent run configuration.
// It is raised before any trial touches the host.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return "configuration error: " + e.Reason + ": " + e.Err.Error()
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// OutOfBoundsError rejects a parameter vector that does not fit the space
type OutOfBoundsError struct {
	Index     int
	Parameter string
	Value     float64
	Lower     float64
	Upper     float64
	Reason    string
}

func (e *OutOfBoundsError) Error() string {
	if e.Reason != "" {
		return "parameter vector out of bounds: " + e.Reason
	}
	return fmt.Sprintf("parameter %d (%s) = %v outside [%v, %v]", e.Index, e.Parameter, e.Value, e.Lower, e.Upper)
}

// ApplyError reports a failed write to a kernel control point
type ApplyError struct {
	Path  string
	Value string
	Err   error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %q to %s: %v", e.Value, e.Path, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// ResetError reports a state-reset sequence that failed partway
type ResetError struct {
	Step string
	Err  error
}

func (e *ResetError) Error() string {
	return fmt.Sprintf("reset step %s: %v", e.Step, e.Err)
}

func (e *ResetError) Unwrap() error { return e.Err }

// BenchmarkExecutionError reports a benchmark that exited non-zero or timed out
type BenchmarkExecutionError struct {
	Command  []string
	ExitCode int
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *BenchmarkExecutionError) Error() string {
	var b strings.Builder
	b.WriteString("benchmark ")
	b.WriteString(strings.Join(e.Command, " "))
	switch {
	case e.TimedOut:
		b.WriteString(": timed out")
	case e.ExitCode != 0:
		fmt.Fprintf(&b, ": exit status %d", e.ExitCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		if len(s) > 512 {
			s = s[len(s)-512:]
		}
		b.WriteString(" (stderr: ")
		b.WriteString(s)
		b.WriteString(")")
	}
	return b.String()
}

func (e *BenchmarkExecutionError) Unwrap() error { return e.Err }

// BenchmarkParseError reports benchmark output that does not match the expected schema
type BenchmarkParseError struct {
	Source string
	Key    string
	Reason string
	Err    error
}

func (e *BenchmarkParseError) Error() string {
	msg := "parse benchmark output"
	if e.Source != "" {
		msg += " from " + e.Source
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" (key %q)", e.Key)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BenchmarkParseError) Unwrap() error { return e.Err }

// IsTrialFailure reports whether err belongs to the trial-level taxonomy
func IsTrialFailure(err error) bool {
	var (
		oob   *OutOfBoundsError
		apply *ApplyError
		reset *ResetError
		exec  *BenchmarkExecutionError
		parse *BenchmarkParseError
	)
	return errors.As(err, &oob) || errors.As(err, &apply) || errors.As(err, &reset) ||
		errors.As(err, &exec) || errors.As(err, &parse)
}

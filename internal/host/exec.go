package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// Command describes one external process invocation
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Argv returns the full argument vector
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// CommandFromArgv builds a Command from an argument vector
func CommandFromArgv(argv []string) Command {
	if len(argv) == 0 {
		return Command{}
	}
	return Command{Name: argv[0], Args: append([]string(nil), argv[1:]...)}
}

// Result holds the captured output of a finished process
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
}

// CommandRunner executes external processes. A non-zero exit or a timeout is
// reported as *models.BenchmarkExecutionError; the Result is still returned.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// OSCommandRunner runs processes with os/exec
type OSCommandRunner struct{}

// Run executes cmd, capturing stdout and stderr
func (OSCommandRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Name == "" {
		return nil, &models.BenchmarkExecutionError{Err: errors.New("empty command")}
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Elapsed: time.Since(start)}
	if err == nil {
		return res, nil
	}

	execErr := &models.BenchmarkExecutionError{Command: cmd.Argv(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		execErr.TimedOut = true
		execErr.Err = ctx.Err()
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		execErr.ExitCode = res.ExitCode
	default:
		execErr.Err = err
	}
	return res, execErr
}

// ScriptedResponse is what ScriptedRunner returns for a matching command
type ScriptedResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	// Do runs before the response is returned, e.g. to write an output file
	Do func(cmd Command) error
}

// ScriptedRunner is a CommandRunner for tests. Responses are matched by
// command name; every call is recorded.
type ScriptedRunner struct {
	mu        sync.Mutex
	responses map[string][]ScriptedResponse
	calls     []Command
}

// NewScriptedRunner creates an empty scripted runner
func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{responses: make(map[string][]ScriptedResponse)}
}

// On queues responses for name. The last response is repeated once the queue drains.
func (s *ScriptedRunner) On(name string, responses ...ScriptedResponse) *ScriptedRunner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[name] = append(s.responses[name], responses...)
	return s
}

// Calls returns every command run so far
func (s *ScriptedRunner) Calls() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.calls...)
}

// Run replays the next scripted response for cmd.Name
func (s *ScriptedRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, cmd)
	queue := s.responses[cmd.Name]
	if len(queue) == 0 {
		s.mu.Unlock()
		return nil, &models.BenchmarkExecutionError{Command: cmd.Argv(), Err: fmt.Errorf("no scripted response for %q", cmd.Name)}
	}
	resp := queue[0]
	if len(queue) > 1 {
		s.responses[cmd.Name] = queue[1:]
	}
	s.mu.Unlock()

	if resp.Do != nil {
		if err := resp.Do(cmd); err != nil {
			return nil, err
		}
	}
	res := &Result{Stdout: []byte(resp.Stdout), Stderr: []byte(resp.Stderr), ExitCode: resp.ExitCode}
	if resp.Err != nil {
		return res, resp.Err
	}
	if resp.ExitCode != 0 {
		return res, &models.BenchmarkExecutionError{Command: cmd.Argv(), ExitCode: resp.ExitCode, Stderr: resp.Stderr}
	}
	return res, nil
}

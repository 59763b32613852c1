package simrun

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Logger defines the interface for debug logging.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// nopLogger is a no-op logger implementation.
type nopLogger struct{}

func (n nopLogger) Debugf(format string, args ...interface{}) {}

// Command is one process invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env entries are appended to the inherited environment.
	Env []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Result is the outcome of a process that ran to completion.
type Result struct {
	Output   string
	ExitCode int
}

// Executor runs a command to completion. A process that starts and exits
// non-zero is a Result with that code, not an error.
type Executor interface {
	Execute(cmd Command) (Result, error)
}

// LocalExecutor runs commands on this host.
type LocalExecutor struct {
	DryRun bool
	Logger Logger
}

// NewLocalExecutor creates a local command executor.
func NewLocalExecutor(dryRun bool) *LocalExecutor {
	return &LocalExecutor{DryRun: dryRun, Logger: nopLogger{}}
}

// SetLogger sets the debug logger for the executor.
func (e *LocalExecutor) SetLogger(logger Logger) {
	if logger != nil {
		e.Logger = logger
	}
}

// Execute runs cmd and returns its combined stdout and stderr.
func (e *LocalExecutor) Execute(cmd Command) (Result, error) {
	if e.DryRun {
		return Result{Output: fmt.Sprintf("[DRY-RUN] Would execute in %s: %s", cmd.Dir, cmd)}, nil
	}

	e.Logger.Debugf("Executing: %s (dir=%s)", cmd, cmd.Dir)

	c := exec.Command(cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	output, err := c.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			e.Logger.Debugf("Command exited with %d, output: %s", exitErr.ExitCode(), output)
			return Result{Output: string(output), ExitCode: exitErr.ExitCode()}, nil
		}
		e.Logger.Debugf("Command failed to start: %v", err)
		return Result{Output: string(output)}, fmt.Errorf("execute %s: %w", cmd.Path, err)
	}
	return Result{Output: string(output)}, nil
}

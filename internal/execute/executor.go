package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single command when the caller does not set one.
const DefaultTimeout = 10 * time.Minute

// Command describes one external process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// String renders the command for log lines.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result captures a finished command. ExitCode is the sole success signal:
// zero means success, anything else is a failure of the invoked check.
type Result struct {
	Output   string
	ExitCode int
	Duration time.Duration
}

// Ok reports whether the command exited zero.
func (r Result) Ok() bool {
	return r.ExitCode == 0
}

// Runner executes commands. The non-nil error path is reserved for commands
// that never produced an exit status (missing binary, timeout, cancellation);
// a non-zero exit comes back as a Result with err == nil.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// RunnerFunc adapts a function into a Runner.
type RunnerFunc func(ctx context.Context, cmd Command) (Result, error)

// Run executes f(ctx, cmd).
func (f RunnerFunc) Run(ctx context.Context, cmd Command) (Result, error) {
	if f == nil {
		return Result{}, errors.New("execute: nil runner")
	}
	return f(ctx, cmd)
}

// Local runs commands as child processes of this one.
type Local struct {
	timeout time.Duration
}

// Option customizes Local construction.
type Option func(*Local)

// WithTimeout overrides the default per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(l *Local) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// NewLocal builds the process-spawning runner.
func NewLocal(opts ...Option) *Local {
	l := &Local{timeout: DefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Run executes a single command and returns its combined output plus exit
// status. Stdout and stderr are interleaved the way a terminal would show them.
func (l *Local) Run(ctx context.Context, cmd Command) (Result, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return Result{}, errors.New("execute: command name is required")
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = l.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	proc := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	proc.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		proc.Env = cmd.Env
	}
	var out bytes.Buffer
	proc.Stdout = &out
	proc.Stderr = &out

	start := time.Now()
	err := proc.Run()
	result := Result{Output: out.String(), Duration: time.Since(start)}

	if err == nil {
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The process ran to completion and reported failure through its
		// exit status; that is a result, not an execution error.
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("execute: %s: %w", cmd.String(), ctxErr)
		}
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return Result{}, fmt.Errorf("execute: %s: %w", cmd.String(), err)
}

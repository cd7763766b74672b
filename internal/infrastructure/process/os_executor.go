package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultShell interprets every materialized script
const DefaultShell = "sh"

// waitDelay bounds how long output copying may outlive a cancelled script
const waitDelay = 2 * time.Second

// ExitError reports a script that ran but exited non-zero
type ExitError struct {
	Script string
	Code   int
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("script %s exited with status %d", filepath.Base(e.Script), e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Options configures an Executor
type Options struct {
	Shell  string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Executor runs scripts through a shell, streaming their output
type Executor struct {
	shell  string
	env    []string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger hclog.Logger
}

// NewExecutor creates a script executor. Unset options default to the
// current process environment and standard streams.
func NewExecutor(opts Options, logger hclog.Logger) *Executor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.Shell == "" {
		opts.Shell = DefaultShell
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Executor{
		shell:  opts.Shell,
		env:    opts.Env,
		stdin:  opts.Stdin,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		logger: logger.Named("process"),
	}
}

// RunScript runs script with the shell in the script's own directory and
// waits for it. extraEnv is added on top of the base environment.
func (e *Executor) RunScript(ctx context.Context, script string, extraEnv map[string]string) error {
	cmd := exec.CommandContext(ctx, e.shell, script)
	cmd.Dir = filepath.Dir(script)
	cmd.Env = e.buildEnvironment(extraEnv)
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	cmd.WaitDelay = waitDelay

	e.logger.Debug("running script", "script", script, "shell", e.shell)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return &ExitError{Script: script, Code: exitErr.ExitCode(), Err: err}
		}
		if ctx.Err() != nil {
			return fmt.Errorf("script %s interrupted: %w", filepath.Base(script), ctx.Err())
		}
		return fmt.Errorf("failed to start script %s: %w", script, err)
	}
	return nil
}

// buildEnvironment combines the base environment with script-specific variables
func (e *Executor) buildEnvironment(extra map[string]string) []string {
	env := append([]string(nil), e.env...)

	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+extra[key])
	}
	return env
}

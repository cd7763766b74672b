// Package recovery retries operations that fail with recoverable errors.
package recovery

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"geektools.dev/cli/internal/core/domain"
	"geektools.dev/cli/internal/infrastructure/fileio"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor runs operations under a retry policy.
//
// Fatal errors are returned at once. A FileOperationFailed caused by a
// missing path gets its parent directory created and one immediate retry.
// Every other recoverable error is retried with exponential backoff until
// the policy's attempts are used up.
type Executor struct {
	policy domain.RetryPolicy
	logger hclog.Logger
	sleep  SleepFunc
	mkdir  func(string) error
}

// New creates an executor. An invalid policy falls back to the default one.
func New(policy domain.RetryPolicy, logger hclog.Logger) *Executor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("recovery")
	if err := policy.Validate(); err != nil {
		logger.Warn("invalid retry policy, using defaults", "error", err)
		policy = domain.DefaultRetryPolicy()
	}
	return &Executor{
		policy: policy,
		logger: logger,
		sleep:  Sleep,
		mkdir:  fileio.CreateDir,
	}
}

// WithSleep replaces the wait between attempts
func (e *Executor) WithSleep(sleep SleepFunc) *Executor {
	e.sleep = sleep
	return e
}

// Policy returns the policy in effect
func (e *Executor) Policy() domain.RetryPolicy {
	return e.policy
}

// Run calls op until it succeeds, fails fatally or the attempts are used up.
// The last error is returned on exhaustion.
func (e *Executor) Run(ctx context.Context, op func(context.Context) error) error {
	delay := e.policy.InitialDelay
	failures := 0
	recreated := false

	for {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !domain.IsRecoverable(err) {
			return err
		}

		if missing, ok := domain.IsMissingFile(err); ok {
			if recreated {
				return err
			}
			recreated = true
			parent := filepath.Dir(missing)
			if mkErr := e.mkdir(parent); mkErr != nil {
				e.logger.Warn("could not create missing directory", "path", parent, "error", mkErr)
				return err
			}
			e.logger.Info("created missing directory, retrying", "path", parent)
			continue
		}

		failures++
		if failures >= e.policy.MaxAttempts {
			e.logger.Debug("giving up", "attempts", failures, "error", err)
			return err
		}

		e.logger.Info("attempt failed, retrying", "attempt", failures, "delay", delay, "error", err)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return errors.Join(sleepErr, err)
		}
		delay = e.policy.NextDelay(delay)
	}
}

// Do is Run for operations returning a value
func Do[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := e.Run(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// Sleep waits for d, returning early with ctx's error when ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package procexec

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reeler/internal/logging"
	"reeler/internal/services"
)

// Observer is notified after every attempt. err is nil on success.
type Observer interface {
	ObserveAttempt(command string, attempt int, err error)
}

// Runner executes commands with retries.
type Runner struct {
	exec     Executor
	logger   *slog.Logger
	observer Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger sets the logger used for attempt diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers an attempt observer.
func WithObserver(observer Observer) Option {
	return func(r *Runner) {
		r.observer = observer
	}
}

// NewRunner constructs a Runner that launches real processes unless overridden.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		exec:   commandExecutor{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs cmd until it exits zero or policy.MaxAttempts attempts have
// failed. onLine may be nil.
func (r *Runner) Execute(ctx context.Context, cmd Command, policy Policy, onLine LineHandler) (Result, error) {
	maxAttempts := policy.attempts()
	logger := logging.WithContext(ctx, r.logger).With(logging.String("command", cmd.Name))

	var mu sync.Mutex
	stdout := newTailBuffer(captureLimit)
	stderr := newTailBuffer(captureLimit)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, &CanceledError{Command: cmd, Attempt: attempt, Err: err}
		}

		stdout.reset()
		stderr.reset()
		current := attempt
		forward := func(stream Stream, text string) {
			mu.Lock()
			defer mu.Unlock()
			if stream == Stderr {
				stderr.writeLine(text)
			} else {
				stdout.writeLine(text)
			}
			if onLine != nil {
				onLine(Line{Stream: stream, Text: text, Attempt: current})
			}
		}

		logger.Debug("process attempt starting", logging.Int(logging.FieldAttempt, attempt), logging.String("args", cmd.String()))
		err := r.exec.Run(ctx, cmd, forward)
		if r.observer != nil {
			r.observer.ObserveAttempt(cmd.Name, attempt, err)
		}

		mu.Lock()
		outText, errText := stdout.String(), stderr.String()
		mu.Unlock()

		if err == nil {
			return Result{Attempts: attempt, Stdout: outText, Stderr: errText}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, &CanceledError{Command: cmd, Attempt: attempt, Err: ctxErr}
		}
		var startErr *startError
		if errors.As(err, &startErr) {
			return Result{}, services.Wrap(services.ErrExternalTool, "process", "start", cmd.Name, startErr.err)
		}
		if attempt >= maxAttempts {
			return Result{}, &ProcessExhaustedError{
				Command:  cmd,
				Attempts: attempt,
				ExitCode: exitCode(err),
				Stdout:   outText,
				Stderr:   errText,
				Err:      err,
			}
		}

		logger.Warn("process attempt failed; retrying",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Duration("retry_delay", policy.Delay),
			logging.String("stderr_tail", lastLine(errText)),
			logging.Error(err),
		)
		if err := sleep(ctx, policy.Delay); err != nil {
			return Result{}, &CanceledError{Command: cmd, Attempt: attempt, Err: err}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
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

package procexec

import (
	"errors"
	"fmt"
	"os/exec"

	"reeler/internal/services"
)

// ProcessExhaustedError reports that every permitted attempt exited unsuccessfully.
// Stdout and Stderr hold the output of the final attempt only.
type ProcessExhaustedError struct {
	Command  Command
	Attempts int
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ProcessExhaustedError) Error() string {
	msg := fmt.Sprintf("%s failed after %d attempt", e.Command.Name, e.Attempts)
	if e.Attempts != 1 {
		msg += "s"
	}
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit status %d)", e.ExitCode)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *ProcessExhaustedError) Unwrap() error { return e.Err }

// Is lets callers classify exhaustion as an external tool failure.
func (e *ProcessExhaustedError) Is(target error) bool {
	return target == services.ErrExternalTool
}

// CanceledError reports that the context ended while the command was running
// or waiting to be retried.
type CanceledError struct {
	Command Command
	Attempt int
	Err     error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("%s canceled during attempt %d: %v", e.Command.Name, e.Attempt, e.Err)
}

func (e *CanceledError) Unwrap() error { return e.Err }

func (e *CanceledError) Is(target error) bool {
	return target == services.ErrCanceled
}

type startError struct {
	err error
}

func (e *startError) Error() string { return "start command: " + e.err.Error() }

func (e *startError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

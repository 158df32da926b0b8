package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize is returned by New when the pool size is not positive.
	ErrInvalidSize = errors.New("pool size must be positive")
	// ErrClosed is returned by Add after Close.
	ErrClosed = errors.New("pool closed")
	// ErrDrained is returned by Next once every task has finished and all
	// results have been consumed.
	ErrDrained = errors.New("pool drained")
)

// FaultError carries the error of the first task that failed in a pool.
type FaultError struct {
	Err error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("pool faulted: %v", e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// ShortDrainError reports that the stream ended before the expected number of
// completions was observed.
type ShortDrainError struct {
	Expected int
	Observed int
}

func (e *ShortDrainError) Error() string {
	return fmt.Sprintf("pool drained after %d of %d expected results", e.Observed, e.Expected)
}

func (e *ShortDrainError) Unwrap() error { return ErrDrained }

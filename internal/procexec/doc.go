// Package procexec runs external command-line tools with line-streamed output
// and a bounded retry policy.
//
// A Runner re-invokes a failing command from scratch until it succeeds or the
// attempt budget is spent. Attempts are strictly sequential and separated by
// the policy delay. Each attempt starts with empty capture buffers, so the
// ProcessExhaustedError returned after the final failure carries only the last
// attempt's output. Cancelling the context kills the whole process group and
// ends the sequence with a CanceledError; cancellation is never retried.
package procexec

// Package pool provides a generic bounded task pool that runs at most N tasks
// at once and streams their results.
//
// Add blocks while the pool is at capacity; any finishing task frees a slot.
// The first task that returns an error faults the pool: Add refuses further
// work, Next reports the FaultError, and results completed afterwards are
// dropped. Tasks already running are allowed to finish. The result stream is
// buffered to the pool size and a task keeps its slot until its result is
// handed over, so a slow consumer throttles scheduling instead of growing an
// unbounded backlog.
package pool

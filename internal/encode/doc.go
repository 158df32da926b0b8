// Package encode turns grouped episodes into final media files by running the
// encoder process once per episode through a bounded pool.
//
// The stage consumes groups as they arrive, so encoding overlaps with
// downloads still in progress. Encoder invocations are not retried. Progress
// is derived from the encoder's time= and speed= markers and normalized
// against the input duration obtained from a probe before the encode starts.
package encode

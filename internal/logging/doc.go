// Package logging assembles structured slog loggers and formatting helpers used
// across reeler.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code automatically tags
// log lines with run, episode, and stage identifiers. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging

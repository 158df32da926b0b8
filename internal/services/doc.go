// Package services defines shared utilities consumed by the pipeline stages
// and the command-line wiring.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, episode IDs, and stage names for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (external tool, validation, configuration) for reporting and exit codes.
//
// Use these helpers when wiring new stage logic so failure classification and
// log context stay uniform across the pipeline.
package services

// Package services defines shared utilities consumed by pipeline stages and
// the session state handlers.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and flow states for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures so
//     the pipeline and the session runner react consistently (retry vs abort
//     vs graceful completion).
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services

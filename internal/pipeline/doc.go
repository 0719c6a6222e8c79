// Package pipeline implements the staged execution engine.
//
// A Pipeline sequentially executes an ordered list of Stages, threading each
// stage's output into the next stage's input. Stages may opt out via a guard
// (reported as a skip, not an error) and may declare a retry policy with
// abortable exponential backoff. Lifecycle notifications flow through the
// typed event bus in scribe/internal/events.
//
// Two composite stages cover the common acquisition and generation shapes:
// Fallback tries alternatives until one succeeds and reports an ordered trace
// of every attempt; Parallel runs children concurrently with either fail-fast
// or partial-success semantics.
//
// The pipeline is fail-fast at its own level: an unrecoverable stage failure
// stops the run, flushes whatever metadata and artifacts were produced so
// far, and surfaces a *StageError naming the failing stage and the stages
// that completed before it.
package pipeline

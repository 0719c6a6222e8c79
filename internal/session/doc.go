// Package session drives a content production run from source material to a
// packaged set of outputs.
//
// A session is a state machine (internal/flow) whose handlers assemble and
// execute pipelines (internal/pipeline): transcript acquisition falls back
// from uploaded captions to auto subtitles to local speech-to-text, research
// and generation call the configured LLM, and packaging collects artifacts
// with a manifest. Checkpoints land in the project's run directory after
// every transition, so a crashed session resumes where it stopped.
//
// A file lock guards each run directory; two sessions never operate on the
// same project concurrently.
package session

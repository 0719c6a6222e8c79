// Package flow implements the session state machine that drives the
// user-facing CLI: a closed set of states, a copy-on-write context threaded
// through state handlers, a declarative transition map with a validator, and
// a runner that checkpoints the context to disk before every transition so a
// long-lived session survives process restarts.
//
// The flow machine is deliberately distinct from the pipeline engine in
// scribe/internal/pipeline: states model the interactive session (input
// selection, transcription, research, generation, packaging) while each state
// handler may internally run whole pipelines. The runner is single-threaded
// and cooperative; exactly one handler executes at a time and every handler
// returns a new context value instead of mutating the one it received, which
// makes checkpoint snapshots sound without locks.
package flow

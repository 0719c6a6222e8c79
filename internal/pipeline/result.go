package pipeline

import "time"

// Result is the immutable summary of a completed run.
type Result struct {
	RunID           string
	Pipeline        string
	Artifacts       map[string]string
	Metadata        map[string]any
	CompletedStages []string
	// Errors collects non-fatal failures observed during the run: retried
	// attempts and guard evaluation problems that did not stop the pipeline.
	Errors   []error
	Duration time.Duration
}

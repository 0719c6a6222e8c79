package runstore

import "time"

// Status describes the lifecycle of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Artifact is a named output file produced by a run.
type Artifact struct {
	Name string
	Path string
}

// Run is a persisted pipeline run.
type Run struct {
	ID              int64
	RunID           string
	Pipeline        string
	Status          Status
	ErrorMessage    string
	CompletedStages []string
	Metadata        map[string]any
	Artifacts       []Artifact
	Duration        time.Duration
	StartedAt       time.Time
	UpdatedAt       time.Time
}

package events

import "time"

// Type identifies a lifecycle event. String values round-trip cleanly through
// logs and serialized run metadata.
type Type string

const (
	TypeStageStart       Type = "stage:start"
	TypeStageProgress    Type = "stage:progress"
	TypeStageComplete    Type = "stage:complete"
	TypeStageError       Type = "stage:error"
	TypeStageSkip        Type = "stage:skip"
	TypePipelineStart    Type = "pipeline:start"
	TypePipelineComplete Type = "pipeline:complete"
	TypePipelineError    Type = "pipeline:error"
)

// Event is implemented by every lifecycle notification. Consumers typically
// use a type switch:
//
//	switch ev := event.(type) {
//	case events.StageErrored:
//		if ev.WillRetry { ... }
//	case events.PipelineCompleted:
//		fmt.Println(ev.Duration)
//	}
type Event interface {
	Kind() Type
}

// StageStarted is published immediately before a stage's Run is invoked.
type StageStarted struct {
	RunID string
	Stage string
}

func (StageStarted) Kind() Type { return TypeStageStart }

// StageProgress reports incremental progress from inside a running stage.
type StageProgress struct {
	RunID   string
	Stage   string
	Message string
	// Percent is 0-100, negative when unknown.
	Percent float64
	Detail  map[string]any
}

func (StageProgress) Kind() Type { return TypeStageProgress }

// StageCompleted carries a stage's output and wall-clock duration.
type StageCompleted struct {
	RunID    string
	Stage    string
	Output   any
	Duration time.Duration
}

func (StageCompleted) Kind() Type { return TypeStageComplete }

// StageErrored is published for every failed attempt. WillRetry distinguishes
// transient attempts from the final failure.
type StageErrored struct {
	RunID     string
	Stage     string
	Err       error
	Attempt   int
	WillRetry bool
}

func (StageErrored) Kind() Type { return TypeStageError }

// StageSkipped reports a guard that declined to run. A skip is not a failure.
type StageSkipped struct {
	RunID  string
	Stage  string
	Reason string
}

func (StageSkipped) Kind() Type { return TypeStageSkip }

// PipelineStarted marks the beginning of a pipeline run.
type PipelineStarted struct {
	RunID    string
	Pipeline string
}

func (PipelineStarted) Kind() Type { return TypePipelineStart }

// PipelineCompleted carries the accumulated artifacts and metadata of a
// successful run.
type PipelineCompleted struct {
	RunID     string
	Pipeline  string
	Artifacts map[string]string
	Metadata  map[string]any
	Duration  time.Duration
}

func (PipelineCompleted) Kind() Type { return TypePipelineComplete }

// PipelineErrored reports an unrecoverable stage failure together with the
// stages that completed before it.
type PipelineErrored struct {
	RunID     string
	Pipeline  string
	Err       error
	Completed []string
}

func (PipelineErrored) Kind() Type { return TypePipelineError }

package pipeline

import (
	"fmt"
	"strings"
)

// StageError wraps an unrecoverable stage failure with the failing stage's
// name and the ordered list of stages that completed before it.
type StageError struct {
	Pipeline  string
	Stage     string
	Completed []string
	Err       error
}

func (e *StageError) Error() string {
	completed := "none"
	if len(e.Completed) > 0 {
		completed = strings.Join(e.Completed, ", ")
	}
	return fmt.Sprintf("pipeline %s: stage %s failed (completed: %s): %v", e.Pipeline, e.Stage, completed, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

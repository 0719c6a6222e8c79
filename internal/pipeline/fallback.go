package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// TraceStatus classifies one fallback alternative's outcome.
type TraceStatus string

const (
	TraceOK   TraceStatus = "ok"
	TraceFail TraceStatus = "fail"
	TraceSkip TraceStatus = "skip"
)

// TraceEntry records what happened to one alternative, in attempt order.
type TraceEntry struct {
	Step   string
	Status TraceStatus
	Reason string
}

// ExhaustedError reports that every fallback alternative failed. The message
// is the ordered per-alternative trace, not just the last failure.
type ExhaustedError struct {
	Stage string
	Trace []TraceEntry
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Trace))
	for _, entry := range e.Trace {
		if entry.Reason != "" {
			parts = append(parts, fmt.Sprintf("%s=%s (%s)", entry.Step, entry.Status, entry.Reason))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%s", entry.Step, entry.Status))
		}
	}
	return fmt.Sprintf("fallback %s: all alternatives failed: [%s]", e.Stage, strings.Join(parts, "; "))
}

// fallbackStage tries alternatives in order and returns the first success.
type fallbackStage struct {
	name         string
	description  string
	alternatives []Stage
}

// Fallback builds a composite stage over ordered alternatives with the same
// input/output shape. The first success wins and later alternatives are never
// invoked. The full attempt trace is stored in run metadata under
// "fallback:<name>" so callers can diagnose which strategies were tried.
func Fallback(name, description string, alternatives ...Stage) Stage {
	return &fallbackStage{name: name, description: description, alternatives: alternatives}
}

func (s *fallbackStage) Name() string        { return s.name }
func (s *fallbackStage) Description() string { return s.description }

func (s *fallbackStage) Run(ctx context.Context, input any, run *Context) (any, error) {
	if len(s.alternatives) == 0 {
		return nil, fmt.Errorf("fallback %s: no alternatives configured", s.name)
	}

	trace := make([]TraceEntry, 0, len(s.alternatives))
	record := func() {
		run.SetMeta("fallback:"+s.name, append([]TraceEntry(nil), trace...))
	}

	for _, alt := range s.alternatives {
		if err := ctx.Err(); err != nil {
			record()
			return nil, fmt.Errorf("fallback %s: cancelled: %w", s.name, err)
		}

		if guarded, ok := alt.(Guarded); ok {
			can, guardErr := guarded.CanRun(ctx, input, run)
			if guardErr != nil {
				trace = append(trace, TraceEntry{Step: alt.Name(), Status: TraceFail, Reason: fmt.Sprintf("guard: %v", guardErr)})
				continue
			}
			if !can {
				trace = append(trace, TraceEntry{Step: alt.Name(), Status: TraceSkip, Reason: "guard declined"})
				continue
			}
		}

		output, err := alt.Run(ctx, input, run)
		if err != nil {
			trace = append(trace, TraceEntry{Step: alt.Name(), Status: TraceFail, Reason: err.Error()})
			continue
		}

		trace = append(trace, TraceEntry{Step: alt.Name(), Status: TraceOK})
		record()
		return output, nil
	}

	record()
	return nil, &ExhaustedError{Stage: s.name, Trace: append([]TraceEntry(nil), trace...)}
}

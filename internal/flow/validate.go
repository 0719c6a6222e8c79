package flow

import "fmt"

// InvalidTransitionError reports an edge the transition map does not allow.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// PreconditionError names the context field a state requires but that no
// earlier state populated.
type PreconditionError struct {
	State State
	Field string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("state %s requires field %q to be set by an earlier state", e.State, e.Field)
}

// AssertValidTransition rejects an edge from -> to unless the resolved rule
// for from contains to. ERROR is a universal escape hatch from any
// non-terminal state; it bypasses the rule lookup so handler-supplied
// diagnostics on LastError are never replaced by a generic invalid-transition
// failure.
func AssertValidTransition(from, to State, c Context) error {
	if !from.Valid() {
		return fmt.Errorf("unknown source state %s", from)
	}
	if !to.Valid() {
		return fmt.Errorf("unknown target state %s", to)
	}
	if to == StateError && !from.IsTerminal() {
		return nil
	}
	allowed, err := NextStates(from, c)
	if err != nil {
		return err
	}
	for _, state := range allowed {
		if state == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// precondition names a context field and how to detect it. Every precondition
// references a field populated by a strictly earlier state, never by the
// target state's own handler.
type precondition struct {
	field   string
	present func(Context) bool
}

var preconditions = map[State][]precondition{
	StateInputSelect: {
		{field: "project_id", present: func(c Context) bool { return c.ProjectID != "" }},
		{field: "run_dir", present: func(c Context) bool { return c.RunDir != "" }},
	},
	StateTranscribe: {
		{field: "input_type", present: func(c Context) bool { return c.InputType != "" }},
		{field: "input_source", present: func(c Context) bool { return c.InputSource != "" }},
	},
	StateResearch: {
		{field: "input_source", present: func(c Context) bool { return c.InputSource != "" }},
		// Text input carries its material in input_source; everything else
		// must have produced a transcript first.
		{field: "transcript_path", present: func(c Context) bool {
			return c.InputType == InputText || c.TranscriptPath != ""
		}},
	},
	StateOutputSelect: {
		{field: "research_path", present: func(c Context) bool { return c.ResearchPath != "" }},
	},
	StateGenerate: {
		{field: "research_path", present: func(c Context) bool { return c.ResearchPath != "" }},
		{field: "output_formats", present: func(c Context) bool { return len(c.OutputFormats) > 0 }},
	},
	StateArticleReview: {
		{field: "output_formats", present: func(c Context) bool { return len(c.OutputFormats) > 0 }},
	},
	StatePackage: {
		{field: "generated_artifacts", present: func(c Context) bool {
			return c.ArticlePath != "" || c.PodcastScriptPath != "" || c.SocialPostsPath != "" || c.AudioPath != ""
		}},
	},
}

// CheckPreconditions verifies the context carries every field the given state
// declares as a prerequisite before the runner lets its handler execute.
func CheckPreconditions(state State, c Context) error {
	for _, pre := range preconditions[state] {
		if !pre.present(c) {
			return &PreconditionError{State: state, Field: pre.field}
		}
	}
	return nil
}

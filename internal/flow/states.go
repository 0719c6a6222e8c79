package flow

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// State identifies a point in the session flow. String values round-trip
// cleanly through JSON checkpoint files.
type State string

const (
	StateProjectInit   State = "PROJECT_INIT"
	StateInputSelect   State = "INPUT_SELECT"
	StateTranscribe    State = "TRANSCRIBE"
	StateResearch      State = "RESEARCH"
	StateOutputSelect  State = "OUTPUT_SELECT"
	StateGenerate      State = "GENERATE"
	StateArticleReview State = "ARTICLE_REVIEW"
	StatePackage       State = "PACKAGE"
	StateComplete      State = "COMPLETE"
	StateError         State = "ERROR"
)

var allStates = []State{
	StateProjectInit,
	StateInputSelect,
	StateTranscribe,
	StateResearch,
	StateOutputSelect,
	StateGenerate,
	StateArticleReview,
	StatePackage,
	StateComplete,
	StateError,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// AllStates returns every declared state in a stable order.
func AllStates() []State {
	return append([]State(nil), allStates...)
}

// Valid reports whether the state is a member of the closed enumeration.
func (s State) Valid() bool {
	_, ok := stateSet[s]
	return ok
}

// IsTerminal reports whether the state has no outgoing transitions.
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateError
}

var titleCaser = cases.Title(language.English)

// Label renders a human-friendly form for progress and notification text,
// e.g. "Article Review" for ARTICLE_REVIEW.
func (s State) Label() string {
	return titleCaser.String(strings.ToLower(strings.ReplaceAll(string(s), "_", " ")))
}

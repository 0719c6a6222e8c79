package flow

import "fmt"

// Rule declares the legal successors of a state: either a fixed set of next
// states or a pure function of the context that computes exactly one next
// state. Terminal states carry an empty rule.
type Rule struct {
	Next    []State
	Resolve func(Context) State
}

// transitionMap is the single central declaration of the session flow. Every
// declared state appears exactly once.
var transitionMap = map[State]Rule{
	StateProjectInit: {Next: []State{StateInputSelect}},

	// Text input skips transcription entirely.
	StateInputSelect: {Resolve: func(c Context) State {
		if c.InputType == InputText {
			return StateResearch
		}
		return StateTranscribe
	}},

	StateTranscribe: {Next: []State{StateResearch}},
	StateResearch:   {Next: []State{StateOutputSelect}},

	// Selecting a format that already has a fresh artifact goes straight to
	// packaging; anything else runs generation.
	StateOutputSelect: {Next: []State{StateGenerate, StatePackage}},
	StateGenerate:     {Next: []State{StateArticleReview}},

	// The retry flag is the single signal that generation runs again. The
	// review handler sets it for a rejection or a missing draft with budget
	// remaining; the presence of LastError alone never loops back.
	StateArticleReview: {Resolve: func(c Context) State {
		if c.ArticleRetryRequested {
			return StateGenerate
		}
		return StatePackage
	}},

	// Remaining output formats send the session back to output selection.
	StatePackage: {Resolve: func(c Context) State {
		if len(c.PendingFormats) > 0 {
			return StateOutputSelect
		}
		return StateComplete
	}},

	StateComplete: {},
	StateError:    {},
}

// NextStates resolves the legal successor set for a state in the given
// context. Terminal states resolve to the empty set.
func NextStates(from State, c Context) ([]State, error) {
	rule, ok := transitionMap[from]
	if !ok {
		return nil, fmt.Errorf("state %s is not declared in the transition map", from)
	}
	if rule.Resolve != nil {
		return []State{rule.Resolve(c)}, nil
	}
	return append([]State(nil), rule.Next...), nil
}

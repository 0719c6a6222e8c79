package flow

import (
	"fmt"
	"maps"
)

// InputType identifies the kind of source material a session starts from.
type InputType string

const (
	InputYouTube InputType = "youtube"
	InputAudio   InputType = "audio"
	InputText    InputType = "text"
)

// FlowError is the serializable form of a handler failure, preserved across
// checkpoint round trips so diagnostics survive a resume.
type FlowError struct {
	State   State  `json:"state"`
	Message string `json:"message"`
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("state %s: %s", e.State, e.Message)
}

// Context is the single value threaded through the session state machine.
// Handlers never mutate the context they receive; every With* method returns
// a deep copy so a checkpoint taken at any moment is a consistent snapshot.
type Context struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	RunDir      string `json:"run_dir"`

	CurrentState State   `json:"current_state"`
	StateHistory []State `json:"state_history"`

	InputType   InputType `json:"input_type,omitempty"`
	InputSource string    `json:"input_source,omitempty"`

	TranscriptPath string `json:"transcript_path,omitempty"`
	ResearchPath   string `json:"research_path,omitempty"`

	OutputFormats  []string `json:"output_formats,omitempty"`
	PendingFormats []string `json:"pending_formats,omitempty"`

	ArticlePath       string `json:"article_path,omitempty"`
	PodcastScriptPath string `json:"podcast_script_path,omitempty"`
	SocialPostsPath   string `json:"social_posts_path,omitempty"`
	AudioPath         string `json:"audio_path,omitempty"`
	PackagePath       string `json:"package_path,omitempty"`

	LastError *FlowError `json:"last_error,omitempty"`

	// ArticleRetryRequested is a one-shot flag set when the operator asks for
	// the article to be regenerated during review. It never survives a resume.
	ArticleRetryRequested bool `json:"article_retry_requested,omitempty"`

	RetryCounts map[string]int `json:"retry_counts,omitempty"`
}

// NewContext creates the session context in its initial state.
func NewContext(projectID, projectName, runDir string) Context {
	return Context{
		ProjectID:    projectID,
		ProjectName:  projectName,
		RunDir:       runDir,
		CurrentState: StateProjectInit,
		StateHistory: []State{StateProjectInit},
	}
}

// clone deep-copies the context's reference fields.
func (c Context) clone() Context {
	c.StateHistory = append([]State(nil), c.StateHistory...)
	c.OutputFormats = append([]string(nil), c.OutputFormats...)
	c.PendingFormats = append([]string(nil), c.PendingFormats...)
	if c.RetryCounts != nil {
		c.RetryCounts = maps.Clone(c.RetryCounts)
	}
	if c.LastError != nil {
		copied := *c.LastError
		c.LastError = &copied
	}
	return c
}

// WithState returns a copy advanced to the given state. StateHistory is
// append-only and its last element always equals CurrentState.
func (c Context) WithState(next State) Context {
	out := c.clone()
	out.CurrentState = next
	out.StateHistory = append(out.StateHistory, next)
	return out
}

// WithError returns a copy advanced to ERROR carrying the failure wrapped
// with its originating state. An existing LastError set by a handler is
// preserved; the machine never overwrites handler-supplied diagnostics.
func (c Context) WithError(origin State, err error) Context {
	out := c.clone()
	if out.LastError == nil {
		message := "unknown error"
		if err != nil {
			message = err.Error()
		}
		out.LastError = &FlowError{State: origin, Message: message}
	}
	out.CurrentState = StateError
	out.StateHistory = append(out.StateHistory, StateError)
	return out
}

// IncrementRetry returns a copy with the named retry counter bumped.
func (c Context) IncrementRetry(name string) Context {
	out := c.clone()
	if out.RetryCounts == nil {
		out.RetryCounts = make(map[string]int)
	}
	out.RetryCounts[name]++
	return out
}

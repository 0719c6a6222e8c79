package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"scribe/internal/command"
	"scribe/internal/config"
	"scribe/internal/flow"
	"scribe/internal/llm"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/notifications"
	"scribe/internal/pipeline"
	"scribe/internal/services"
	"scribe/internal/transcribe"
)

// Output formats a session can produce.
const (
	FormatArticle = "article"
	FormatPodcast = "podcast"
	FormatSocial  = "social"
)

// ValidFormats lists the supported output formats in presentation order.
func ValidFormats() []string {
	return []string{FormatArticle, FormatPodcast, FormatSocial}
}

// ReviewDecision is the outcome of an article review.
type ReviewDecision struct {
	Approved bool
	Feedback string
}

// ReviewFunc inspects a drafted article and decides whether to accept it or
// send the session back through generation.
type ReviewFunc func(ctx context.Context, articlePath string) (ReviewDecision, error)

// AutoApprove accepts every draft. It is the default reviewer for
// non-interactive runs.
func AutoApprove(context.Context, string) (ReviewDecision, error) {
	return ReviewDecision{Approved: true}, nil
}

type downloader interface {
	FetchCaptions(ctx context.Context, url, destDir string) (string, error)
	FetchAutoSubtitles(ctx context.Context, url, destDir string) (string, error)
	DownloadAudio(ctx context.Context, url, destDir string) (string, error)
}

type audioProcessor interface {
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
}

type transcriber interface {
	TranscribeFile(ctx context.Context, source, outputDir string) (transcribe.Result, error)
}

type completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Session wires configuration, providers, and the state machine together.
type Session struct {
	cfg         *config.Config
	logger      *slog.Logger
	recorder    pipeline.Recorder
	notifier    notifications.Service
	downloader  downloader
	processor   audioProcessor
	transcriber transcriber
	llm         completer
	review      ReviewFunc
	run         command.RunFunc
}

// Option customizes session construction, mostly for tests.
type Option func(*Session)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder attaches a pipeline run recorder.
func WithRecorder(recorder pipeline.Recorder) Option {
	return func(s *Session) { s.recorder = recorder }
}

// WithNotifier overrides the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(s *Session) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithDownloader overrides the remote source downloader.
func WithDownloader(d downloader) Option {
	return func(s *Session) {
		if d != nil {
			s.downloader = d
		}
	}
}

// WithProcessor overrides the local audio processor.
func WithProcessor(p audioProcessor) Option {
	return func(s *Session) {
		if p != nil {
			s.processor = p
		}
	}
}

// WithTranscriber overrides the speech-to-text service.
func WithTranscriber(t transcriber) Option {
	return func(s *Session) {
		if t != nil {
			s.transcriber = t
		}
	}
}

// WithCompleter overrides the LLM client.
func WithCompleter(c completer) Option {
	return func(s *Session) {
		if c != nil {
			s.llm = c
		}
	}
}

// WithReviewer overrides the article reviewer.
func WithReviewer(review ReviewFunc) Option {
	return func(s *Session) {
		if review != nil {
			s.review = review
		}
	}
}

// WithCommandRunFunc overrides subprocess execution for the TTS step.
func WithCommandRunFunc(run command.RunFunc) Option {
	return func(s *Session) {
		if run != nil {
			s.run = run
		}
	}
}

// New builds a session service around real providers. Options substitute any
// of them.
func New(cfg *config.Config, opts ...Option) *Session {
	s := &Session{
		cfg:         cfg,
		logger:      logging.NewNop(),
		notifier:    notifications.NewService(cfg.Notifications),
		downloader:  media.NewDownloader(cfg.Downloader),
		processor:   media.NewProcessor(cfg.Media),
		transcriber: transcribe.NewService(cfg.Transcriber),
		llm: llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		}),
		review: AutoApprove,
		run:    command.Runner(command.Options{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRequest describes a new production run.
type StartRequest struct {
	ProjectName   string
	InputType     flow.InputType
	InputSource   string
	Formats       []string
	MaxIterations int
}

// Start creates a project directory, locks it, and drives the state machine
// from PROJECT_INIT to a terminal state. The returned context is the terminal
// snapshot; a nil error with CurrentState == ERROR means the session failed
// in a handler, not in infrastructure.
func (s *Session) Start(ctx context.Context, req StartRequest) (flow.Context, error) {
	if err := validateRequest(req); err != nil {
		return flow.Context{}, err
	}

	projectID := newProjectID(req.ProjectName)
	runDir := s.cfg.SessionDir(projectID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return flow.Context{}, fmt.Errorf("create run dir: %w", err)
	}

	unlock, err := lockRunDir(runDir)
	if err != nil {
		return flow.Context{}, err
	}
	defer unlock()

	runner, err := s.newRunner(projectID, req)
	if err != nil {
		return flow.Context{}, err
	}

	started := time.Now()
	final, err := runner.Run(ctx, flow.NewContext(projectID, req.ProjectName, runDir))
	if err != nil {
		return final, err
	}
	s.notifyOutcome(ctx, final, time.Since(started))
	return final, nil
}

// Resume reloads the latest resumable checkpoint of an existing project and
// continues from the state it recorded. A run that ended in ERROR resumes at
// the state that failed.
func (s *Session) Resume(ctx context.Context, projectID string) (flow.Context, error) {
	return s.ResumeFrom(ctx, projectID, "")
}

// ResumeFrom is Resume with an explicit checkpoint path, for operators who
// want to rewind further than the latest resumable snapshot.
func (s *Session) ResumeFrom(ctx context.Context, projectID, checkpointPath string) (flow.Context, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return flow.Context{}, services.Wrap(services.ErrValidation, "session", "resume", "project id is required", nil)
	}
	runDir := s.cfg.SessionDir(projectID)
	if _, err := os.Stat(runDir); err != nil {
		return flow.Context{}, services.Wrap(services.ErrNotFound, "session", "resume",
			fmt.Sprintf("no run directory for project %s", projectID), err)
	}

	unlock, err := lockRunDir(runDir)
	if err != nil {
		return flow.Context{}, err
	}
	defer unlock()

	runner, err := s.newRunner(projectID, StartRequest{})
	if err != nil {
		return flow.Context{}, err
	}

	if checkpointPath == "" {
		store, err := flow.NewCheckpointStore(s.cfg.CheckpointDir(projectID))
		if err != nil {
			return flow.Context{}, err
		}
		checkpointPath, err = store.LatestResumable()
		if err != nil {
			return flow.Context{}, err
		}
	}

	started := time.Now()
	final, err := runner.Resume(ctx, checkpointPath)
	if err != nil {
		return final, err
	}
	s.notifyOutcome(ctx, final, time.Since(started))
	return final, nil
}

// CheckpointDir exposes where a project's checkpoints live, for operator
// messages.
func (s *Session) CheckpointDir(projectID string) string {
	return s.cfg.CheckpointDir(projectID)
}

func (s *Session) newRunner(projectID string, req StartRequest) (*flow.Runner, error) {
	store, err := flow.NewCheckpointStore(s.cfg.CheckpointDir(projectID))
	if err != nil {
		return nil, err
	}
	maxIterations := s.cfg.Workflow.MaxIterations
	if req.MaxIterations > 0 {
		maxIterations = req.MaxIterations
	}
	return flow.NewRunner(
		s.handlers(req),
		store,
		flow.WithRunnerLogger(s.logger),
		flow.WithMaxIterations(maxIterations),
	), nil
}

func (s *Session) notifyOutcome(ctx context.Context, final flow.Context, elapsed time.Duration) {
	switch final.CurrentState {
	case flow.StateComplete:
		if err := s.notifier.NotifySessionCompleted(ctx, final.ProjectName, final.PackagePath, elapsed); err != nil {
			s.logger.Warn("completion notification failed", logging.Error(err))
		}
	case flow.StateError:
		var cause error
		if final.LastError != nil {
			cause = final.LastError
		}
		if err := s.notifier.NotifyError(ctx, cause, final.ProjectName); err != nil {
			s.logger.Warn("error notification failed", logging.Error(err))
		}
	}
}

func validateRequest(req StartRequest) error {
	if strings.TrimSpace(req.ProjectName) == "" {
		return services.Wrap(services.ErrValidation, "session", "start", "project name is required", nil)
	}
	switch req.InputType {
	case flow.InputYouTube, flow.InputAudio, flow.InputText:
	default:
		return services.Wrap(services.ErrValidation, "session", "start",
			fmt.Sprintf("unsupported input type %q", req.InputType), nil)
	}
	if strings.TrimSpace(req.InputSource) == "" {
		return services.Wrap(services.ErrValidation, "session", "start", "input source is required", nil)
	}
	if len(req.Formats) == 0 {
		return services.Wrap(services.ErrValidation, "session", "start", "at least one output format is required", nil)
	}
	valid := make(map[string]bool, len(ValidFormats()))
	for _, format := range ValidFormats() {
		valid[format] = true
	}
	for _, format := range req.Formats {
		if !valid[format] {
			return services.Wrap(services.ErrValidation, "session", "start",
				fmt.Sprintf("unsupported output format %q", format), nil)
		}
	}
	return nil
}

// newProjectID combines a slug of the project name with a short unique
// suffix, readable in directory listings yet collision free.
func newProjectID(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	slug = strings.Trim(slug, "-")
	if len(slug) > 40 {
		slug = slug[:40]
	}
	if slug == "" {
		slug = "project"
	}
	return slug + "-" + uuid.NewString()[:8]
}

func lockRunDir(runDir string) (func(), error) {
	lock := flock.New(filepath.Join(runDir, "session.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock run dir: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrValidation, "session", "lock",
			"another session is already working on this project", nil)
	}
	return func() { _ = lock.Unlock() }, nil
}

package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/flow"
	"scribe/internal/llm"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// handlers builds the state handler table for one run. The request carries
// operator choices for a fresh start; on resume it is empty and every choice
// is read back from the checkpointed context.
func (s *Session) handlers(req StartRequest) map[flow.State]flow.Handler {
	return map[flow.State]flow.Handler{
		flow.StateProjectInit:   s.handleProjectInit,
		flow.StateInputSelect:   s.makeInputSelect(req),
		flow.StateTranscribe:    s.handleTranscribe,
		flow.StateResearch:      s.handleResearch,
		flow.StateOutputSelect:  s.handleOutputSelect,
		flow.StateGenerate:      s.handleGenerate,
		flow.StateArticleReview: s.handleArticleReview,
		flow.StatePackage:       s.handlePackage,
	}
}

func inputsDir(c flow.Context) string  { return filepath.Join(c.RunDir, "inputs") }
func outputsDir(c flow.Context) string { return filepath.Join(c.RunDir, "outputs") }
func packageDir(c flow.Context) string { return filepath.Join(c.RunDir, "package") }

func (s *Session) handleProjectInit(ctx context.Context, c flow.Context) (flow.State, flow.Context, error) {
	for _, dir := range []string{inputsDir(c), outputsDir(c), packageDir(c)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return flow.StateError, c, fmt.Errorf("create project layout: %w", err)
		}
	}
	if err := s.notifier.NotifySessionStarted(ctx, c.ProjectName); err != nil {
		s.logger.Warn("start notification failed", logging.Error(err))
	}
	return flow.StateInputSelect, c, nil
}

func (s *Session) makeInputSelect(req StartRequest) flow.Handler {
	return func(ctx context.Context, c flow.Context) (flow.State, flow.Context, error) {
		// A resumed session already carries its choices.
		if c.InputType == "" {
			c.InputType = req.InputType
		}
		if c.InputSource == "" {
			c.InputSource = strings.TrimSpace(req.InputSource)
		}
		if len(c.OutputFormats) == 0 {
			c.OutputFormats = append([]string(nil), req.Formats...)
		}

		if c.InputSource == "" {
			return flow.StateError, c, services.Wrap(services.ErrValidation, "input", "select", "input source is required", nil)
		}
		if len(c.OutputFormats) == 0 {
			return flow.StateError, c, services.Wrap(services.ErrValidation, "input", "select", "no output formats selected", nil)
		}

		switch c.InputType {
		case flow.InputYouTube:
			if !strings.Contains(c.InputSource, "://") {
				return flow.StateError, c, services.Wrap(services.ErrValidation, "input", "select",
					fmt.Sprintf("%q is not a url", c.InputSource), nil)
			}
			return flow.StateTranscribe, c, nil
		case flow.InputAudio:
			if _, err := os.Stat(c.InputSource); err != nil {
				return flow.StateError, c, services.Wrap(services.ErrNotFound, "input", "select", "audio file missing", err)
			}
			return flow.StateTranscribe, c, nil
		case flow.InputText:
			if _, err := os.Stat(c.InputSource); err != nil {
				return flow.StateError, c, services.Wrap(services.ErrNotFound, "input", "select", "text file missing", err)
			}
			return flow.StateResearch, c, nil
		default:
			return flow.StateError, c, services.Wrap(services.ErrValidation, "input", "select",
				fmt.Sprintf("unsupported input type %q", c.InputType), nil)
		}
	}
}

func (s *Session) handleTranscribe(ctx context.Context, c flow.Context) (flow.State, flow.Context, error) {
	result, err := s.runTranscription(ctx, c)
	if err != nil {
		return flow.StateError, c, err
	}
	transcriptPath, ok := result.Artifacts["transcript"]
	if !ok {
		return flow.StateError, c, services.Wrap(services.ErrTransient, "transcribe", "collect",
			"transcription pipeline produced no transcript artifact", nil)
	}
	c.TranscriptPath = transcriptPath

	if err := s.notifier.NotifyTranscriptReady(ctx, c.ProjectName); err != nil {
		s.logger.Warn("transcript notification failed", logging.Error(err))
	}
	return flow.StateResearch, c, nil
}

func (s *Session) handleResearch(ctx context.Context, c flow.Context) (flow.State, flow.Context, error) {
	material, err := s.loadSourceMaterial(c)
	if err != nil {
		return flow.StateError, c, err
	}

	brief, err := s.llm.CompleteJSON(ctx, researchSystemPrompt, material)
	if err != nil {
		return flow.StateError, c, services.Wrap(services.ErrTransient, "research", "complete", "llm research failed", err)
	}
	// The brief must be machine-readable; generation feeds it back to the
	// model verbatim.
	var probe map[string]any
	if err := llm.DecodeJSON(brief, &probe); err != nil {
		return flow.StateError, c, services.Wrap(services.ErrTransient, "research", "parse", "research brief is not valid JSON", err)
	}

	researchPath := filepath.Join(outputsDir(c), "research.json")
	if err := os.WriteFile(researchPath, []byte(brief), 0o644); err != nil {
		return flow.StateError, c, fmt.Errorf("write research brief: %w", err)
	}
	c.ResearchPath = researchPath
	return flow.StateOutputSelect, c, nil
}

func (s *Session) handleOutputSelect(ctx context.Context, c flow.Context) (flow.State, flow.Context, error) {
	pending := make([]string, 0, len(c.OutputFormats))
	for _, format := range c.OutputFormats {
		if artifactPathFor(c, format) != "" {
			continue
		}
		if c.RetryCounts[generateRetryKey(format)] >= s.cfg.Workflow.StageRetryAttempts {
			s.logger.Warn("dropping output format after repeated failures",
				logging.String("format", format))
			continue
		}
		pending = append(pending, format)
	}
	c.PendingFormats = pending

	if len(pending) == 0 {
		if !hasAnyArtifact(c) {
			return flow.StateError, c, services.Wrap(services.ErrTransient, "output", "select",
				"every requested format failed to generate", nil)
		}
		return flow.StatePackage, c, nil
	}
	return flow.StateGenerate, c, nil
}

func (s *Session) handleGenerate(ctx context.Context, c flow.Context) (flow.State, flow.Context, error) {
	brief, err := os.ReadFile(c.ResearchPath)
	if err != nil {
		return flow.StateError, c, fmt.Errorf("read research brief: %w", err)
	}

	result, branches, err := s.runGeneration(ctx, c, string(brief))
	if err != nil {
		return flow.StateError, c, err
	}

	generated := make([]string, 0, len(c.PendingFormats))
	for _, branch := range branches {
		format := branch.Stage
		if branch.Err != nil {
			c = c.IncrementRetry(generateRetryKey(format))
			s.logger.Warn("format generation failed",
				logging.String("format", format),
				logging.Error(branch.Err),
			)
			continue
		}
		if branch.Skipped {
			continue
		}
		generated = append(generated, format)
	}
	c = applyArtifacts(c, result.Artifacts)

	if len(generated) == 0 {
		// Failed formats loop back through output selection while they still
		// have retry budget. Only a fully exhausted round is fatal.
		retryable := false
		for _, format := range c.PendingFormats {
			if c.RetryCounts[generateRetryKey(format)] < s.cfg.Workflow.StageRetryAttempts {
				retryable = true
				break
			}
		}
		if !retryable && !hasAnyArtifact(c) {
			return flow.StateError, c, services.Wrap(services.ErrTransient, "generate", "run",
				"no output format could be generated", nil)
		}
	} else {
		if err := s.notifier.NotifyOutputsReady(ctx, c.ProjectName, generated); err != nil {
			s.logger.Warn("outputs notification failed", logging.Error(err))
		}
	}
	return flow.StateArticleReview, c, nil
}

func (s *Session) handleArticleReview(ctx context.Context, c flow.Context) (flow.State, flow.Context, error) {
	// Review applies only when an article was just drafted.
	if c.ArticlePath == "" || !containsFormat(c.OutputFormats, FormatArticle) {
		// A requested article with no draft means generation failed. It goes
		// back to generation while budget remains; the retry flag must agree
		// with the state proposed here or the transition is invalid.
		if c.ArticlePath == "" && containsFormat(c.OutputFormats, FormatArticle) &&
			c.RetryCounts[generateRetryKey(FormatArticle)] < s.cfg.Workflow.StageRetryAttempts {
			c.ArticleRetryRequested = true
			remaining := make([]string, 0, len(c.PendingFormats))
			for _, format := range c.PendingFormats {
				if artifactPathFor(c, format) == "" {
					remaining = append(remaining, format)
				}
			}
			if !containsFormat(remaining, FormatArticle) {
				remaining = append(remaining, FormatArticle)
			}
			c.PendingFormats = remaining
			return flow.StateGenerate, c, nil
		}
		c.ArticleRetryRequested = false
		return flow.StatePackage, c, nil
	}

	decision, err := s.review(ctx, c.ArticlePath)
	if err != nil {
		// A user-cancel from the reviewer keeps its marker so the runner can
		// route the session to a graceful completion.
		if services.IsUserCancelled(err) {
			return flow.StateError, c, err
		}
		return flow.StateError, c, services.Wrap(services.ErrTransient, "review", "run", "article review failed", err)
	}
	if decision.Approved {
		c.ArticleRetryRequested = false
		return flow.StatePackage, c, nil
	}

	c = c.IncrementRetry("article_review")
	c.ArticleRetryRequested = true
	c.ArticlePath = ""
	c.PendingFormats = []string{FormatArticle}
	if feedback := strings.TrimSpace(decision.Feedback); feedback != "" {
		s.logger.Info("article sent back for regeneration", logging.String("feedback", feedback))
	}
	return flow.StateGenerate, c, nil
}

func (s *Session) handlePackage(ctx context.Context, c flow.Context) (flow.State, flow.Context, error) {
	packagePath, err := s.buildPackage(ctx, c)
	if err != nil {
		return flow.StateError, c, err
	}
	c.PackagePath = packagePath

	// Formats that were generated are no longer pending. Formats that failed
	// but still have retry budget stay pending and loop back through output
	// selection.
	remaining := make([]string, 0, len(c.PendingFormats))
	for _, format := range c.PendingFormats {
		if artifactPathFor(c, format) != "" {
			continue
		}
		if c.RetryCounts[generateRetryKey(format)] >= s.cfg.Workflow.StageRetryAttempts {
			continue
		}
		remaining = append(remaining, format)
	}
	c.PendingFormats = remaining

	if len(remaining) > 0 {
		return flow.StateOutputSelect, c, nil
	}
	return flow.StateComplete, c, nil
}

// loadSourceMaterial returns the text research works from: the transcript
// for spoken sources, the input file itself for text input.
func (s *Session) loadSourceMaterial(c flow.Context) (string, error) {
	path := c.TranscriptPath
	if c.InputType == flow.InputText {
		path = c.InputSource
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "research", "load material", "source material missing", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "research", "load material", "source material is empty", nil)
	}
	return text, nil
}

type manifestEntry struct {
	Format string `json:"format"`
	File   string `json:"file"`
	Bytes  int64  `json:"bytes"`
}

type manifest struct {
	ProjectID   string          `json:"project_id"`
	ProjectName string          `json:"project_name"`
	GeneratedAt time.Time       `json:"generated_at"`
	InputType   flow.InputType  `json:"input_type"`
	InputSource string          `json:"input_source"`
	Outputs     []manifestEntry `json:"outputs"`
}

func generateRetryKey(format string) string { return "generate:" + format }

func artifactPathFor(c flow.Context, format string) string {
	switch format {
	case FormatArticle:
		return c.ArticlePath
	case FormatPodcast:
		return c.PodcastScriptPath
	case FormatSocial:
		return c.SocialPostsPath
	default:
		return ""
	}
}

func hasAnyArtifact(c flow.Context) bool {
	for _, format := range ValidFormats() {
		if artifactPathFor(c, format) != "" {
			return true
		}
	}
	return false
}

func applyArtifacts(c flow.Context, artifacts map[string]string) flow.Context {
	if path, ok := artifacts[FormatArticle]; ok {
		c.ArticlePath = path
	}
	if path, ok := artifacts[FormatPodcast]; ok {
		c.PodcastScriptPath = path
	}
	if path, ok := artifacts[FormatSocial]; ok {
		c.SocialPostsPath = path
	}
	if path, ok := artifacts["podcast-audio"]; ok {
		c.AudioPath = path
	}
	return c
}

func containsFormat(formats []string, want string) bool {
	for _, format := range formats {
		if format == want {
			return true
		}
	}
	return false
}

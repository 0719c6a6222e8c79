package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribe/internal/events"
	"scribe/internal/flow"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
	"scribe/internal/services"
)

// newPipelineContext builds a run context whose event bus feeds the session
// logger, so stage lifecycle shows up in the structured log stream.
func (s *Session) newPipelineContext(c flow.Context) *pipeline.Context {
	bus := events.NewBus()
	logger := s.logger
	_ = bus.Subscribe(&events.FuncListener{Fn: func(ev events.Event) {
		switch event := ev.(type) {
		case events.StageProgress:
			logger.Debug("stage progress",
				logging.String(logging.FieldStage, event.Stage),
				logging.String("message", event.Message),
				logging.Float64("percent", event.Percent),
			)
		case events.StageErrored:
			logger.Warn("stage attempt failed",
				logging.String(logging.FieldStage, event.Stage),
				logging.Int("attempt", event.Attempt),
				logging.Bool("will_retry", event.WillRetry),
				logging.Error(event.Err),
			)
		}
	}})
	runID := c.ProjectID + "-" + uuid.NewString()[:8]
	return pipeline.NewContext(runID, outputsDir(c), logger, bus)
}

func (s *Session) defaultRetryPolicy() pipeline.RetryPolicy {
	return pipeline.RetryPolicy{
		MaxAttempts: s.cfg.Workflow.StageRetryAttempts,
		Backoff:     time.Duration(s.cfg.Workflow.StageRetryBackoffMS) * time.Millisecond,
	}
}

// runTranscription executes the transcript acquisition pipeline. For remote
// video the strategies are ordered cheapest first: uploaded captions, then
// auto-generated subtitles, then downloading the audio and running local
// speech-to-text. Local audio goes straight to extraction and transcription.
func (s *Session) runTranscription(ctx context.Context, c flow.Context) (*pipeline.Result, error) {
	var stages []pipeline.Stage
	switch c.InputType {
	case flow.InputYouTube:
		stages = []pipeline.Stage{pipeline.Fallback(
			"acquire-transcript",
			"Fetch a transcript using the cheapest working strategy",
			s.captionStage("captions", "Download uploader-provided captions", c, s.downloader.FetchCaptions),
			s.captionStage("auto-subtitles", "Download auto-generated subtitles", c, s.downloader.FetchAutoSubtitles),
			s.remoteSpeechToTextStage(c),
		)}
	case flow.InputAudio:
		stages = []pipeline.Stage{
			s.extractAudioStage(c),
			s.localSpeechToTextStage(c),
		}
	default:
		return nil, services.Wrap(services.ErrValidation, "transcribe", "plan",
			fmt.Sprintf("input type %q does not need transcription", c.InputType), nil)
	}

	p := pipeline.New("transcription", stages,
		pipeline.WithLogger(s.logger),
		pipeline.WithRecorder(s.recorder),
	)
	return p.Run(ctx, c.InputSource, s.newPipelineContext(c))
}

type fetchFunc func(ctx context.Context, url, destDir string) (string, error)

func (s *Session) captionStage(name, description string, c flow.Context, fetch fetchFunc) pipeline.Stage {
	return pipeline.NewStage(name, description,
		func(ctx context.Context, input any, run *pipeline.Context) (any, error) {
			subtitlePath, err := fetch(ctx, c.InputSource, inputsDir(c))
			if err != nil {
				return nil, err
			}
			data, err := os.ReadFile(subtitlePath)
			if err != nil {
				return nil, fmt.Errorf("read subtitle file: %w", err)
			}
			text := subtitleToText(string(data))
			if text == "" {
				return nil, services.Wrap(services.ErrValidation, name, "convert", "subtitle file contained no text", nil)
			}
			return writeTranscript(run, outputsDir(c), text)
		},
	)
}

func (s *Session) remoteSpeechToTextStage(c flow.Context) pipeline.Stage {
	return pipeline.NewStage("speech-to-text", "Download the audio track and transcribe it locally",
		func(ctx context.Context, input any, run *pipeline.Context) (any, error) {
			run.Progress("speech-to-text", "downloading audio", 10, nil)
			audioPath, err := s.downloader.DownloadAudio(ctx, c.InputSource, inputsDir(c))
			if err != nil {
				return nil, err
			}
			run.Progress("speech-to-text", "transcribing", 50, nil)
			result, err := s.transcriber.TranscribeFile(ctx, audioPath, outputsDir(c))
			if err != nil {
				return nil, err
			}
			return writeTranscript(run, outputsDir(c), result.Text)
		},
	)
}

func (s *Session) extractAudioStage(c flow.Context) pipeline.Stage {
	return pipeline.NewStage("extract-audio", "Normalize the input audio for speech-to-text",
		func(ctx context.Context, input any, run *pipeline.Context) (any, error) {
			normalized := filepath.Join(inputsDir(c), "audio.wav")
			if err := s.processor.ExtractAudio(ctx, c.InputSource, normalized); err != nil {
				return nil, err
			}
			return normalized, nil
		},
	)
}

func (s *Session) localSpeechToTextStage(c flow.Context) pipeline.Stage {
	return pipeline.NewStage("speech-to-text", "Transcribe the normalized audio",
		func(ctx context.Context, input any, run *pipeline.Context) (any, error) {
			audioPath, ok := input.(string)
			if !ok || audioPath == "" {
				return nil, services.Wrap(services.ErrValidation, "speech-to-text", "input", "no audio path from extraction", nil)
			}
			result, err := s.transcriber.TranscribeFile(ctx, audioPath, outputsDir(c))
			if err != nil {
				return nil, err
			}
			return writeTranscript(run, outputsDir(c), result.Text)
		},
		pipeline.WithRetry(s.defaultRetryPolicy()),
	)
}

// runGeneration drafts every pending format concurrently. Branch outcomes are
// reported individually; one failing format does not abort its siblings.
func (s *Session) runGeneration(ctx context.Context, c flow.Context, brief string) (*pipeline.Result, []pipeline.Branch, error) {
	children := make([]pipeline.Stage, 0, len(c.PendingFormats))
	for _, format := range c.PendingFormats {
		switch format {
		case FormatArticle:
			children = append(children, s.draftStage(FormatArticle, "Draft a long-form article",
				articleSystemPrompt, "article.md", c))
		case FormatPodcast:
			children = append(children, s.podcastStage(c))
		case FormatSocial:
			children = append(children, s.draftStage(FormatSocial, "Draft a set of social posts",
				socialSystemPrompt, "social.md", c))
		}
	}
	if len(children) == 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "generate", "plan", "no pending formats", nil)
	}

	parallel := pipeline.Parallel("generate-outputs", "Draft every selected format concurrently", false, children...)

	var branches []pipeline.Branch
	capture := pipeline.NewStage("generate-outputs", "Draft every selected format concurrently",
		func(ctx context.Context, input any, run *pipeline.Context) (any, error) {
			output, err := parallel.Run(ctx, input, run)
			if err != nil {
				return nil, err
			}
			if captured, ok := output.([]pipeline.Branch); ok {
				branches = captured
			}
			return output, nil
		},
	)

	p := pipeline.New("generation", []pipeline.Stage{capture},
		pipeline.WithLogger(s.logger),
		pipeline.WithRecorder(s.recorder),
	)
	result, err := p.Run(ctx, brief, s.newPipelineContext(c))
	if err != nil {
		return nil, nil, err
	}
	return result, branches, nil
}

func (s *Session) draftStage(format, description, systemPrompt, fileName string, c flow.Context) pipeline.Stage {
	return pipeline.NewStage(format, description,
		func(ctx context.Context, input any, run *pipeline.Context) (any, error) {
			brief, _ := input.(string)
			content, err := s.llm.Complete(ctx, systemPrompt, brief)
			if err != nil {
				return nil, err
			}
			path := filepath.Join(outputsDir(c), fileName)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", format, err)
			}
			run.PutArtifact(format, path)
			return path, nil
		},
	)
}

func (s *Session) podcastStage(c flow.Context) pipeline.Stage {
	return pipeline.NewStage(FormatPodcast, "Draft a podcast script and optionally render audio",
		func(ctx context.Context, input any, run *pipeline.Context) (any, error) {
			brief, _ := input.(string)
			script, err := s.llm.Complete(ctx, podcastSystemPrompt, brief)
			if err != nil {
				return nil, err
			}
			scriptPath := filepath.Join(outputsDir(c), "podcast.md")
			if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
				return nil, fmt.Errorf("write podcast script: %w", err)
			}
			run.PutArtifact(FormatPodcast, scriptPath)

			if s.cfg.TTS.Enabled {
				audioPath := filepath.Join(outputsDir(c), "podcast.wav")
				if err := s.renderSpeech(ctx, scriptPath, audioPath); err != nil {
					// The script is still valuable without audio.
					s.logger.Warn("podcast audio rendering failed", logging.Error(err))
				} else {
					run.PutArtifact("podcast-audio", audioPath)
				}
			}
			return scriptPath, nil
		},
	)
}

func (s *Session) renderSpeech(ctx context.Context, scriptPath, audioPath string) error {
	args := []string{"--output_file", audioPath}
	if voice := strings.TrimSpace(s.cfg.TTS.Voice); voice != "" {
		args = append(args, "--model", voice)
	}
	args = append(args, scriptPath)
	if _, err := s.run(ctx, s.cfg.TTS.Binary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "podcast", "render speech", "tts failed", err)
	}
	return nil
}

// writeTranscript persists transcript text and registers the artifact every
// acquisition strategy shares.
func writeTranscript(run *pipeline.Context, dir, text string) (string, error) {
	path := filepath.Join(dir, "transcript.txt")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(text)+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	run.PutArtifact("transcript", path)
	return path, nil
}

// subtitleToText flattens SRT or VTT content to plain text: cue indices,
// timestamps, and consecutive duplicate lines are dropped.
func subtitleToText(content string) string {
	var lines []string
	var previous string
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || line == "WEBVTT" {
			continue
		}
		if strings.Contains(line, "-->") {
			continue
		}
		if isCueIndex(line) {
			continue
		}
		if line == previous {
			continue
		}
		lines = append(lines, line)
		previous = line
	}
	return strings.Join(lines, "\n")
}

func isCueIndex(line string) bool {
	for _, r := range line {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(line) > 0
}

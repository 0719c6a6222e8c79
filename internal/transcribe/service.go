package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/command"
	"scribe/internal/config"
	"scribe/internal/services"
)

// Result contains the outputs of a transcription.
type Result struct {
	// Text is the plain text transcription.
	Text string
	// TextPath is where the transcript was written.
	TextPath string
	// JSONPath is the whisper JSON output, when produced.
	JSONPath string
}

// Service provides speech-to-text via a local whisper CLI.
type Service struct {
	cfg config.Transcriber
	run command.RunFunc
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithRunFunc injects the subprocess runner (used by tests).
func WithRunFunc(run command.RunFunc) ServiceOption {
	return func(s *Service) {
		if run != nil {
			s.run = run
		}
	}
}

// NewService constructs a transcription service from configuration.
func NewService(cfg config.Transcriber, opts ...ServiceOption) *Service {
	s := &Service{
		cfg: cfg,
		run: command.Runner(command.Options{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

// TranscribeFile transcribes an audio file and returns the transcript.
// outputDir defaults to the directory containing the source file.
func (s *Service) TranscribeFile(ctx context.Context, source, outputDir string) (Result, error) {
	var result Result

	if strings.TrimSpace(source) == "" {
		return result, services.Wrap(services.ErrValidation, "transcribe", "run", "source path required", nil)
	}
	if _, err := os.Stat(source); err != nil {
		return result, services.Wrap(services.ErrNotFound, "transcribe", "run", "source file missing", err)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	args := s.buildArgs(source, outputDir)
	if _, err := s.run(ctx, s.cfg.WhisperBinary, args...); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcribe", "run", "whisper failed", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	result.TextPath = filepath.Join(outputDir, baseName+".txt")
	result.JSONPath = filepath.Join(outputDir, baseName+".json")

	text, err := loadTranscriptText(result.JSONPath, result.TextPath)
	if err != nil {
		return result, err
	}
	result.Text = text
	return result, nil
}

func (s *Service) buildArgs(source, outputDir string) []string {
	args := []string{
		source,
		"--model", s.cfg.Model,
		"--output_dir", outputDir,
		"--output_format", "all",
		"--verbose", "False",
	}
	if s.cfg.Language != "" {
		args = append(args, "--language", s.cfg.Language)
	}
	return args
}

// loadTranscriptText prefers the JSON output, which preserves segment
// boundaries, and falls back to the plain text file.
func loadTranscriptText(jsonPath, textPath string) (string, error) {
	if data, err := os.ReadFile(jsonPath); err == nil {
		var parsed struct {
			Text     string `json:"text"`
			Segments []struct {
				Text string `json:"text"`
			} `json:"segments"`
		}
		if err := json.Unmarshal(data, &parsed); err == nil {
			if text := strings.TrimSpace(parsed.Text); text != "" {
				return text, nil
			}
			var lines []string
			for _, segment := range parsed.Segments {
				if text := strings.TrimSpace(segment.Text); text != "" {
					lines = append(lines, text)
				}
			}
			if len(lines) > 0 {
				return strings.Join(lines, "\n"), nil
			}
		}
	}

	data, err := os.ReadFile(textPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcribe", "collect output",
			"whisper produced no transcript", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", services.Wrap(services.ErrExternalTool, "transcribe", "collect output",
			"whisper produced an empty transcript", nil)
	}
	return text, nil
}

package media

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"scribe/internal/command"
	"scribe/internal/config"
	"scribe/internal/services"
)

// Processor wraps ffmpeg for local audio handling.
type Processor struct {
	cfg config.Media
	run command.RunFunc
}

// ProcessorOption customizes the processor.
type ProcessorOption func(*Processor)

// WithProcessorRunFunc injects the subprocess runner (used by tests).
func WithProcessorRunFunc(run command.RunFunc) ProcessorOption {
	return func(p *Processor) {
		if run != nil {
			p.run = run
		}
	}
}

// NewProcessor constructs a Processor from configuration.
func NewProcessor(cfg config.Media, opts ...ProcessorOption) *Processor {
	p := &Processor{
		cfg: cfg,
		run: command.Runner(command.Options{
			GracePeriod: time.Duration(cfg.TerminateGraceSec) * time.Second,
		}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExtractAudio pulls a mono 16 kHz wav track out of the input file, the
// layout speech-to-text models expect.
func (p *Processor) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	if strings.TrimSpace(inputPath) == "" {
		return services.Wrap(services.ErrValidation, "media", "extract audio", "input path is required", nil)
	}
	if strings.TrimSpace(outputPath) == "" {
		return services.Wrap(services.ErrValidation, "media", "extract audio", "output path is required", nil)
	}
	if _, err := os.Stat(inputPath); err != nil {
		return services.Wrap(services.ErrNotFound, "media", "extract audio", "input file missing", err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		outputPath,
	}
	if _, err := p.run(ctx, p.cfg.FFmpegBinary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "media", "extract audio", "ffmpeg failed", err)
	}
	return nil
}

// ProbeDuration reports the duration of a media file via ffprobe.
func (p *Processor) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	if strings.TrimSpace(path) == "" {
		return 0, services.Wrap(services.ErrValidation, "media", "probe", "path is required", nil)
	}

	output, err := p.run(ctx, p.probeBinary(),
		"-v", "error", "-hide_banner",
		"-show_format",
		"-of", "json",
		"--", path,
	)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "media", "probe", "ffprobe failed", err)
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "media", "probe", "parse ffprobe output", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "media", "probe", "parse duration", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// probeBinary derives the ffprobe path from the configured ffmpeg binary so a
// custom ffmpeg install brings its sibling ffprobe along.
func (p *Processor) probeBinary() string {
	binary := p.cfg.FFmpegBinary
	if strings.HasSuffix(binary, "ffmpeg") {
		return strings.TrimSuffix(binary, "ffmpeg") + "ffprobe"
	}
	return "ffprobe"
}

package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/command"
	"scribe/internal/config"
	"scribe/internal/services"
)

// Downloader fetches captions, subtitles, and audio from remote videos via
// yt-dlp.
type Downloader struct {
	cfg config.Downloader
	run command.RunFunc
}

// DownloaderOption customizes the downloader.
type DownloaderOption func(*Downloader)

// WithDownloaderRunFunc injects the subprocess runner (used by tests).
func WithDownloaderRunFunc(run command.RunFunc) DownloaderOption {
	return func(d *Downloader) {
		if run != nil {
			d.run = run
		}
	}
}

// NewDownloader constructs a Downloader from configuration.
func NewDownloader(cfg config.Downloader, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		cfg: cfg,
		run: command.Runner(command.Options{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FetchCaptions downloads uploader-provided captions without downloading the
// video. It returns the path of the produced subtitle file.
func (d *Downloader) FetchCaptions(ctx context.Context, url, destDir string) (string, error) {
	return d.fetchSubtitleFile(ctx, url, destDir, "--write-subs")
}

// FetchAutoSubtitles downloads auto-generated subtitles without downloading
// the video. It returns the path of the produced subtitle file.
func (d *Downloader) FetchAutoSubtitles(ctx context.Context, url, destDir string) (string, error) {
	return d.fetchSubtitleFile(ctx, url, destDir, "--write-auto-subs")
}

func (d *Downloader) fetchSubtitleFile(ctx context.Context, url, destDir, mode string) (string, error) {
	if err := validateTarget(url, destDir); err != nil {
		return "", err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := []string{
		"--skip-download",
		mode,
		"--sub-langs", strings.Join(d.cfg.SubtitleLanguages, ","),
		"--convert-subs", "srt",
		"--output", filepath.Join(destDir, "source.%(ext)s"),
		url,
	}
	if _, err := d.run(ctx, d.cfg.YtDlpBinary, args...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "download", "fetch subtitles", "yt-dlp failed", err)
	}

	path, err := findSubtitleFile(destDir, d.cfg.SubtitleLanguages)
	if err != nil {
		return "", err
	}
	return path, nil
}

// DownloadAudio downloads the best audio track of a remote video as mp3 and
// returns its path.
func (d *Downloader) DownloadAudio(ctx context.Context, url, destDir string) (string, error) {
	if err := validateTarget(url, destDir); err != nil {
		return "", err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	target := filepath.Join(destDir, "source.mp3")
	args := []string{
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--output", filepath.Join(destDir, "source.%(ext)s"),
		url,
	}
	if _, err := d.run(ctx, d.cfg.YtDlpBinary, args...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "download", "download audio", "yt-dlp failed", err)
	}
	if _, err := os.Stat(target); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "download", "download audio",
			fmt.Sprintf("yt-dlp reported success but %s is missing", target), err)
	}
	return target, nil
}

func (d *Downloader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.TimeoutSeconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(d.cfg.TimeoutSeconds)*time.Second)
}

func validateTarget(url, destDir string) error {
	if strings.TrimSpace(url) == "" {
		return services.Wrap(services.ErrValidation, "download", "validate", "source url is required", nil)
	}
	if strings.TrimSpace(destDir) == "" {
		return services.Wrap(services.ErrValidation, "download", "validate", "destination directory is required", nil)
	}
	return os.MkdirAll(destDir, 0o755)
}

// findSubtitleFile locates the downloaded subtitle, preferring the order of
// the configured languages.
func findSubtitleFile(destDir string, languages []string) (string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", fmt.Errorf("read download dir: %w", err)
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".srt") || strings.HasSuffix(name, ".vtt") {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", services.Wrap(services.ErrNotFound, "download", "fetch subtitles", "no subtitle file produced", nil)
	}

	for _, language := range languages {
		for _, name := range candidates {
			if strings.Contains(name, "."+language+".") {
				return filepath.Join(destDir, name), nil
			}
		}
	}
	return filepath.Join(destDir, candidates[0]), nil
}

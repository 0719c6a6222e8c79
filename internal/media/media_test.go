package media_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/media"
	"scribe/internal/services"
	"scribe/internal/testsupport"
)

func downloaderConfig() config.Downloader {
	cfg := config.Default()
	return cfg.Downloader
}

func TestFetchCaptionsReturnsProducedFile(t *testing.T) {
	destDir := t.TempDir()
	var gotArgs []string
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		gotArgs = append([]string{name}, args...)
		testsupport.WriteFile(t, filepath.Join(destDir, "source.en.srt"), 64)
		return "", nil
	}

	downloader := media.NewDownloader(downloaderConfig(), media.WithDownloaderRunFunc(run))
	path, err := downloader.FetchCaptions(context.Background(), "https://example.com/v/1", destDir)
	if err != nil {
		t.Fatalf("FetchCaptions failed: %v", err)
	}
	if filepath.Base(path) != "source.en.srt" {
		t.Fatalf("unexpected path: %q", path)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "--write-subs") {
		t.Fatalf("expected --write-subs in args: %v", gotArgs)
	}
	if !strings.Contains(joined, "--skip-download") {
		t.Fatalf("expected --skip-download in args: %v", gotArgs)
	}
	if gotArgs[0] != "yt-dlp" {
		t.Fatalf("unexpected binary: %q", gotArgs[0])
	}
}

func TestFetchAutoSubtitlesPrefersConfiguredLanguage(t *testing.T) {
	destDir := t.TempDir()
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		if !strings.Contains(strings.Join(args, " "), "--write-auto-subs") {
			t.Fatalf("expected --write-auto-subs in args: %v", args)
		}
		testsupport.WriteFile(t, filepath.Join(destDir, "source.de.srt"), 64)
		testsupport.WriteFile(t, filepath.Join(destDir, "source.en.srt"), 64)
		return "", nil
	}

	downloader := media.NewDownloader(downloaderConfig(), media.WithDownloaderRunFunc(run))
	path, err := downloader.FetchAutoSubtitles(context.Background(), "https://example.com/v/1", destDir)
	if err != nil {
		t.Fatalf("FetchAutoSubtitles failed: %v", err)
	}
	if filepath.Base(path) != "source.en.srt" {
		t.Fatalf("expected english subtitle preferred, got %q", path)
	}
}

func TestFetchCaptionsNoSubtitleProduced(t *testing.T) {
	destDir := t.TempDir()
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		return "", nil
	}

	downloader := media.NewDownloader(downloaderConfig(), media.WithDownloaderRunFunc(run))
	_, err := downloader.FetchCaptions(context.Background(), "https://example.com/v/1", destDir)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestFetchCaptionsToolFailure(t *testing.T) {
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		return "", errors.New("network unreachable")
	}
	downloader := media.NewDownloader(downloaderConfig(), media.WithDownloaderRunFunc(run))
	_, err := downloader.FetchCaptions(context.Background(), "https://example.com/v/1", t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external-tool marker, got %v", err)
	}
}

func TestDownloadAudioVerifiesOutputExists(t *testing.T) {
	destDir := t.TempDir()
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		return "", nil
	}
	downloader := media.NewDownloader(downloaderConfig(), media.WithDownloaderRunFunc(run))
	if _, err := downloader.DownloadAudio(context.Background(), "https://example.com/v/1", destDir); err == nil {
		t.Fatal("expected error when output file missing")
	}

	run = func(ctx context.Context, name string, args ...string) (string, error) {
		testsupport.WriteFile(t, filepath.Join(destDir, "source.mp3"), 128)
		return "", nil
	}
	downloader = media.NewDownloader(downloaderConfig(), media.WithDownloaderRunFunc(run))
	path, err := downloader.DownloadAudio(context.Background(), "https://example.com/v/1", destDir)
	if err != nil {
		t.Fatalf("DownloadAudio failed: %v", err)
	}
	if filepath.Base(path) != "source.mp3" {
		t.Fatalf("unexpected path: %q", path)
	}
}

func TestDownloaderValidatesInputs(t *testing.T) {
	downloader := media.NewDownloader(downloaderConfig())
	if _, err := downloader.FetchCaptions(context.Background(), " ", t.TempDir()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := downloader.DownloadAudio(context.Background(), "https://example.com", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExtractAudioBuildsMonoWavArgs(t *testing.T) {
	input := filepath.Join(t.TempDir(), "input.mp4")
	testsupport.WriteFile(t, input, 256)
	output := filepath.Join(t.TempDir(), "audio.wav")

	var gotArgs []string
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		gotArgs = append([]string{name}, args...)
		return "", nil
	}
	processor := media.NewProcessor(config.Default().Media, media.WithProcessorRunFunc(run))
	if err := processor.ExtractAudio(context.Background(), input, output); err != nil {
		t.Fatalf("ExtractAudio failed: %v", err)
	}
	joined := strings.Join(gotArgs, " ")
	for _, fragment := range []string{"ffmpeg", "-vn", "-ac 1", "-ar 16000", output} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in args: %v", fragment, gotArgs)
		}
	}
}

func TestExtractAudioMissingInput(t *testing.T) {
	processor := media.NewProcessor(config.Default().Media)
	err := processor.ExtractAudio(context.Background(), filepath.Join(t.TempDir(), "absent.mp4"), "out.wav")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestProbeDurationParsesFFprobeOutput(t *testing.T) {
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		if name != "ffprobe" {
			t.Fatalf("unexpected binary: %q", name)
		}
		return `{"format":{"duration":"93.5"}}`, nil
	}
	processor := media.NewProcessor(config.Default().Media, media.WithProcessorRunFunc(run))
	duration, err := processor.ProbeDuration(context.Background(), "audio.wav")
	if err != nil {
		t.Fatalf("ProbeDuration failed: %v", err)
	}
	if duration != 93500*time.Millisecond {
		t.Fatalf("unexpected duration: %v", duration)
	}
}

func TestProbeDurationGarbageOutput(t *testing.T) {
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		return "not json", nil
	}
	processor := media.NewProcessor(config.Default().Media, media.WithProcessorRunFunc(run))
	if _, err := processor.ProbeDuration(context.Background(), "audio.wav"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external-tool marker, got %v", err)
	}
}

func TestDownloadDirCreated(t *testing.T) {
	destDir := filepath.Join(t.TempDir(), "nested", "downloads")
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		testsupport.WriteFile(t, filepath.Join(destDir, "source.en.srt"), 16)
		return "", nil
	}
	downloader := media.NewDownloader(downloaderConfig(), media.WithDownloaderRunFunc(run))
	if _, err := downloader.FetchCaptions(context.Background(), "https://example.com/v/1", destDir); err != nil {
		t.Fatalf("FetchCaptions failed: %v", err)
	}
	if _, err := os.Stat(destDir); err != nil {
		t.Fatalf("expected destination dir created: %v", err)
	}
}

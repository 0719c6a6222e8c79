package transcribe_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/config"
	"scribe/internal/services"
	"scribe/internal/testsupport"
	"scribe/internal/transcribe"
)

func TestTranscribeFileReadsJSONOutput(t *testing.T) {
	workDir := t.TempDir()
	source := filepath.Join(workDir, "audio.wav")
	testsupport.WriteFile(t, source, 256)

	var gotArgs []string
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		gotArgs = append([]string{name}, args...)
		payload := `{"text":"hello world","segments":[{"text":"hello world"}]}`
		if err := os.WriteFile(filepath.Join(workDir, "audio.json"), []byte(payload), 0o644); err != nil {
			t.Fatalf("write json output: %v", err)
		}
		return "", nil
	}

	service := transcribe.NewService(config.Default().Transcriber, transcribe.WithRunFunc(run))
	result, err := service.TranscribeFile(context.Background(), source, "")
	if err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if filepath.Base(result.JSONPath) != "audio.json" {
		t.Fatalf("unexpected json path: %q", result.JSONPath)
	}
	joined := strings.Join(gotArgs, " ")
	if gotArgs[0] != "whisper" {
		t.Fatalf("unexpected binary: %q", gotArgs[0])
	}
	if !strings.Contains(joined, "--model large-v3-turbo") {
		t.Fatalf("expected model flag in args: %v", gotArgs)
	}
}

func TestTranscribeFileFallsBackToTextOutput(t *testing.T) {
	workDir := t.TempDir()
	source := filepath.Join(workDir, "audio.wav")
	testsupport.WriteFile(t, source, 256)

	run := func(ctx context.Context, name string, args ...string) (string, error) {
		if err := os.WriteFile(filepath.Join(workDir, "audio.txt"), []byte("  plain transcript \n"), 0o644); err != nil {
			t.Fatalf("write text output: %v", err)
		}
		return "", nil
	}

	service := transcribe.NewService(config.Default().Transcriber, transcribe.WithRunFunc(run))
	result, err := service.TranscribeFile(context.Background(), source, "")
	if err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}
	if result.Text != "plain transcript" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
}

func TestTranscribeFilePassesLanguage(t *testing.T) {
	cfg := config.Default().Transcriber
	cfg.Language = "de"
	workDir := t.TempDir()
	source := filepath.Join(workDir, "audio.wav")
	testsupport.WriteFile(t, source, 16)

	var gotArgs []string
	run := func(ctx context.Context, name string, args ...string) (string, error) {
		gotArgs = args
		if err := os.WriteFile(filepath.Join(workDir, "audio.txt"), []byte("text"), 0o644); err != nil {
			t.Fatalf("write output: %v", err)
		}
		return "", nil
	}
	service := transcribe.NewService(cfg, transcribe.WithRunFunc(run))
	if _, err := service.TranscribeFile(context.Background(), source, ""); err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}
	if !strings.Contains(strings.Join(gotArgs, " "), "--language de") {
		t.Fatalf("expected language flag in args: %v", gotArgs)
	}
}

func TestTranscribeFileMissingSource(t *testing.T) {
	service := transcribe.NewService(config.Default().Transcriber)
	_, err := service.TranscribeFile(context.Background(), filepath.Join(t.TempDir(), "absent.wav"), "")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestTranscribeFileNoOutputProduced(t *testing.T) {
	source := filepath.Join(t.TempDir(), "audio.wav")
	testsupport.WriteFile(t, source, 16)

	run := func(ctx context.Context, name string, args ...string) (string, error) {
		return "", nil
	}
	service := transcribe.NewService(config.Default().Transcriber, transcribe.WithRunFunc(run))
	_, err := service.TranscribeFile(context.Background(), source, "")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external-tool marker, got %v", err)
	}
}

func TestTranscribeFileToolFailure(t *testing.T) {
	source := filepath.Join(t.TempDir(), "audio.wav")
	testsupport.WriteFile(t, source, 16)

	run := func(ctx context.Context, name string, args ...string) (string, error) {
		return "", errors.New("model not found")
	}
	service := transcribe.NewService(config.Default().Transcriber, transcribe.WithRunFunc(run))
	_, err := service.TranscribeFile(context.Background(), source, "")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external-tool marker, got %v", err)
	}
}

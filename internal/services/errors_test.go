package services_test

import (
	"errors"
	"testing"

	"scribe/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("connection reset")
	err := services.Wrap(services.ErrExternalTool, "transcribe", "whisper", "process exited", cause)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "research", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestDetailsSplitsMarker(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "package", "manifest", "missing article path", nil)
	details := services.Details(err)
	if details.Marker != services.ErrValidation.Error() {
		t.Fatalf("unexpected marker: %q", details.Marker)
	}
	if details.Message != "package: manifest: missing article path" {
		t.Fatalf("unexpected message: %q", details.Message)
	}
}

func TestDetailsUnclassified(t *testing.T) {
	details := services.Details(errors.New("boom"))
	if details.Marker != "" || details.Message != "boom" {
		t.Fatalf("unexpected details: %#v", details)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", services.Wrap(services.ErrValidation, "s", "", "bad input", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "s", "", "missing key", nil), false},
		{"user cancel", services.ErrUserCancelled, false},
		{"transient", services.Wrap(services.ErrTransient, "s", "", "flaky", nil), true},
		{"plain", errors.New("boom"), true},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

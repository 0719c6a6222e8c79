package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"scribe/internal/pipeline"
)

func failingAlt(name, reason string) pipeline.Stage {
	return pipeline.NewStage(name, "", func(context.Context, any, *pipeline.Context) (any, error) {
		return nil, errors.New(reason)
	})
}

func succeedingAlt(name string, output any) pipeline.Stage {
	return pipeline.NewStage(name, "", func(context.Context, any, *pipeline.Context) (any, error) {
		return output, nil
	})
}

func TestFallbackReturnsFirstSuccess(t *testing.T) {
	invoked := false
	late := pipeline.NewStage("stt", "", func(context.Context, any, *pipeline.Context) (any, error) {
		invoked = true
		return "stt transcript", nil
	})
	fallback := pipeline.Fallback("acquire", "",
		failingAlt("captions", "no captions published"),
		failingAlt("subtitles", "download refused"),
		succeedingAlt("whisper", "whisper transcript"),
		late,
	)

	run := pipeline.NewContext("run-1", "", nil, nil)
	output, err := fallback.Run(context.Background(), "video-url", run)
	if err != nil {
		t.Fatalf("fallback failed: %v", err)
	}
	if output != "whisper transcript" {
		t.Fatalf("unexpected output: %v", output)
	}
	if invoked {
		t.Fatal("later alternative ran after a success")
	}

	raw, ok := run.Meta("fallback:acquire")
	if !ok {
		t.Fatal("expected fallback trace in run metadata")
	}
	trace := raw.([]pipeline.TraceEntry)
	if len(trace) != 3 {
		t.Fatalf("expected 3 trace entries, got %d", len(trace))
	}
	wantSteps := []string{"captions", "subtitles", "whisper"}
	wantStatus := []pipeline.TraceStatus{pipeline.TraceFail, pipeline.TraceFail, pipeline.TraceOK}
	for i := range wantSteps {
		if trace[i].Step != wantSteps[i] || trace[i].Status != wantStatus[i] {
			t.Fatalf("trace[%d] = %+v, want %s/%s", i, trace[i], wantSteps[i], wantStatus[i])
		}
	}
}

func TestFallbackExhaustionAggregatesTrace(t *testing.T) {
	fallback := pipeline.Fallback("acquire", "",
		failingAlt("captions", "no captions published"),
		failingAlt("subtitles", "download refused"),
	)

	run := pipeline.NewContext("run-1", "", nil, nil)
	_, err := fallback.Run(context.Background(), "video-url", run)

	var exhausted *pipeline.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %v", err)
	}
	if len(exhausted.Trace) != 2 {
		t.Fatalf("expected 2 trace entries, got %d", len(exhausted.Trace))
	}
	message := err.Error()
	for _, fragment := range []string{"captions=fail", "no captions published", "subtitles=fail", "download refused"} {
		if !strings.Contains(message, fragment) {
			t.Fatalf("error message missing %q: %s", fragment, message)
		}
	}
}

func TestFallbackGuardDeclineIsSkipEntry(t *testing.T) {
	skipped := pipeline.NewStage("captions", "",
		func(context.Context, any, *pipeline.Context) (any, error) {
			t.Fatal("guarded alternative must not run")
			return nil, nil
		},
		pipeline.WithGuard(func(context.Context, any, *pipeline.Context) (bool, error) {
			return false, nil
		}),
	)
	fallback := pipeline.Fallback("acquire", "", skipped, succeedingAlt("whisper", "ok"))

	run := pipeline.NewContext("run-1", "", nil, nil)
	if _, err := fallback.Run(context.Background(), nil, run); err != nil {
		t.Fatalf("fallback failed: %v", err)
	}

	raw, _ := run.Meta("fallback:acquire")
	trace := raw.([]pipeline.TraceEntry)
	if trace[0].Status != pipeline.TraceSkip {
		t.Fatalf("expected skip entry for declined guard, got %+v", trace[0])
	}
}

func TestFallbackCancelledBetweenAlternatives(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := pipeline.NewStage("captions", "", func(context.Context, any, *pipeline.Context) (any, error) {
		cancel()
		return nil, errors.New("failed while cancelling")
	})
	second := pipeline.NewStage("subtitles", "", func(context.Context, any, *pipeline.Context) (any, error) {
		t.Fatal("alternative ran after cancellation")
		return nil, nil
	})
	fallback := pipeline.Fallback("acquire", "", first, second)

	run := pipeline.NewContext("run-1", "", nil, nil)
	if _, err := fallback.Run(ctx, nil, run); err == nil {
		t.Fatal("expected cancellation error")
	}
}

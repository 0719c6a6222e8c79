package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scribe/internal/events"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// Recorder persists run metadata. The run-history store implements it; tests
// substitute fakes.
type Recorder interface {
	RecordStart(ctx context.Context, runID, pipeline string) error
	RecordResult(ctx context.Context, result *Result, runErr error) error
}

// Pipeline sequentially executes an ordered list of stages.
type Pipeline struct {
	name     string
	stages   []Stage
	logger   *slog.Logger
	recorder Recorder
}

// Option customizes pipeline construction.
type Option func(*Pipeline)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecorder attaches a run-metadata recorder.
func WithRecorder(recorder Recorder) Option {
	return func(p *Pipeline) { p.recorder = recorder }
}

// New constructs a pipeline over the given stages.
func New(name string, stages []Stage, opts ...Option) *Pipeline {
	p := &Pipeline{name: name, stages: stages, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Run executes every stage in order, threading each stage's output into the
// next stage's input. Cancellation is checked before every stage boundary; an
// already-cancelled context aborts before the first stage runs. On an
// unrecoverable stage failure the pipeline stops, flushes partial metadata,
// and returns a *StageError.
func (p *Pipeline) Run(ctx context.Context, input any, run *Context) (*Result, error) {
	if run == nil {
		run = NewContext("", "", p.logger, nil)
	}
	if run.RunID == "" {
		return nil, fmt.Errorf("pipeline %s: run id is required", p.name)
	}

	ctx = services.WithRunID(ctx, run.RunID)
	logger := logging.WithContext(ctx, p.logger)

	if p.recorder != nil {
		if err := p.recorder.RecordStart(ctx, run.RunID, p.name); err != nil {
			return nil, fmt.Errorf("pipeline %s: record start: %w", p.name, err)
		}
	}

	run.Events.Publish(events.PipelineStarted{RunID: run.RunID, Pipeline: p.name})
	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.Int("stages", len(p.stages)),
	)

	started := time.Now()
	result := &Result{RunID: run.RunID, Pipeline: p.name}
	value := input

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return p.fail(ctx, logger, run, result, stage.Name(), started, fmt.Errorf("cancelled before stage: %w", err))
		}

		stageCtx := services.WithStage(ctx, stage.Name())
		stageLogger := logging.WithContext(stageCtx, p.logger)
		if aware, ok := stage.(LoggerAware); ok {
			aware.SetLogger(stageLogger)
		}

		if skipped, reason, err := p.checkGuard(stageCtx, stage, value, run); err != nil {
			return p.fail(ctx, logger, run, result, stage.Name(), started, err)
		} else if skipped {
			run.Events.Publish(events.StageSkipped{RunID: run.RunID, Stage: stage.Name(), Reason: reason})
			stageLogger.Info("stage skipped",
				logging.String(logging.FieldEventType, "stage_skip"),
				logging.String("reason", reason),
			)
			continue
		}

		run.Events.Publish(events.StageStarted{RunID: run.RunID, Stage: stage.Name()})
		stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

		stageStarted := time.Now()
		output, attemptErrs, err := p.executeWithRetry(stageCtx, stage, value, run)
		elapsed := time.Since(stageStarted)
		result.Errors = append(result.Errors, attemptErrs...)

		if err != nil {
			return p.fail(ctx, logger, run, result, stage.Name(), started, err)
		}

		run.SetMeta("duration:"+stage.Name(), elapsed.String())
		run.Events.Publish(events.StageCompleted{
			RunID:    run.RunID,
			Stage:    stage.Name(),
			Output:   output,
			Duration: elapsed,
		})
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("duration", elapsed),
		)

		result.CompletedStages = append(result.CompletedStages, stage.Name())
		value = output
	}

	result.Duration = time.Since(started)
	result.Artifacts = run.Artifacts()
	result.Metadata = run.Metadata()

	if p.recorder != nil {
		if err := p.recorder.RecordResult(ctx, result, nil); err != nil {
			logger.Error("failed to persist run result", logging.Error(err))
		}
	}

	run.Events.Publish(events.PipelineCompleted{
		RunID:     run.RunID,
		Pipeline:  p.name,
		Artifacts: result.Artifacts,
		Metadata:  result.Metadata,
		Duration:  result.Duration,
	})
	logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Duration("duration", result.Duration),
		logging.Int("completed_stages", len(result.CompletedStages)),
	)

	return result, nil
}

func (p *Pipeline) checkGuard(ctx context.Context, stage Stage, input any, run *Context) (skipped bool, reason string, err error) {
	guarded, ok := stage.(Guarded)
	if !ok {
		return false, "", nil
	}
	can, guardErr := guarded.CanRun(ctx, input, run)
	if guardErr != nil {
		return false, "", fmt.Errorf("guard for stage %s: %w", stage.Name(), guardErr)
	}
	if can {
		return false, "", nil
	}
	return true, fmt.Sprintf("guard declined stage %s", stage.Name()), nil
}

// executeWithRetry re-invokes the stage up to its policy's MaxAttempts,
// sleeping an abortable exponential backoff between attempts. Every failed
// attempt publishes a stage error event whose WillRetry flag distinguishes
// transient from final failures.
func (p *Pipeline) executeWithRetry(ctx context.Context, stage Stage, input any, run *Context) (any, []error, error) {
	policy := policyFor(stage)
	var attemptErrs []error

	for attempt := 1; ; attempt++ {
		output, err := stage.Run(ctx, input, run)
		if err == nil {
			return output, attemptErrs, nil
		}

		willRetry := attempt < policy.MaxAttempts && services.IsRetryable(err) && ctx.Err() == nil
		run.Events.Publish(events.StageErrored{
			RunID:     run.RunID,
			Stage:     stage.Name(),
			Err:       err,
			Attempt:   attempt,
			WillRetry: willRetry,
		})

		if !willRetry {
			return nil, attemptErrs, err
		}
		attemptErrs = append(attemptErrs, fmt.Errorf("stage %s attempt %d: %w", stage.Name(), attempt, err))

		if sleepErr := sleep(ctx, policy.delayFor(attempt+1)); sleepErr != nil {
			return nil, attemptErrs, fmt.Errorf("backoff interrupted: %w", sleepErr)
		}
	}
}

// fail flushes partial state, publishes the pipeline error, and wraps the
// cause with the failing stage and the completed stage names.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, run *Context, result *Result, stageName string, started time.Time, cause error) (*Result, error) {
	result.Duration = time.Since(started)
	result.Artifacts = run.Artifacts()
	result.Metadata = run.Metadata()

	wrapped := &StageError{
		Pipeline:  p.name,
		Stage:     stageName,
		Completed: append([]string(nil), result.CompletedStages...),
		Err:       cause,
	}

	if p.recorder != nil {
		if err := p.recorder.RecordResult(ctx, result, wrapped); err != nil {
			logger.Error("failed to persist failed run", logging.Error(err))
		}
	}

	run.Events.Publish(events.PipelineErrored{
		RunID:     run.RunID,
		Pipeline:  p.name,
		Err:       wrapped,
		Completed: append([]string(nil), result.CompletedStages...),
	})
	logger.Error("pipeline failed",
		logging.String(logging.FieldEventType, "pipeline_error"),
		logging.String(logging.FieldStage, stageName),
		logging.Error(cause),
	)

	return nil, wrapped
}

package pipeline

import (
	"context"
	"log/slog"
)

// Stage is a single named unit of work. Run receives the previous stage's
// output (or the pipeline input) and returns the input for the next stage.
type Stage interface {
	Name() string
	Description() string
	Run(ctx context.Context, input any, run *Context) (any, error)
}

// Guarded is implemented by stages that can decline to run for a given input.
// A declined guard is reported as a skip, never as a failure.
type Guarded interface {
	CanRun(ctx context.Context, input any, run *Context) (bool, error)
}

// Retryable is implemented by stages that tolerate transient failures.
type Retryable interface {
	Policy() RetryPolicy
}

// LoggerAware lets the engine hand a stage a contextualized logger before
// execution.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// RunFunc is the function form of a stage body.
type RunFunc func(ctx context.Context, input any, run *Context) (any, error)

// GuardFunc is the function form of a stage guard.
type GuardFunc func(ctx context.Context, input any, run *Context) (bool, error)

// funcStage adapts plain functions to the Stage contract. Provider packages
// use it so they never need to define stage types of their own.
type funcStage struct {
	name        string
	description string
	run         RunFunc
	guard       GuardFunc
	policy      *RetryPolicy
}

// FuncOption customizes a function-backed stage.
type FuncOption func(*funcStage)

// WithGuard attaches a guard predicate.
func WithGuard(guard GuardFunc) FuncOption {
	return func(s *funcStage) { s.guard = guard }
}

// WithRetry attaches a retry policy.
func WithRetry(policy RetryPolicy) FuncOption {
	return func(s *funcStage) { s.policy = &policy }
}

// NewStage builds a Stage from a function body.
func NewStage(name, description string, run RunFunc, opts ...FuncOption) Stage {
	stage := &funcStage{name: name, description: description, run: run}
	for _, opt := range opts {
		opt(stage)
	}
	return stage
}

func (s *funcStage) Name() string        { return s.name }
func (s *funcStage) Description() string { return s.description }

func (s *funcStage) Run(ctx context.Context, input any, run *Context) (any, error) {
	return s.run(ctx, input, run)
}

func (s *funcStage) CanRun(ctx context.Context, input any, run *Context) (bool, error) {
	if s.guard == nil {
		return true, nil
	}
	return s.guard(ctx, input, run)
}

func (s *funcStage) Policy() RetryPolicy {
	if s.policy == nil {
		return RetryPolicy{}
	}
	return *s.policy
}

// policyFor resolves the effective retry policy for a stage. Stages without a
// Retryable implementation (or with a zero policy) run exactly once.
func policyFor(stage Stage) RetryPolicy {
	if retryable, ok := stage.(Retryable); ok {
		return retryable.Policy().normalize()
	}
	return RetryPolicy{MaxAttempts: 1}
}

package flow

import (
	"context"
	"fmt"
	"log/slog"

	"scribe/internal/logging"
	"scribe/internal/services"
)

// DefaultMaxIterations bounds the runner loop. Exceeding it means an
// undetected transition cycle; the session is aborted to ERROR rather than
// allowed to spin.
const DefaultMaxIterations = 200

// Handler executes one state and proposes the next. Handlers receive the
// context by value and must return a new value; the runner replaces its
// running context wholesale after each step.
type Handler func(ctx context.Context, c Context) (State, Context, error)

// Runner drives the session state machine to a terminal state, writing a
// checkpoint of the pre-transition context before every handler invocation.
type Runner struct {
	handlers      map[State]Handler
	store         *CheckpointStore
	logger        *slog.Logger
	maxIterations int
}

// RunnerOption customizes runner construction.
type RunnerOption func(*Runner)

// WithRunnerLogger attaches a structured logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMaxIterations overrides the iteration ceiling.
func WithMaxIterations(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

// NewRunner constructs a runner over a handler table and a checkpoint store.
func NewRunner(handlers map[State]Handler, store *CheckpointStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		handlers:      handlers,
		store:         store,
		logger:        logging.NewNop(),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run loops until the context reaches a terminal state and returns the
// terminal context. Handler failures are captured into the context and routed
// to ERROR; they are never re-raised. The returned error reports only
// infrastructure trouble (a checkpoint that could not be written).
func (r *Runner) Run(ctx context.Context, c Context) (Context, error) {
	return r.run(ctx, c, 0)
}

func (r *Runner) run(ctx context.Context, c Context, index int) (Context, error) {
	for !c.CurrentState.IsTerminal() {
		if index >= r.maxIterations {
			c = c.WithError(c.CurrentState, fmt.Errorf("iteration ceiling (%d) exceeded; aborting suspected transition cycle", r.maxIterations))
			break
		}

		state := c.CurrentState
		stepCtx := services.WithState(ctx, string(state))
		logger := logging.WithContext(stepCtx, r.logger)

		handler, ok := r.handlers[state]
		if !ok {
			c = c.WithError(state, fmt.Errorf("no handler registered for state %s", state))
			logger.Error("unregistered state", logging.String(logging.FieldEventType, "flow_fatal"))
			break
		}

		if _, err := r.store.Write(c, index); err != nil {
			return c, fmt.Errorf("checkpoint before %s: %w", state, err)
		}
		index++

		if err := CheckPreconditions(state, c); err != nil {
			c = c.WithError(state, err)
			logger.Error("missing precondition",
				logging.String(logging.FieldEventType, "flow_fatal"),
				logging.Error(err),
			)
			continue
		}

		logger.Info("entering state", logging.String(logging.FieldEventType, "flow_step"))

		next, updated, err := invokeHandler(handler, stepCtx, c)
		if err != nil {
			if services.IsUserCancelled(err) {
				logger.Info("session cancelled by user", logging.String(logging.FieldEventType, "flow_cancel"))
				c = c.WithState(StateComplete)
				continue
			}
			c = c.WithError(state, fmt.Errorf("handler for %s: %w", state, err))
			logger.Error("state handler failed",
				logging.String(logging.FieldEventType, "flow_error"),
				logging.Error(err),
			)
			continue
		}

		// ERROR bypasses transition validation so handler diagnostics on
		// LastError stay intact.
		if next != StateError {
			if err := AssertValidTransition(state, next, updated); err != nil {
				c = c.WithError(state, err)
				logger.Error("invalid transition",
					logging.String(logging.FieldEventType, "flow_fatal"),
					logging.String("proposed_state", string(next)),
					logging.Error(err),
				)
				continue
			}
		}

		c = updated.WithState(next)
		logger.Info("transition",
			logging.String(logging.FieldEventType, "flow_transition"),
			logging.String("next_state", string(next)),
		)
	}

	if _, err := r.store.Write(c, index); err != nil {
		return c, fmt.Errorf("final checkpoint: %w", err)
	}
	return c, nil
}

// invokeHandler shields the runner loop from a panicking handler. A recovered
// panic is reported as a handler error so the loop still routes it to ERROR
// and writes the final checkpoint.
func invokeHandler(handler Handler, ctx context.Context, c Context) (next State, updated Context, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			next = StateError
			updated = c
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return handler(ctx, c)
}

// Resume deserializes the given checkpoint, restores the context to its live
// form (one-shot flags cleared), sets the iteration index to the saved index
// plus one, and re-enters the loop.
func (r *Runner) Resume(ctx context.Context, checkpointPath string) (Context, error) {
	snapshot, err := LoadCheckpoint(checkpointPath)
	if err != nil {
		return Context{}, err
	}
	return r.run(ctx, snapshot.restore(), snapshot.CheckpointIndex+1)
}

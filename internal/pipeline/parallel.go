package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Branch records the outcome of one Parallel child.
type Branch struct {
	Stage    string
	Output   any
	Err      error
	Skipped  bool
	Duration time.Duration
}

// parallelStage runs children concurrently against the same input.
type parallelStage struct {
	name        string
	description string
	failFast    bool
	children    []Stage
}

// Parallel builds a composite stage that runs every child concurrently with
// the same input. With failFast the first failure cancels the remaining
// children and the composite fails; without it all children run to completion
// and the composite succeeds with a []Branch recording each child's output or
// error. Partial success is the right model when some generated outputs are
// still valuable.
func Parallel(name, description string, failFast bool, children ...Stage) Stage {
	return &parallelStage{name: name, description: description, failFast: failFast, children: children}
}

func (s *parallelStage) Name() string        { return s.name }
func (s *parallelStage) Description() string { return s.description }

func (s *parallelStage) Run(ctx context.Context, input any, run *Context) (any, error) {
	if len(s.children) == 0 {
		return nil, fmt.Errorf("parallel %s: no children configured", s.name)
	}

	childCtx := ctx
	var cancel context.CancelFunc
	if s.failFast {
		childCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	branches := make([]Branch, len(s.children))
	var wg sync.WaitGroup

	for i, child := range s.children {
		wg.Add(1)
		go func(idx int, child Stage) {
			defer wg.Done()
			branches[idx] = s.runChild(childCtx, child, input, run)
			if s.failFast && branches[idx].Err != nil {
				cancel()
			}
		}(i, child)
	}
	wg.Wait()

	if s.failFast {
		for _, branch := range branches {
			if branch.Err != nil {
				return nil, fmt.Errorf("parallel %s: child %s: %w", s.name, branch.Stage, branch.Err)
			}
		}
	}

	return branches, nil
}

func (s *parallelStage) runChild(ctx context.Context, child Stage, input any, run *Context) Branch {
	branch := Branch{Stage: child.Name()}

	if err := ctx.Err(); err != nil {
		branch.Err = err
		return branch
	}

	if guarded, ok := child.(Guarded); ok {
		can, guardErr := guarded.CanRun(ctx, input, run)
		if guardErr != nil {
			branch.Err = fmt.Errorf("guard: %w", guardErr)
			return branch
		}
		if !can {
			branch.Skipped = true
			return branch
		}
	}

	started := time.Now()
	output, err := child.Run(ctx, input, run)
	branch.Duration = time.Since(started)
	branch.Output = output
	branch.Err = err
	return branch
}

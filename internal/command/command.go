// Package command executes external tools with context-aware cancellation.
//
// Cancelling the context first sends SIGTERM so the tool can flush partial
// output; after the grace period the process is killed. Services inject a
// RunFunc in tests so no subprocess is spawned.
package command

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// DefaultGracePeriod is how long a cancelled subprocess gets between SIGTERM
// and SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// RunFunc is the injectable execution shape used by services that shell out.
type RunFunc func(ctx context.Context, name string, args ...string) (string, error)

// Options controls subprocess execution.
type Options struct {
	Dir         string
	Env         map[string]string
	GracePeriod time.Duration
}

// Run executes a command and returns its combined output. A non-zero exit
// wraps the trimmed tail of the output so error messages carry the tool's own
// diagnostics.
func Run(ctx context.Context, opts Options, name string, args ...string) (string, error) {
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		env := os.Environ()
		for key, value := range opts.Env {
			env = append(env, key+"="+value)
		}
		cmd.Env = env
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = grace

	output, err := cmd.CombinedOutput()
	text := string(output)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return text, fmt.Errorf("%s: %w", name, ctxErr)
		}
		return text, fmt.Errorf("%s: %w: %s", name, err, tail(text))
	}
	return text, nil
}

// Runner binds Options so call sites read like the plain Run function.
func Runner(opts Options) RunFunc {
	return func(ctx context.Context, name string, args ...string) (string, error) {
		return Run(ctx, opts, name, args...)
	}
}

// tail trims output to its last few lines; tool stack traces can be huge and
// the useful diagnostic is almost always at the end.
func tail(output string) string {
	trimmed := strings.TrimSpace(output)
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= 5 {
		return trimmed
	}
	return strings.Join(lines[len(lines)-5:], "\n")
}

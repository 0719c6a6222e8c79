package pipeline

import (
	"log/slog"
	"maps"
	"sync"

	"scribe/internal/events"
	"scribe/internal/logging"
)

// Context is the per-run value bag shared by every stage within one
// Pipeline.Run call. Artifact and metadata access is synchronized because
// Parallel children publish concurrently. The Context lives for exactly one
// run and is discarded afterwards.
type Context struct {
	RunID     string
	OutputDir string
	Logger    *slog.Logger
	Events    *events.Bus

	mu        sync.Mutex
	artifacts map[string]string
	metadata  map[string]any
}

// NewContext builds a run context. A nil bus gets a fresh one so stages can
// always publish; a nil logger becomes a no-op logger.
func NewContext(runID, outputDir string, logger *slog.Logger, bus *events.Bus) *Context {
	if logger == nil {
		logger = logging.NewNop()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &Context{
		RunID:     runID,
		OutputDir: outputDir,
		Logger:    logger,
		Events:    bus,
		artifacts: make(map[string]string),
		metadata:  make(map[string]any),
	}
}

// PutArtifact publishes a named output file path.
func (c *Context) PutArtifact(name, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts[name] = path
}

// Artifact returns a published artifact path.
func (c *Context) Artifact(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.artifacts[name]
	return path, ok
}

// Artifacts returns a copy of the artifact map.
func (c *Context) Artifacts() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.artifacts)
}

// SetMeta records free-form run metadata.
func (c *Context) SetMeta(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// Meta returns a recorded metadata value.
func (c *Context) Meta(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.metadata[key]
	return value, ok
}

// Metadata returns a copy of the metadata map.
func (c *Context) Metadata() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.metadata)
}

// Progress publishes a stage progress event. Percent is 0-100; pass a
// negative value when the stage cannot estimate progress.
func (c *Context) Progress(stage, message string, percent float64, detail map[string]any) {
	c.Events.Publish(events.StageProgress{
		RunID:   c.RunID,
		Stage:   stage,
		Message: message,
		Percent: percent,
		Detail:  detail,
	})
}

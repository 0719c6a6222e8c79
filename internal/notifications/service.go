package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
)

const userAgent = "Scribe-Go/0.1.0"

// Service defines the notification surface exposed to session components.
type Service interface {
	NotifySessionStarted(ctx context.Context, projectName string) error
	NotifyTranscriptReady(ctx context.Context, projectName string) error
	NotifyOutputsReady(ctx context.Context, projectName string, formats []string) error
	NotifySessionCompleted(ctx context.Context, projectName, packagePath string, duration time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		completion: cfg.Completion,
		errors:     cfg.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	completion bool
	errors     bool
}

func (n *ntfyService) NotifySessionStarted(ctx context.Context, projectName string) error {
	projectName = strings.TrimSpace(projectName)
	data := payload{
		title:   "Scribe - Session Started",
		message: fmt.Sprintf("Started producing: %s", projectName),
		tags:    []string{"scribe", "session", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTranscriptReady(ctx context.Context, projectName string) error {
	projectName = strings.TrimSpace(projectName)
	data := payload{
		title:   "Scribe - Transcript Ready",
		message: fmt.Sprintf("Transcript ready: %s", projectName),
		tags:    []string{"scribe", "transcript", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyOutputsReady(ctx context.Context, projectName string, formats []string) error {
	projectName = strings.TrimSpace(projectName)
	data := payload{
		title:   "Scribe - Outputs Ready",
		message: fmt.Sprintf("Generated %s for: %s", strings.Join(formats, ", "), projectName),
		tags:    []string{"scribe", "generate", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySessionCompleted(ctx context.Context, projectName, packagePath string, duration time.Duration) error {
	if !n.completion {
		return nil
	}
	projectName = strings.TrimSpace(projectName)
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	message := fmt.Sprintf("Finished: %s in %s", projectName, duration)
	if packagePath = strings.TrimSpace(packagePath); packagePath != "" {
		message = fmt.Sprintf("%s\nPackage: %s", message, packagePath)
	}
	data := payload{
		title:    "Scribe - Complete",
		message:  message,
		tags:     []string{"scribe", "session", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Scribe - Error",
		message:  builder.String(),
		tags:     []string{"scribe", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Scribe - Test",
		message:  "Notification system test",
		tags:     []string{"scribe", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySessionStarted(context.Context, string) error         { return nil }
func (noopService) NotifyTranscriptReady(context.Context, string) error        { return nil }
func (noopService) NotifyOutputsReady(context.Context, string, []string) error { return nil }
func (noopService) NotifySessionCompleted(context.Context, string, string, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }

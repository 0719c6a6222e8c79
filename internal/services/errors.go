package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrUserCancelled marks a deliberate stop requested by the operator. The
// session runner routes it to a graceful completion rather than an error
// terminal.
var ErrUserCancelled = errors.New("cancelled by user")

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsUserCancelled reports whether err carries the user-cancel marker.
func IsUserCancelled(err error) bool {
	return errors.Is(err, ErrUserCancelled)
}

// IsRetryable reports whether the pipeline may retry a stage after err.
// Validation, configuration, and user-cancel failures are never retried.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrUserCancelled):
		return false
	default:
		return true
	}
}

// ErrorDetails is the presentation-friendly breakdown of a classified error.
type ErrorDetails struct {
	Marker  string
	Message string
}

// Details splits a wrapped error into its marker label and the human message
// that follows it. Unclassified errors return an empty marker and the raw
// error text.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	text := err.Error()
	for _, marker := range []error{
		ErrUserCancelled,
		ErrExternalTool,
		ErrValidation,
		ErrConfiguration,
		ErrNotFound,
		ErrTimeout,
		ErrTransient,
	} {
		if !errors.Is(err, marker) {
			continue
		}
		label := marker.Error()
		message := strings.TrimSpace(strings.TrimPrefix(text, label))
		message = strings.TrimSpace(strings.TrimPrefix(message, ":"))
		if message == "" {
			message = text
		}
		return ErrorDetails{Marker: label, Message: message}
	}
	return ErrorDetails{Message: text}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

var validLogFormats = map[string]bool{"text": true, "json": true}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkspaceDir == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.max_iterations":         c.Workflow.MaxIterations,
		"workflow.stage_retry_attempts":   c.Workflow.StageRetryAttempts,
		"workflow.stage_retry_backoff_ms": c.Workflow.StageRetryBackoffMS,
	})
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"downloader.timeout_seconds":    c.Downloader.TimeoutSeconds,
		"media.terminate_grace_seconds": c.Media.TerminateGraceSec,
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateTTS() error {
	if !c.TTS.Enabled {
		return nil
	}
	if strings.TrimSpace(c.TTS.Binary) == "" {
		return errors.New("tts.binary must be set when tts.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of text, json (got %q)", c.Logging.Format)
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	return nil
}

// RequireLLMKey reports an actionable error when no API key is configured.
// It is checked by the commands that talk to the LLM rather than at load
// time, so purely local workflows do not need a key.
func (c *Config) RequireLLMKey() error {
	if c.LLM.APIKey != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/scribe/config.toml"
	}
	return fmt.Errorf("llm.api_key is required. Set SCRIBE_LLM_API_KEY env var or edit %s (create with 'scribe config init')", defaultPath)
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeDownloader()
	c.normalizeMedia()
	c.normalizeTranscriber()
	c.normalizeLLM()
	c.normalizeTTS()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.MaxIterations <= 0 {
		c.Workflow.MaxIterations = defaultMaxIterations
	}
	if c.Workflow.StageRetryAttempts <= 0 {
		c.Workflow.StageRetryAttempts = defaultStageRetryAttempts
	}
	if c.Workflow.StageRetryBackoffMS <= 0 {
		c.Workflow.StageRetryBackoffMS = defaultStageRetryBackoffMS
	}
}

func (c *Config) normalizeDownloader() {
	c.Downloader.YtDlpBinary = strings.TrimSpace(c.Downloader.YtDlpBinary)
	if c.Downloader.YtDlpBinary == "" {
		c.Downloader.YtDlpBinary = defaultYtDlpBinary
	}
	languages := make([]string, 0, len(c.Downloader.SubtitleLanguages))
	for _, language := range c.Downloader.SubtitleLanguages {
		language = strings.ToLower(strings.TrimSpace(language))
		if language != "" {
			languages = append(languages, language)
		}
	}
	if len(languages) == 0 {
		languages = append(languages, defaultSubtitleLanguages...)
	}
	c.Downloader.SubtitleLanguages = languages
	if c.Downloader.TimeoutSeconds <= 0 {
		c.Downloader.TimeoutSeconds = defaultDownloaderTimeout
	}
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Media.TerminateGraceSec <= 0 {
		c.Media.TerminateGraceSec = defaultTerminateGraceSec
	}
}

func (c *Config) normalizeTranscriber() {
	c.Transcriber.WhisperBinary = strings.TrimSpace(c.Transcriber.WhisperBinary)
	if c.Transcriber.WhisperBinary == "" {
		c.Transcriber.WhisperBinary = defaultWhisperBinary
	}
	c.Transcriber.Model = strings.TrimSpace(c.Transcriber.Model)
	if c.Transcriber.Model == "" {
		c.Transcriber.Model = defaultWhisperModel
	}
	c.Transcriber.Language = strings.ToLower(strings.TrimSpace(c.Transcriber.Language))
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("SCRIBE_LLM_API_KEY"); ok {
			c.LLM.APIKey = value
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if strings.TrimSpace(c.LLM.Referer) == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	if strings.TrimSpace(c.LLM.Title) == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.Binary = strings.TrimSpace(c.TTS.Binary)
	if c.TTS.Binary == "" {
		c.TTS.Binary = defaultTTSBinary
	}
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

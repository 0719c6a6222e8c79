package config

const (
	defaultWorkspaceDir        = "~/.local/share/scribe/projects"
	defaultLogDir              = "~/.local/share/scribe/logs"
	defaultMaxIterations       = 200
	defaultStageRetryAttempts  = 3
	defaultStageRetryBackoffMS = 1000
	defaultYtDlpBinary         = "yt-dlp"
	defaultDownloaderTimeout   = 600
	defaultFFmpegBinary        = "ffmpeg"
	defaultTerminateGraceSec   = 5
	defaultWhisperBinary       = "whisper"
	defaultWhisperModel        = "large-v3-turbo"
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMReferer          = "https://github.com/scribe-cli/scribe"
	defaultLLMTitle            = "Scribe"
	defaultLLMTimeoutSeconds   = 120
	defaultTTSBinary           = "piper"
	defaultNtfyRequestTimeout  = 10
	defaultLogFormat           = "text"
	defaultLogLevel            = "info"
)

var defaultSubtitleLanguages = []string{"en"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
		},
		Workflow: Workflow{
			MaxIterations:       defaultMaxIterations,
			StageRetryAttempts:  defaultStageRetryAttempts,
			StageRetryBackoffMS: defaultStageRetryBackoffMS,
		},
		Downloader: Downloader{
			YtDlpBinary:       defaultYtDlpBinary,
			SubtitleLanguages: append([]string(nil), defaultSubtitleLanguages...),
			TimeoutSeconds:    defaultDownloaderTimeout,
		},
		Media: Media{
			FFmpegBinary:      defaultFFmpegBinary,
			TerminateGraceSec: defaultTerminateGraceSec,
		},
		Transcriber: Transcriber{
			WhisperBinary: defaultWhisperBinary,
			Model:         defaultWhisperModel,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		TTS: TTS{
			Binary: defaultTTSBinary,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

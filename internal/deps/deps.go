// Package deps checks the availability of the external tools scribe shells
// out to, so operators can diagnose a broken environment before starting a
// session.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"scribe/internal/config"
)

// Requirement defines an external binary scribe relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements derives the binary checklist from the effective configuration.
// Tools for disabled features are reported as optional.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "yt-dlp", Command: cfg.Downloader.YtDlpBinary, Description: "Downloads captions and audio from remote sources"},
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Description: "Normalizes audio for speech-to-text"},
		{Name: "Whisper", Command: cfg.Transcriber.WhisperBinary, Description: "Local speech-to-text"},
		{Name: "TTS", Command: cfg.TTS.Binary, Description: "Renders podcast scripts to audio", Optional: !cfg.TTS.Enabled},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

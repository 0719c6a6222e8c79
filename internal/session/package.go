package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scribe/internal/fileutil"
	"scribe/internal/flow"
)

// buildPackage copies every generated artifact into the package directory and
// writes a manifest describing the delivery. Formats without an artifact are
// skipped so a partial run still produces a usable package.
func (s *Session) buildPackage(ctx context.Context, c flow.Context) (string, error) {
	dir := packageDir(c)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create package directory: %w", err)
	}

	m := manifest{
		ProjectID:   c.ProjectID,
		ProjectName: c.ProjectName,
		GeneratedAt: time.Now().UTC(),
		InputType:   c.InputType,
		InputSource: c.InputSource,
	}

	for _, format := range c.OutputFormats {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		src := artifactPathFor(c, format)
		if src == "" {
			continue
		}
		entry, err := packageArtifact(dir, format, src)
		if err != nil {
			return "", err
		}
		m.Outputs = append(m.Outputs, entry)
	}
	if c.AudioPath != "" {
		entry, err := packageArtifact(dir, "podcast-audio", c.AudioPath)
		if err != nil {
			return "", err
		}
		m.Outputs = append(m.Outputs, entry)
	}
	if c.TranscriptPath != "" {
		entry, err := packageArtifact(dir, "transcript", c.TranscriptPath)
		if err != nil {
			return "", err
		}
		m.Outputs = append(m.Outputs, entry)
	}
	if c.ResearchPath != "" {
		entry, err := packageArtifact(dir, "research", c.ResearchPath)
		if err != nil {
			return "", err
		}
		m.Outputs = append(m.Outputs, entry)
	}

	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), payload, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return dir, nil
}

func packageArtifact(dir, format, src string) (manifestEntry, error) {
	dst := filepath.Join(dir, filepath.Base(src))
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return manifestEntry{}, fmt.Errorf("package %s: %w", format, err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		return manifestEntry{}, fmt.Errorf("package %s: %w", format, err)
	}
	return manifestEntry{Format: format, File: filepath.Base(dst), Bytes: info.Size()}, nil
}

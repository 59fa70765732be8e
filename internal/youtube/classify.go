package youtube

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"tubescribe/internal/services"
)

var restrictionHints = []struct {
	needles []string
	message string
}{
	{[]string{"private video"}, "Video is private"},
	{[]string{"confirm your age", "age-restricted", "inappropriate for some users"}, "Video is age-restricted"},
	{[]string{"available in your country", "blocked it in your country", "geo restriction", "geo-restricted"}, "Video is region-blocked"},
	{[]string{"requested format is not available", "no video formats found"}, "No audio formats available for this video"},
	{[]string{"members-only", "join this channel"}, "Video is members-only"},
	{[]string{"live event will begin", "premieres in"}, "Video has not started yet"},
	{[]string{"video unavailable", "this video is unavailable", "has been removed", "does not exist"}, "Video is unavailable"},
}

// classify turns a failed yt-dlp invocation into a retrieval error with a
// human-readable reason.
func classify(ctx context.Context, stage string, stderr []byte, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrRetrieval, stage, "yt-dlp", "yt-dlp binary not found on PATH", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return errors.Join(services.Wrap(services.ErrRetrieval, stage, "yt-dlp", "timed out", ctxErr), services.ErrTimeout)
		}
		return services.Wrap(services.ErrRetrieval, stage, "yt-dlp", "cancelled", ctxErr)
	}
	detail := lastErrorLine(stderr)
	lower := strings.ToLower(string(stderr))
	for _, hint := range restrictionHints {
		for _, needle := range hint.needles {
			if strings.Contains(lower, needle) {
				return services.Wrap(services.ErrRetrieval, stage, "yt-dlp", hint.message, errors.New(detail))
			}
		}
	}
	if detail == "" {
		return services.Wrap(services.ErrRetrieval, stage, "yt-dlp", "failed", err)
	}
	return services.Wrap(services.ErrRetrieval, stage, "yt-dlp", detail, err)
}

// lastErrorLine returns the last "ERROR:" line of yt-dlp's stderr, or the
// last non-empty line when none is marked.
func lastErrorLine(stderr []byte) string {
	lines := bytes.Split(bytes.TrimSpace(stderr), []byte("\n"))
	fallback := ""
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(string(lines[i]))
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
		if fallback == "" {
			fallback = line
		}
	}
	return fallback
}

// Package deps reports which external binaries tubescribe can reach.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"tubescribe/internal/config"
	"tubescribe/internal/services/whisperx"
)

// Requirement defines an external dependency tubescribe relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the binaries the configured backends invoke.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "yt-dlp", Command: cfg.Retrieval.YtDlpBinary, Description: "Video metadata and audio retrieval"},
		{Name: "ffmpeg", Command: cfg.FFmpegBinary(), Description: "Audio extraction for yt-dlp and WhisperX"},
	}
	if cfg.Recognition.Backend == config.BackendWhisperX {
		reqs = append(reqs,
			Requirement{Name: "whisper", Command: whisperx.UVXCommand, Description: "Runs WhisperX speech recognition"},
			Requirement{Name: "nvidia-smi", Command: "nvidia-smi", Description: "CUDA device detection", Optional: true},
		)
	}
	return reqs
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
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Healthy reports whether every required dependency is available.
func Healthy(statuses []Status) bool {
	for _, s := range statuses {
		if !s.Optional && !s.Available {
			return false
		}
	}
	return true
}

package deps

import (
	"os"
	"path/filepath"
	"testing"

	"tubescribe/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestHealthyIgnoresOptional(t *testing.T) {
	statuses := []Status{
		{Name: "yt-dlp", Available: true},
		{Name: "nvidia-smi", Optional: true},
	}
	if !Healthy(statuses) {
		t.Fatal("optional dependency must not affect health")
	}
	statuses = append(statuses, Status{Name: "ffmpeg"})
	if Healthy(statuses) {
		t.Fatal("missing required dependency must fail health")
	}
}

func TestRequirementsFollowBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Recognition.Backend = config.BackendWhisperX
	if !hasRequirement(Requirements(&cfg), "whisper") {
		t.Fatal("whisperx backend should require uvx")
	}
	cfg.Recognition.Backend = config.BackendOpenAI
	reqs := Requirements(&cfg)
	if hasRequirement(reqs, "whisper") {
		t.Fatal("openai backend should not require uvx")
	}
	if !hasRequirement(reqs, "yt-dlp") || !hasRequirement(reqs, "ffmpeg") {
		t.Fatalf("missing core requirements: %+v", reqs)
	}
}

func hasRequirement(reqs []Requirement, name string) bool {
	for _, r := range reqs {
		if r.Name == name {
			return true
		}
	}
	return false
}

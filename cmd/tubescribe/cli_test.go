package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"tubescribe/internal/api"
	"tubescribe/internal/config"
	"tubescribe/internal/testsupport"
	"tubescribe/internal/transcript"
	"tubescribe/internal/youtube"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	home := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	configPath := filepath.Join(home, ".config", "tubescribe", "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	testsupport.WriteFile(t, path, data)
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.cfg.Paths.StorageDir)
	requireContains(t, out, "[recognition]")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
}

func TestModelsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	for _, name := range []string{"tiny", "base", "small", "medium", "large"} {
		requireContains(t, out, name)
	}

	out, _, err = runCLI(t, env, "--output", "json", "models")
	if err != nil {
		t.Fatalf("models json: %v", err)
	}
	var resp api.ModelsResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || len(resp.Models) != 5 || resp.CurrentModel != nil {
		t.Fatalf("unexpected models response: %+v", resp)
	}

	out, _, err = runCLI(t, env, "-o", "yaml", "models")
	if err != nil {
		t.Fatalf("models yaml: %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if decoded["success"] != true {
		t.Fatalf("yaml success = %v, want true (inline envelope)", decoded["success"])
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "--output", "xml", "models"); err == nil {
		t.Fatal("expected unsupported output format error")
	}
}

func TestInfoRejectsInvalidURL(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "info", "not a url")
	if err == nil {
		t.Fatal("expected error for invalid url")
	}

	out, _, err := runCLI(t, env, "-o", "json", "info", "https://example.com/video")
	if err == nil {
		t.Fatal("expected error for non-youtube url")
	}
	var env2 api.Envelope
	if jsonErr := json.Unmarshal([]byte(out), &env2); jsonErr != nil {
		t.Fatalf("decode failure envelope: %v (out %q)", jsonErr, out)
	}
	if env2.Success || env2.ErrorKind != "invalid_reference" {
		t.Fatalf("envelope = %+v", env2)
	}
}

func TestTranscribeRejectsWindow(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env, "transcribe", "--segment-duration", "0.25", "https://youtu.be/dQw4w9WgXcQ")
	if err == nil {
		t.Fatal("expected validation error")
	}
	requireContains(t, err.Error(), "window")
}

func TestCleanupCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	runDir := filepath.Join(env.cfg.Paths.StorageDir, "dQw4w9WgXcQ-1")
	testsupport.WriteFile(t, filepath.Join(runDir, "dQw4w9WgXcQ.m4a"), []byte("audio"))
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.StorageDir, "other-2", "x.webm"), []byte("audio"))

	out, _, err := runCLI(t, env, "cleanup", "--list")
	if err != nil {
		t.Fatalf("cleanup --list: %v", err)
	}
	requireContains(t, out, "dQw4w9WgXcQ-1")

	out, _, err = runCLI(t, env, "cleanup", filepath.Join(runDir, "dQw4w9WgXcQ.m4a"))
	if err != nil {
		t.Fatalf("cleanup path: %v", err)
	}
	requireContains(t, out, "Removed")
	if _, err := os.Stat(runDir); !os.IsNotExist(err) {
		t.Fatalf("expected empty run dir removed, stat err = %v", err)
	}

	if _, _, err := runCLI(t, env, "cleanup", "/etc/passwd"); err == nil {
		t.Fatal("expected error for path outside storage")
	}

	out, _, err = runCLI(t, env, "cleanup")
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	requireContains(t, out, "Cleaned up 1 files")
}

func TestRunsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "runs", "list")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	_, _, err = runCLI(t, env, "runs", "show", "missing")
	if err == nil {
		t.Fatal("expected not found error")
	}
	requireContains(t, err.Error(), "not found")
}

func TestDoctorCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, env, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "Storage directory")
	requireContains(t, out, "[OK]")
}

func TestRenderTranscript(t *testing.T) {
	var buf bytes.Buffer
	err := renderTranscript(&buf, api.TranscribeResponse{
		Envelope:  api.Envelope{Success: true},
		RunID:     "run-1",
		VideoInfo: &youtube.VideoInfo{Title: "Demo", Duration: 75},
		TranscriptSegments: []transcript.FixedSegment{
			{ID: 1, Start: 0, End: 8, Text: " hello", Link: "https://youtube.com/watch?v=dQw4w9WgXcQ&t=0s"},
			{ID: 2, Start: 8, End: 10, Text: " world", Link: "https://youtube.com/watch?v=dQw4w9WgXcQ&t=8s"},
		},
		WhisperModelUsed: "base",
		Language:         "en",
		SegmentDuration:  8,
		TotalSegments:    2,
		ProcessingTime:   1.25,
	})
	if err != nil {
		t.Fatalf("renderTranscript: %v", err)
	}
	out := buf.String()
	requireContains(t, out, "Demo (1:15)")
	requireContains(t, out, "Window: 8s")
	requireContains(t, out, "&t=8s")
	requireContains(t, out, "0:08")
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{8.9, "0:08"},
		{75, "1:15"},
		{3725, "1:02:05"},
		{-4, "0:00"},
	}
	for _, tc := range tests {
		if got := formatClock(tc.in); got != tc.want {
			t.Errorf("formatClock(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

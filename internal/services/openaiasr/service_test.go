package openaiasr

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"tubescribe/internal/logging"
	"tubescribe/internal/models"
	"tubescribe/internal/services"
)

const verboseResponse = `{
  "task": "transcribe",
  "language": "english",
  "duration": 5.0,
  "text": "Hello there. General Kenobi.",
  "segments": [
    {"id": 0, "start": 0.0, "end": 2.0, "text": " Hello there.", "avg_logprob": -0.1},
    {"id": 1, "start": 2.0, "end": 5.0, "text": " General Kenobi.", "avg_logprob": 0.3}
  ],
  "words": [
    {"word": "Hello", "start": 0.2, "end": 0.6},
    {"word": "there", "start": 0.7, "end": 1.4},
    {"word": "General", "start": 2.1, "end": 2.9},
    {"word": "Kenobi", "start": 3.0, "end": 4.2}
  ]
}`

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.m4a")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestTranscribeVerboseJSON(t *testing.T) {
	var gotModel, gotFormat, gotLanguage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		gotLanguage = r.FormValue("language")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(verboseResponse))
	}))
	defer server.Close()

	svc := NewService(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1"}, logging.NewNop())
	m, err := svc.Load(context.Background(), "small", models.DeviceCPU)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	result, err := m.Transcribe(context.Background(), writeAudio(t), models.Options{Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if gotModel != DefaultModel || gotFormat != "verbose_json" || gotLanguage != "en" {
		t.Fatalf("unexpected request model=%q format=%q language=%q", gotModel, gotFormat, gotLanguage)
	}
	if result.Language != "en" {
		t.Fatalf("expected language en, got %q", result.Language)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	if len(result.Segments[0].Words) != 2 || len(result.Segments[1].Words) != 2 {
		t.Fatalf("unexpected word assignment %+v", result.Segments)
	}
	if got := result.Segments[0].Words[0].Confidence; math.Abs(got-math.Exp(-0.1)) > 1e-9 {
		t.Fatalf("unexpected confidence %v", got)
	}
	if got := result.Segments[1].Words[0].Confidence; got != 1 {
		t.Fatalf("expected clamped confidence 1, got %v", got)
	}
	if result.Segments[1].Text != "General Kenobi." {
		t.Fatalf("unexpected segment text %q", result.Segments[1].Text)
	}
}

func TestTranscribeServerErrorIsRecognitionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	svc := NewService(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1"}, logging.NewNop())
	m, err := svc.Load(context.Background(), "base", models.DeviceCPU)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, err = m.Transcribe(context.Background(), writeAudio(t), models.Options{})
	if !errors.Is(err, services.ErrRecognition) {
		t.Fatalf("expected ErrRecognition, got %v", err)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	svc := NewService(Config{}, logging.NewNop())
	if _, err := svc.Load(context.Background(), "tiny", models.DeviceCPU); err == nil {
		t.Fatal("expected error without api key")
	}
}

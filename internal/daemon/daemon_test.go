package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tubescribe/internal/api"
	"tubescribe/internal/daemon"
	"tubescribe/internal/models"
	"tubescribe/internal/pipeline"
	"tubescribe/internal/staging"
	"tubescribe/internal/testsupport"
	"tubescribe/internal/youtube"
)

type nopRetriever struct{}

func (nopRetriever) Validate(url string) (youtube.Reference, error) {
	return youtube.ParseReference(url)
}

func (nopRetriever) FetchMetadata(context.Context, string) (youtube.VideoInfo, error) {
	return youtube.VideoInfo{}, nil
}

func (nopRetriever) Download(context.Context, string) (*youtube.Artifact, error) {
	return nil, nil
}

type nopCatalog struct{}

func (nopCatalog) Describe() models.CatalogView { return models.CatalogView{Device: models.DeviceCPU} }
func (nopCatalog) Device() models.Device        { return models.DeviceCPU }

type nopTranscriber struct{}

func (nopTranscriber) Run(context.Context, pipeline.Request) (*pipeline.Result, pipeline.Run, error) {
	return &pipeline.Result{}, pipeline.Run{}, nil
}

func (nopTranscriber) Options() pipeline.Options { return pipeline.Options{} }

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	area, err := staging.NewArea(cfg.Paths.StorageDir, nil)
	if err != nil {
		t.Fatalf("staging.NewArea: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stuck := pipeline.Run{
		ID:        "stuck",
		URL:       "https://youtube.com/watch?v=dQw4w9WgXcQ",
		Model:     "small",
		State:     pipeline.StateIntake,
		StartedAt: time.Now().Add(-time.Hour),
	}
	if err := store.Begin(ctx, stuck); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	stale := filepath.Join(cfg.Paths.StorageDir, "old-run")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir stale: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	svc := api.NewService(api.Dependencies{
		Retriever:   nopRetriever{},
		Models:      nopCatalog{},
		Transcriber: nopTranscriber{},
		Storage:     area,
		History:     store,
	})
	janitor := staging.NewJanitor(area, 0, 1, nil)
	d, err := daemon.New(cfg, daemon.Components{Service: svc, Store: store, Storage: area, Janitor: janitor}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.Address == "" {
		t.Fatal("expected a bound address")
	}

	record, err := store.Get(ctx, "stuck")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.State != pipeline.StateFailed {
		t.Fatalf("stuck run state = %s, want failed", record.State)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale dir removed, stat err = %v", err)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	area, err := staging.NewArea(cfg.Paths.StorageDir, nil)
	if err != nil {
		t.Fatalf("staging.NewArea: %v", err)
	}
	svc := api.NewService(api.Dependencies{
		Retriever:   nopRetriever{},
		Models:      nopCatalog{},
		Transcriber: nopTranscriber{},
		Storage:     area,
	})
	components := daemon.Components{Service: svc, Store: store, Storage: area}

	first, err := daemon.New(cfg, components, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	second, err := daemon.New(cfg, components, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second daemon to fail to acquire lock")
	}
}

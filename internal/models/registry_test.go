package models_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"tubescribe/internal/logging"
	"tubescribe/internal/models"
	"tubescribe/internal/services"
	"tubescribe/internal/transcript"
)

type stubModel struct {
	name   string
	closed atomic.Bool
}

func (m *stubModel) Name() string { return m.name }

func (m *stubModel) Transcribe(context.Context, string, models.Options) (transcript.Result, error) {
	return transcript.Result{}, nil
}

func (m *stubModel) Close() error {
	m.closed.Store(true)
	return nil
}

type countingLoader struct {
	mu      sync.Mutex
	calls   map[string]int
	gate    chan struct{}
	started chan struct{}
	fail    error
	devices []models.Device
	loaded  map[string]*stubModel
}

func newCountingLoader() *countingLoader {
	return &countingLoader{calls: map[string]int{}, loaded: map[string]*stubModel{}}
}

func (l *countingLoader) Load(ctx context.Context, name string, device models.Device) (models.Model, error) {
	if l.started != nil {
		select {
		case l.started <- struct{}{}:
		default:
		}
	}
	if l.gate != nil {
		<-l.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[name]++
	l.devices = append(l.devices, device)
	if l.fail != nil {
		return nil, l.fail
	}
	m := &stubModel{name: name}
	l.loaded[name] = m
	return m, nil
}

func (l *countingLoader) Available(name string) bool {
	return name == "tiny"
}

func (l *countingLoader) count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[name]
}

func TestCatalogLookup(t *testing.T) {
	names := models.Names()
	want := []string{"tiny", "base", "small", "medium", "large"}
	if len(names) != len(want) {
		t.Fatalf("expected %d models, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	d, ok := models.Lookup("  Large ")
	if !ok || d.Size != "1550 MB" || d.RelativeSpeed != 1.0 {
		t.Fatalf("unexpected lookup result %+v ok=%v", d, ok)
	}
	if _, ok := models.Lookup("huge"); ok {
		t.Fatal("expected unknown model lookup to fail")
	}
}

func TestCatalogReturnsCopy(t *testing.T) {
	c := models.Catalog()
	c[0].Name = "mutated"
	if models.Catalog()[0].Name != "tiny" {
		t.Fatal("catalog mutation leaked into package state")
	}
}

func TestDetectDevice(t *testing.T) {
	yes := func() bool { return true }
	no := func() bool { return false }
	tests := []struct {
		pref  string
		probe func() bool
		want  models.Device
	}{
		{"cpu", yes, models.DeviceCPU},
		{"CUDA", no, models.DeviceCUDA},
		{"auto", yes, models.DeviceCUDA},
		{"auto", no, models.DeviceCPU},
		{"", no, models.DeviceCPU},
	}
	for _, tt := range tests {
		if got := models.DetectDevice(tt.pref, tt.probe); got != tt.want {
			t.Fatalf("DetectDevice(%q) = %q, want %q", tt.pref, got, tt.want)
		}
	}
}

func TestAcquireLoadsOnce(t *testing.T) {
	loader := newCountingLoader()
	reg := models.NewRegistry(loader, models.DeviceCPU, 2, logging.NewNop())

	for i := 0; i < 3; i++ {
		lease, err := reg.Acquire(context.Background(), "base")
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		if lease.Model().Name() != "base" {
			t.Fatalf("unexpected model %q", lease.Model().Name())
		}
		lease.Release()
	}
	if got := loader.count("base"); got != 1 {
		t.Fatalf("expected one load, got %d", got)
	}
	if loader.devices[0] != models.DeviceCPU {
		t.Fatalf("expected cpu device, got %q", loader.devices[0])
	}
}

func TestAcquireConcurrentSharesLoad(t *testing.T) {
	loader := newCountingLoader()
	loader.gate = make(chan struct{})
	reg := models.NewRegistry(loader, models.DeviceCPU, 2, logging.NewNop())

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := reg.Acquire(context.Background(), "small")
			if err != nil {
				errs <- err
				return
			}
			lease.Release()
		}()
	}
	close(loader.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Acquire: %v", err)
	}
	if got := loader.count("small"); got != 1 {
		t.Fatalf("expected one load across concurrent callers, got %d", got)
	}
}

func TestAcquireCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	loader := newCountingLoader()
	loader.gate = make(chan struct{})
	loader.started = make(chan struct{}, 1)
	reg := models.NewRegistry(loader, models.DeviceCPU, 2, logging.NewNop())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		lease, err := reg.Acquire(firstCtx, "medium")
		if err == nil {
			lease.Release()
		}
		firstErr <- err
	}()
	<-loader.started

	secondErr := make(chan error, 1)
	go func() {
		lease, err := reg.Acquire(context.Background(), "medium")
		if err == nil {
			lease.Release()
		}
		secondErr <- err
	}()

	cancelFirst()
	err := <-firstErr
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller err = %v, want context.Canceled", err)
	}

	close(loader.gate)
	if err := <-secondErr; err != nil {
		t.Fatalf("second caller: %v", err)
	}
	if got := loader.count("medium"); got != 1 {
		t.Fatalf("expected one load, got %d", got)
	}
	if !reg.Loaded("medium") {
		t.Fatal("expected medium to stay resident after the shared load")
	}
}

func TestAcquireUnknownModel(t *testing.T) {
	loader := newCountingLoader()
	reg := models.NewRegistry(loader, models.DeviceCPU, 1, logging.NewNop())

	_, err := reg.Acquire(context.Background(), "gigantic")
	if !errors.Is(err, services.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
	if len(loader.calls) != 0 {
		t.Fatalf("loader must not run for unknown models: %v", loader.calls)
	}
}

func TestAcquireLoadFailureNotCached(t *testing.T) {
	loader := newCountingLoader()
	loader.fail = errors.New("out of memory")
	reg := models.NewRegistry(loader, models.DeviceCPU, 1, logging.NewNop())

	_, err := reg.Acquire(context.Background(), "medium")
	if !errors.Is(err, services.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
	if reg.Loaded("medium") {
		t.Fatal("failed load must not be cached")
	}

	loader.fail = nil
	if err := reg.EnsureLoaded(context.Background(), "medium"); err != nil {
		t.Fatalf("retry load: %v", err)
	}
	if got := loader.count("medium"); got != 2 {
		t.Fatalf("expected retry to load again, got %d loads", got)
	}
}

func TestEvictionSkipsLeasedModels(t *testing.T) {
	loader := newCountingLoader()
	reg := models.NewRegistry(loader, models.DeviceCPU, 1, logging.NewNop())
	ctx := context.Background()

	held, err := reg.Acquire(ctx, "tiny")
	if err != nil {
		t.Fatalf("Acquire tiny: %v", err)
	}
	other, err := reg.Acquire(ctx, "base")
	if err != nil {
		t.Fatalf("Acquire base: %v", err)
	}
	if !reg.Loaded("tiny") || !reg.Loaded("base") {
		t.Fatal("leased models must stay resident while over capacity")
	}

	other.Release()
	if reg.Loaded("base") {
		t.Fatal("expected base to be evicted once released")
	}
	if !loader.loaded["base"].closed.Load() {
		t.Fatal("expected evicted model to be closed")
	}
	if !reg.Loaded("tiny") {
		t.Fatal("held model must not be evicted")
	}
	held.Release()
	held.Release()
	if !reg.Loaded("tiny") {
		t.Fatal("model within capacity should stay resident")
	}
}

func TestDescribeReportsState(t *testing.T) {
	loader := newCountingLoader()
	reg := models.NewRegistry(loader, models.DeviceCUDA, 2, logging.NewNop())

	view := reg.Describe()
	if view.Current != "" || len(view.Loaded) != 0 {
		t.Fatalf("expected empty registry, got %+v", view)
	}
	if err := reg.EnsureLoaded(context.Background(), "base"); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	view = reg.Describe()
	if view.Current != "base" {
		t.Fatalf("expected current model base, got %q", view.Current)
	}
	if len(view.Loaded) != 1 || view.Loaded[0] != "base" {
		t.Fatalf("unexpected loaded list %v", view.Loaded)
	}
	if view.Device != models.DeviceCUDA {
		t.Fatalf("expected cuda device, got %q", view.Device)
	}
	if len(view.Models) != 5 || !view.Models[0].Available || view.Models[1].Available {
		t.Fatalf("unexpected availability: %+v", view.Models)
	}
}

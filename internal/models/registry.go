package models

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tubescribe/internal/logging"
	"tubescribe/internal/services"
	"tubescribe/internal/transcript"
)

// Options tune a single recognition call.
type Options struct {
	// Language is an optional ISO 639-1 hint; empty means auto-detect.
	Language string
}

// Model is a loaded recognition model.
type Model interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string, opts Options) (transcript.Result, error)
}

// Loader materializes models for a backend.
type Loader interface {
	Load(ctx context.Context, name string, device Device) (Model, error)
	// Available reports whether the model's weights are already present
	// locally, so loading it will not download anything.
	Available(name string) bool
}

// CatalogView is the registry state reported to clients.
type CatalogView struct {
	Models  []Descriptor `json:"models" yaml:"models"`
	Current string       `json:"current_model" yaml:"current_model"`
	Loaded  []string     `json:"loaded_models" yaml:"loaded_models"`
	Device  Device       `json:"device" yaml:"device"`
}

type entry struct {
	model    Model
	refs     int
	lastUsed uint64
}

// Registry caches loaded models keyed by name.
type Registry struct {
	loader   Loader
	device   Device
	capacity int
	logger   *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	waiting map[string]int
	current string
	clock   uint64
}

// NewRegistry constructs a registry holding at most capacity unleased models.
func NewRegistry(loader Loader, device Device, capacity int, logger *slog.Logger) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	return &Registry{
		loader:   loader,
		device:   device,
		capacity: capacity,
		logger:   logging.NewComponentLogger(logger, "models"),
		entries:  make(map[string]*entry),
		waiting:  make(map[string]int),
	}
}

// Device returns the compute device models are loaded onto.
func (r *Registry) Device() Device {
	return r.device
}

// Lease pins a loaded model until Release is called.
type Lease struct {
	registry *Registry
	name     string
	model    Model
	once     sync.Once
}

// Model returns the leased model.
func (l *Lease) Model() Model {
	return l.model
}

// Name returns the catalog name of the leased model.
func (l *Lease) Name() string {
	return l.name
}

// Release unpins the model. It is safe to call more than once.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.registry.release(l.name)
	})
}

// Acquire returns a lease on the named model, loading it if needed.
// Concurrent callers asking for the same model share a single load.
func (r *Registry) Acquire(ctx context.Context, name string) (*Lease, error) {
	name = NormalizeName(name)
	if _, ok := Lookup(name); !ok {
		return nil, services.Wrap(
			services.ErrUnknownModel,
			"models",
			"acquire",
			fmt.Sprintf("Invalid model %q. Available: %s", name, strings.Join(Names(), ", ")),
			nil,
		)
	}

	r.mu.Lock()
	if e, ok := r.entries[name]; ok {
		lease := r.pinLocked(name, e)
		r.mu.Unlock()
		return lease, nil
	}
	r.waiting[name]++
	r.mu.Unlock()

	// The load outlives any single caller: a cancelled caller stops waiting,
	// but the others sharing the load still get the model.
	ch := r.group.DoChan(name, func() (any, error) {
		return r.load(context.WithoutCancel(ctx), name)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		r.mu.Lock()
		r.doneWaitingLocked(name)
		r.mu.Unlock()
		return nil, services.Wrap(services.ErrModelLoad, "models", "acquire", fmt.Sprintf("wait for %s", name), ctx.Err())
	}

	r.mu.Lock()
	r.doneWaitingLocked(name)
	if res.Err != nil {
		r.mu.Unlock()
		return nil, res.Err
	}
	e, ok := r.entries[name]
	if !ok {
		e = &entry{model: res.Val.(Model)}
		r.entries[name] = e
	}
	lease := r.pinLocked(name, e)
	evicted := r.evictLocked()
	r.mu.Unlock()

	closeModels(evicted, r.logger)
	if res.Shared {
		r.logger.Debug("model load shared", logging.String("model", name))
	}
	return lease, nil
}

// EnsureLoaded loads the named model without holding it.
func (r *Registry) EnsureLoaded(ctx context.Context, name string) error {
	lease, err := r.Acquire(ctx, name)
	if err != nil {
		return err
	}
	lease.Release()
	return nil
}

// Loaded reports whether the named model is resident.
func (r *Registry) Loaded(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[NormalizeName(name)]
	return ok
}

// Describe returns the catalog annotated with availability and registry state.
func (r *Registry) Describe() CatalogView {
	descriptors := Catalog()

	r.mu.Lock()
	loaded := make([]string, 0, len(r.entries))
	for i := range descriptors {
		if _, ok := r.entries[descriptors[i].Name]; ok {
			loaded = append(loaded, descriptors[i].Name)
		}
	}
	current := r.current
	r.mu.Unlock()

	for i := range descriptors {
		descriptors[i].Available = r.loader.Available(descriptors[i].Name)
	}
	return CatalogView{
		Models:  descriptors,
		Current: current,
		Loaded:  loaded,
		Device:  r.device,
	}
}

// Close drops every unleased model.
func (r *Registry) Close() {
	r.mu.Lock()
	var evicted []Model
	for name, e := range r.entries {
		if e.refs == 0 {
			evicted = append(evicted, e.model)
			delete(r.entries, name)
			if r.current == name {
				r.current = ""
			}
		}
	}
	r.mu.Unlock()
	closeModels(evicted, r.logger)
}

func (r *Registry) load(ctx context.Context, name string) (Model, error) {
	r.mu.Lock()
	if e, ok := r.entries[name]; ok {
		r.mu.Unlock()
		return e.model, nil
	}
	r.mu.Unlock()

	r.logger.Info("loading model",
		logging.String("model", name),
		logging.String("device", string(r.device)),
	)
	start := time.Now()
	model, err := r.loader.Load(ctx, name, r.device)
	if err != nil {
		return nil, services.Wrap(services.ErrModelLoad, "models", "load", fmt.Sprintf("load %s", name), err)
	}
	if model == nil {
		return nil, services.Wrap(services.ErrModelLoad, "models", "load", fmt.Sprintf("load %s", name), fmt.Errorf("loader returned no model"))
	}

	r.mu.Lock()
	if _, ok := r.entries[name]; !ok {
		r.entries[name] = &entry{model: model}
	}
	r.mu.Unlock()

	r.logger.Info("model loaded",
		logging.String("model", name),
		logging.Duration("elapsed", time.Since(start)),
	)
	return model, nil
}

func (r *Registry) doneWaitingLocked(name string) {
	r.waiting[name]--
	if r.waiting[name] == 0 {
		delete(r.waiting, name)
	}
}

func (r *Registry) pinLocked(name string, e *entry) *Lease {
	r.clock++
	e.refs++
	e.lastUsed = r.clock
	r.current = name
	return &Lease{registry: r, name: name, model: e.model}
}

func (r *Registry) release(name string) {
	r.mu.Lock()
	if e, ok := r.entries[name]; ok && e.refs > 0 {
		e.refs--
	}
	evicted := r.evictLocked()
	r.mu.Unlock()
	closeModels(evicted, r.logger)
}

// evictLocked drops least recently used models that are neither leased nor
// awaited until the registry fits its capacity.
func (r *Registry) evictLocked() []Model {
	var evicted []Model
	for len(r.entries) > r.capacity {
		victim := ""
		var oldest uint64
		for name, e := range r.entries {
			if e.refs > 0 || r.waiting[name] > 0 {
				continue
			}
			if victim == "" || e.lastUsed < oldest {
				victim = name
				oldest = e.lastUsed
			}
		}
		if victim == "" {
			break
		}
		evicted = append(evicted, r.entries[victim].model)
		delete(r.entries, victim)
		if r.current == victim {
			r.current = ""
		}
		r.logger.Info("model evicted", logging.String("model", victim))
	}
	return evicted
}

func closeModels(models []Model, logger *slog.Logger) {
	for _, m := range models {
		closer, ok := m.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			logging.WarnWithContext(logger, "model close failed", "model_close_failed",
				logging.String("model", m.Name()),
				logging.Error(err),
			)
		}
	}
}

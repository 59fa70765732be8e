package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"tubescribe/internal/api"
	"tubescribe/internal/config"
	"tubescribe/internal/logging"
	"tubescribe/internal/runstore"
	"tubescribe/internal/staging"
)

// Components are the long-lived collaborators the daemon owns. Registry is
// closed on shutdown so resident models release their resources.
type Components struct {
	Service  *api.Service
	Store    *runstore.Store
	Storage  *staging.Area
	Janitor  *staging.Janitor
	Registry interface{ Close() }
}

// Daemon serves the HTTP API and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	c      Components
	server *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	Address      string `json:"address,omitempty"`
	LockFilePath string `json:"lock_file"`
	RunStorePath string `json:"run_store"`
	StorageRoot  string `json:"storage_root"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, c Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || c.Service == nil || c.Store == nil || c.Storage == nil {
		return nil, errors.New("daemon requires config, service, run store, and storage")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		c:        c,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.server = newAPIServer(cfg.Paths.APIBind, cfg.Paths.APIToken, c.Service, logger)
	return d, nil
}

// Start acquires the daemon lock, runs startup maintenance, and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tubescribe server is already running")
	}

	d.sweep(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("tubescribe server started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.address()),
	)
	return nil
}

// sweep clears leftovers from a previous process. Failures are logged and
// never block startup.
func (d *Daemon) sweep(ctx context.Context) {
	if n, err := d.c.Store.MarkInterrupted(ctx); err != nil {
		logging.WarnWithContext(d.logger, "failed to mark interrupted runs", "startup_recovery",
			logging.Error(err),
			logging.String(logging.FieldImpact, "earlier runs may still report an in-flight state"),
		)
	} else if n > 0 {
		d.logger.Info("marked interrupted runs failed",
			logging.Int64("runs", n),
			logging.String(logging.FieldEventType, "startup_recovery"),
		)
	}

	maxAge := d.cfg.StaleAfter()
	if maxAge <= 0 {
		return
	}
	result := staging.CleanStale(ctx, d.c.Storage.Root(), maxAge, d.logger)
	for _, failure := range result.Errors {
		logging.WarnWithContext(d.logger, "stale sweep failed", "stale_sweep",
			logging.String("path", failure.Path),
			logging.Error(failure.Error),
		)
	}
}

// Stop stops serving and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("tubescribe server stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.c.Janitor != nil {
		d.c.Janitor.Close()
	}
	if d.c.Registry != nil {
		d.c.Registry.Close()
	}
	return d.c.Store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Address:      d.server.address(),
		LockFilePath: d.lockPath,
		RunStorePath: d.c.Store.Path(),
		StorageRoot:  d.c.Storage.Root(),
	}
}

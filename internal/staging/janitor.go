package staging

import (
	"log/slog"
	"sync"
	"time"

	"tubescribe/internal/logging"
)

type job struct {
	path string
	due  time.Time
}

// Janitor removes released artifacts in the background so deletion I/O never
// delays a response. Scheduled paths are removed after the configured delay.
type Janitor struct {
	area    *Area
	logger  *slog.Logger
	delay   time.Duration
	jobs    chan job
	stop    chan struct{}
	pending sync.WaitGroup
	workers sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewJanitor starts workers goroutines that delete paths scheduled on area.
func NewJanitor(area *Area, delay time.Duration, workers int, logger *slog.Logger) *Janitor {
	if workers < 1 {
		workers = 1
	}
	if delay < 0 {
		delay = 0
	}
	j := &Janitor{
		area:   area,
		logger: logging.NewComponentLogger(logger, "janitor"),
		delay:  delay,
		jobs:   make(chan job, 64),
		stop:   make(chan struct{}),
	}
	j.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go j.loop()
	}
	return j
}

// Schedule queues path for removal. After Close it removes path synchronously.
func (j *Janitor) Schedule(path string) {
	if path == "" {
		return
	}
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		j.remove(path)
		return
	}
	j.pending.Add(1)
	j.mu.Unlock()

	item := job{path: path, due: time.Now().Add(j.delay)}
	select {
	case j.jobs <- item:
	default:
		// Queue full; do not block the caller.
		go func() { j.jobs <- item }()
	}
}

// Wait blocks until every scheduled removal has run.
func (j *Janitor) Wait() {
	j.pending.Wait()
}

// Close stops accepting delayed work, runs queued removals immediately, and
// waits for the workers to exit.
func (j *Janitor) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	j.mu.Unlock()

	close(j.stop)
	j.pending.Wait()
	close(j.jobs)
	j.workers.Wait()
}

func (j *Janitor) loop() {
	defer j.workers.Done()
	for item := range j.jobs {
		if wait := time.Until(item.due); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-j.stop:
				timer.Stop()
			}
		}
		j.remove(item.path)
		j.pending.Done()
	}
}

func (j *Janitor) remove(path string) {
	removed, err := j.area.Remove(path)
	if err != nil {
		logging.WarnWithContext(j.logger, "artifact cleanup failed", "artifact_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'tubescribe cleanup' or check storage_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return
	}
	j.logger.Debug("artifact removed",
		logging.String("path", path),
		logging.Bool("existed", removed),
	)
}

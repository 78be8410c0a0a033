// Package watcher transcribes audio files dropped into an inbox directory.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"speech-diarization-service/internal/observability/logging"
	"speech-diarization-service/internal/observability/metrics"
	"speech-diarization-service/internal/service/audio"
	"speech-diarization-service/internal/service/transcription"
)

// Ingester moves a dropped file into storage and transcribes it.
type Ingester interface {
	Ingest(ctx context.Context, path string) (*transcription.Outcome, error)
}

// Config holds watcher configuration.
type Config struct {
	Dir       string
	Workers   int
	QueueSize int
	// Settle is how long a file must go without writes before pickup.
	Settle time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Dir:       "inbox",
		Workers:   1,
		QueueSize: 100,
		Settle:    500 * time.Millisecond,
	}
}

// Watcher feeds newly written inbox files to a bounded worker pool.
type Watcher struct {
	cfg     Config
	ingest  Ingester
	queue   chan string
	fsw     *fsnotify.Watcher
	metrics *metrics.Metrics
	logger  zerolog.Logger

	cancel   context.CancelFunc
	loopDone chan struct{}
	workers  sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

func New(cfg Config, ingest Ingester) *Watcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	return &Watcher{
		cfg:     cfg,
		ingest:  ingest,
		queue:   make(chan string, cfg.QueueSize),
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("watcher").With().Str("dir", cfg.Dir).Logger(),
		pending: make(map[string]*time.Timer),
	}
}

// Start begins watching and queues files already present in the inbox.
// Workers run with ctx; Stop ends the watch loop.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.cfg.Dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	w.fsw = fsw

	for i := 0; i < w.cfg.Workers; i++ {
		w.workers.Add(1)
		go w.worker(ctx)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.loopDone = make(chan struct{})
	go w.loop(loopCtx)

	w.scan()
	w.logger.Info().Int("workers", w.cfg.Workers).Msg("Started watching inbox")
	return nil
}

// Stop ends the watch loop, drops pending pickups and waits for queued
// files to finish or ctx to end.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	w.cancel = nil
	<-w.loopDone
	w.fsw.Close()

	w.mu.Lock()
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	close(w.queue)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.logger.Info().Msg("Inbox watcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if ignored(event.Name) {
		return
	}
	if !audio.IsSupported(event.Name) {
		w.metrics.RecordWatcherDropped("unsupported")
		w.logger.Debug().Str("file", filepath.Base(event.Name)).Msg("Skipping non-audio file")
		return
	}
	w.schedule(event.Name)
}

// scan queues audio files present before the watch started.
func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to scan inbox")
		return
	}
	for _, e := range entries {
		path := filepath.Join(w.cfg.Dir, e.Name())
		if e.Type().IsRegular() && !ignored(path) && audio.IsSupported(path) {
			w.schedule(path)
		}
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.cfg.Settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Settle, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, path)
	if w.closed {
		return
	}

	select {
	case w.queue <- path:
		w.metrics.RecordWatcherQueued()
		w.logger.Info().Str("file", filepath.Base(path)).Msg("Queued inbox file for transcription")
	default:
		w.metrics.RecordWatcherDropped("queue_full")
		w.logger.Warn().Str("file", filepath.Base(path)).Msg("Job queue is full, file left in inbox")
	}
}

func (w *Watcher) worker(ctx context.Context) {
	defer w.workers.Done()
	for path := range w.queue {
		if ctx.Err() != nil {
			continue
		}
		out, err := w.ingest.Ingest(ctx, path)
		if err != nil {
			log.Error().Err(err).Str("component", "watcher").Str("file", filepath.Base(path)).Msg("Inbox transcription failed")
			continue
		}
		w.logger.Info().
			Str("file", out.Filename).
			Str("jobId", out.JobID).
			Msg("Inbox file transcribed")
	}
}

// ignored reports hidden and partially written files.
func ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".part")
}

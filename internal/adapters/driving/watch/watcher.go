// Package watch ingests extraction archives as they are dropped into a
// directory. Archive writes are debounced so a file still being copied is
// not opened half-written, and ingestions are spaced by a rate limiter.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driving"
	"github.com/custodia-labs/ingestor/internal/logger"
)

// Defaults for a Watcher.
const (
	DefaultSettle  = 500 * time.Millisecond
	DefaultPattern = "*.zip"
)

// ErrNotDirectory indicates the watch path is not a directory.
var ErrNotDirectory = errors.New("watch path is not a directory")

// ResultFunc receives the outcome of every ingestion.
type ResultFunc func(path string, result *domain.IngestionResult, err error)

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long an archive must stay unchanged before ingestion.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithMinInterval spaces consecutive ingestions. Zero means no spacing.
func WithMinInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			w.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithPatterns replaces the file name patterns that mark an archive.
func WithPatterns(patterns ...string) Option {
	return func(w *Watcher) {
		w.patterns = patterns
	}
}

// WithExisting also ingests archives already present when Run starts.
func WithExisting(existing bool) Option {
	return func(w *Watcher) {
		w.existing = existing
	}
}

// WithResultFunc sets the callback invoked after every ingestion.
func WithResultFunc(fn ResultFunc) Option {
	return func(w *Watcher) {
		if fn != nil {
			w.onResult = fn
		}
	}
}

// Watcher ingests archives that appear in a directory, one at a time.
type Watcher struct {
	dir      string
	svc      driving.IngestionService
	settle   time.Duration
	limiter  *rate.Limiter
	patterns []string
	matchers []glob.Glob
	existing bool
	onResult ResultFunc
}

// New creates a watcher for dir.
func New(dir string, svc driving.IngestionService, opts ...Option) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	w := &Watcher{
		dir:      dir,
		svc:      svc,
		settle:   DefaultSettle,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		patterns: []string{DefaultPattern},
		onResult: logResult,
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range w.patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", domain.ErrInvalidInput, p, err)
		}
		w.matchers = append(w.matchers, g)
	}
	return w, nil
}

// Run watches the directory until ctx is cancelled.
// Cancellation is a clean shutdown and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	ready := make(chan string, 16)
	deb := newDebouncer(w.settle, ready)
	defer deb.stop()

	if w.existing {
		if err := w.scanExisting(deb); err != nil {
			return err
		}
	}

	logger.Info("watching %s", w.dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) && w.matches(event.Name) {
				deb.touch(event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch %s: %v", w.dir, err)
		case path := <-ready:
			if err := w.limiter.Wait(ctx); err != nil {
				return nil
			}
			w.ingest(ctx, path)
		}
	}
}

func (w *Watcher) scanExisting(deb *debouncer) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", w.dir, err)
	}
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if !e.IsDir() && w.matches(path) {
			deb.touch(path)
		}
	}
	return nil
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	// The file may have been moved away while settling.
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	logger.Debug("ingesting %s", path)
	result, err := w.svc.Ingest(ctx, path)
	if ctx.Err() != nil && result == nil {
		return
	}
	w.onResult(path, result, err)
}

// matches reports whether the file name looks like an archive.
func (w *Watcher) matches(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, m := range w.matchers {
		if m.Match(name) {
			return true
		}
	}
	return false
}

func logResult(path string, result *domain.IngestionResult, err error) {
	if result == nil {
		logger.Warn("%s: %v", path, err)
		return
	}
	if err != nil {
		logger.Warn("%s: %v", path, err)
	}
	logger.Info("%s: %d records, %d failed entries", path, len(result.Records), len(result.Failed()))
}

// debouncer emits a path once it has not been touched for the settle time.
type debouncer struct {
	settle time.Duration
	out    chan<- string

	mu      sync.Mutex
	pending map[string]*time.Timer
	done    chan struct{}
	stopped bool
}

func newDebouncer(settle time.Duration, out chan<- string) *debouncer {
	return &debouncer{
		settle:  settle,
		out:     out,
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
}

func (d *debouncer) touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if t, ok := d.pending[path]; ok {
		t.Reset(d.settle)
		return
	}
	d.pending[path] = time.AfterFunc(d.settle, func() {
		d.emit(path)
	})
}

func (d *debouncer) emit(path string) {
	d.mu.Lock()
	delete(d.pending, path)
	d.mu.Unlock()

	select {
	case d.out <- path:
	case <-d.done:
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	close(d.done)
	for path, t := range d.pending {
		t.Stop()
		delete(d.pending, path)
	}
}

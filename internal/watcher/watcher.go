// Package watcher ingests photos dropped into a directory.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rpggio/facelapse/internal/domain/ingest"
)

// DefaultDebounce is how long a directory must stay quiet before the files
// written into it are submitted.
const DefaultDebounce = 2 * time.Second

// maxAttempts bounds how often a file is resubmitted after a failed batch.
const maxAttempts = 3

// Submitter ingests a settled batch of files.
type Submitter interface {
	SubmitFiles(ctx context.Context, paths []string) (*ingest.Result, error)
}

// Watcher collects new image files in a directory and submits them as one
// batch once writes stop.
type Watcher struct {
	dir       string
	submitter Submitter
	debounce  time.Duration
	logger    *slog.Logger

	// pending maps a path to its last write.
	pending  map[string]time.Time
	attempts map[string]int
	mu       sync.Mutex

	// OnBatch, when set, receives every submitted batch result.
	OnBatch func(*ingest.Result)
}

// New creates a Watcher for dir.
func New(dir string, submitter Submitter, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		dir:       dir,
		submitter: submitter,
		debounce:  debounce,
		logger:    logger,
		pending:   make(map[string]time.Time),
		attempts:  make(map[string]int),
	}
}

// Run watches until ctx is cancelled. Files already pending when ctx ends are
// dropped.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching for photos", "dir", w.dir, "debounce", w.debounce)

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.observe(event, time.Now())

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case now := <-ticker.C:
			if batch := w.settled(now); len(batch) > 0 {
				w.submit(ctx, batch)
			}
		}
	}
}

func (w *Watcher) tick() time.Duration {
	return min(w.debounce/4+time.Millisecond, 250*time.Millisecond)
}

// observe records a write to a candidate file, or forgets a file that was
// removed or renamed away.
func (w *Watcher) observe(event fsnotify.Event, at time.Time) {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.pending, event.Name)
		delete(w.attempts, event.Name)
		w.mu.Unlock()
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !Candidate(event.Name) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = at
	w.mu.Unlock()
}

// settled returns the pending files once none has been written for the
// debounce interval, and clears them.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}
	for _, last := range w.pending {
		if now.Sub(last) < w.debounce {
			return nil
		}
	}

	batch := make([]string, 0, len(w.pending))
	for path := range w.pending {
		batch = append(batch, path)
	}
	clear(w.pending)
	slices.Sort(batch)
	return batch
}

// submit ingests the files of batch that can still be opened. When the
// batch fails they go back to pending until maxAttempts is reached.
func (w *Watcher) submit(ctx context.Context, batch []string) {
	ready := make([]string, 0, len(batch))
	for _, path := range batch {
		if err := readable(path); err != nil {
			w.logger.Warn("skipping watched file", "path", path, "error", err)
			w.forget(path)
			continue
		}
		ready = append(ready, path)
	}
	if len(ready) == 0 {
		return
	}

	res, err := w.submitter.SubmitFiles(ctx, ready)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("failed to ingest watched files", "count", len(ready), "error", err)
		w.requeue(ready, time.Now())
		return
	}
	for _, path := range ready {
		w.forget(path)
	}
	w.logger.Info("ingested watched files", "batch_id", res.BatchID, "accepted", res.Accepted, "duplicates", res.Duplicates)
	if w.OnBatch != nil {
		w.OnBatch(res)
	}
}

func (w *Watcher) requeue(paths []string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, path := range paths {
		w.attempts[path]++
		if w.attempts[path] >= maxAttempts {
			w.logger.Warn("giving up on watched file", "path", path, "attempts", w.attempts[path])
			delete(w.attempts, path)
			continue
		}
		if _, ok := w.pending[path]; !ok {
			w.pending[path] = at
		}
	}
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.attempts, path)
	w.mu.Unlock()
}

func readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// Candidate reports whether a file name looks like a photo the library can
// take. Hidden and temporary files are ignored.
func Candidate(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	return ingest.SupportedFile(base)
}

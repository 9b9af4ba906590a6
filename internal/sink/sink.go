// Package sink writes the best layout found so far to disk without ever
// blocking the search loop that produces it.
package sink

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// BestWriter persists layout snapshots asynchronously. Offers are
// latest-wins: if the search improves faster than the disk can keep up,
// intermediate snapshots are skipped and only the newest content lands.
// Writes go through a temp file and a rename, so a reader tailing the
// output path never sees a torn layout.
type BestWriter struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	pending string
	have    bool
	closed  bool
	lastErr error

	kick chan struct{}
	quit chan struct{}
	done chan struct{}
}

func NewBestWriter(path string, logger *slog.Logger) (*BestWriter, error) {
	if path == "" {
		return nil, errors.New("output path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &BestWriter{
		path:   path,
		logger: logger,
		kick:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Offer replaces the pending snapshot. It never blocks; offers after Close
// are dropped.
func (w *BestWriter) Offer(content string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = content
	w.have = true
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Close flushes any pending snapshot and reports the last write failure.
func (w *BestWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return w.lastErr
	}
	w.closed = true
	w.mu.Unlock()

	close(w.quit)
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *BestWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.kick:
			w.flush()
		case <-w.quit:
			// Final flush covers an offer that raced with the last kick.
			w.flush()
			return
		}
	}
}

func (w *BestWriter) flush() {
	w.mu.Lock()
	if !w.have {
		w.mu.Unlock()
		return
	}
	content := w.pending
	w.have = false
	w.mu.Unlock()

	if err := writeAtomic(w.path, []byte(content)); err != nil {
		w.logger.Warn("failed to persist best layout", "path", w.path, "error", err)
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
	}
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

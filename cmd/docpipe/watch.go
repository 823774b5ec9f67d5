package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/docpipe/core"
)

// defaultSettle is how long a file must go without events before upload.
const defaultSettle = 500 * time.Millisecond

type uploader interface {
	Upload(ctx context.Context, ownerID, fileName string, data []byte, mimeType string) (*core.Document, error)
}

// dirWatcher uploads files that appear or change in a directory.
// Repeated events for the same file are coalesced, and a file whose
// content is unchanged since its last upload is skipped.
type dirWatcher struct {
	uploader uploader
	owner    string
	settle   time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	pending  map[string]*time.Timer
	uploaded map[string]string
	wg       sync.WaitGroup
}

func newDirWatcher(u uploader, owner string, logger *slog.Logger) *dirWatcher {
	return &dirWatcher{
		uploader: u,
		owner:    owner,
		settle:   defaultSettle,
		logger:   logger.With("component", "dir-watcher"),
		pending:  make(map[string]*time.Timer),
		uploaded: make(map[string]string),
	}
}

// Run watches dir until ctx is cancelled.
func (w *dirWatcher) Run(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("watching directory", "dir", dir, "owner", w.owner)

	defer w.wg.Wait()
	defer w.cancelPending()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *dirWatcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[ev.Name]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}
	// Either nothing is pending or the timer already fired; arm a new one.
	// A fired callback only clears the entry while it is still its own.
	path := ev.Name
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.upload(ctx, path)
	})
	w.pending[path] = t
}

func (w *dirWatcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

func (w *dirWatcher) upload(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("failed to read file", "path", path, "err", err)
		return
	}

	ref := core.BlobRefFromContent(data)
	w.mu.Lock()
	seen := w.uploaded[path] == ref
	w.mu.Unlock()
	if seen {
		return
	}

	doc, err := w.uploader.Upload(ctx, w.owner, filepath.Base(path), data, "")
	if err != nil {
		w.logger.Warn("upload failed", "path", path, "err", err)
		return
	}
	w.mu.Lock()
	w.uploaded[path] = ref
	w.mu.Unlock()
	w.logger.Info("uploaded", "path", path, "documentID", doc.ID, "jobID", doc.JobID)
}

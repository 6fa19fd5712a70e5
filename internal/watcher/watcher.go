// Package watcher keeps a knowledge base in sync with a directory of
// documents, re-ingesting files as they change.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/aura-companion/aura/internal/knowledge"
	"github.com/aura-companion/aura/internal/loader"
)

// Watcher watches a directory and mirrors its documents into an engine.
// Documents are named by their path relative to the watched root.
type Watcher struct {
	root        string
	engine      *knowledge.Engine
	maxFileSize int64

	// debounce holds pending file events to batch process
	debounce     map[string]fsnotify.Op
	debounceMu   sync.Mutex
	debounceTime time.Duration

	// callback for status updates
	onEvent func(event string, path string)
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounceTime sets the debounce duration for batching events.
func WithDebounceTime(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceTime = d
	}
}

// WithEventCallback sets a callback for file events.
func WithEventCallback(fn func(event string, path string)) Option {
	return func(w *Watcher) {
		w.onEvent = fn
	}
}

// WithMaxFileSize skips files larger than the given size.
func WithMaxFileSize(size int64) Option {
	return func(w *Watcher) {
		w.maxFileSize = size
	}
}

// New creates a watcher over root feeding the given engine.
func New(root string, engine *knowledge.Engine, opts ...Option) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:         absRoot,
		engine:       engine,
		debounce:     make(map[string]fsnotify.Op),
		debounceTime: 500 * time.Millisecond,
		onEvent:      func(string, string) {}, // noop default
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching for file changes. Blocks until context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addDirectories(watcher); err != nil {
		return err
	}

	log.Info("Watching for document changes", "root", w.root)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, watcher)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error", "error", err)
		}
	}
}

// addDirectories recursively adds all directories to the watcher.
func (w *Watcher) addDirectories(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !d.IsDir() {
			return nil
		}

		if name := d.Name(); strings.HasPrefix(name, ".") && path != w.root {
			return filepath.SkipDir
		}

		if err := watcher.Add(path); err != nil {
			log.Debug("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// handleEvent processes a single file system event.
func (w *Watcher) handleEvent(event fsnotify.Event, watcher *fsnotify.Watcher) {
	path := event.Name

	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	// For new directories, start watching them
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			watcher.Add(path)
			log.Debug("Added directory to watch", "path", path)
			return
		}
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return
	}

	if !loader.Supported(loader.DetectMIMEType(filepath.Base(path), "")) {
		return
	}

	w.debounceMu.Lock()
	w.debounce[path] = event.Op
	w.debounceMu.Unlock()
}

// processDebounced processes debounced file events periodically.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flushDebounced(ctx)
		}
	}
}

// flushDebounced processes all pending debounced events.
func (w *Watcher) flushDebounced(ctx context.Context) {
	w.debounceMu.Lock()
	if len(w.debounce) == 0 {
		w.debounceMu.Unlock()
		return
	}

	events := w.debounce
	w.debounce = make(map[string]fsnotify.Op)
	w.debounceMu.Unlock()

	for path, op := range events {
		select {
		case <-ctx.Done():
			return
		default:
		}

		relPath, _ := filepath.Rel(w.root, path)

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			removed, err := w.deleteDocument(relPath)
			if err != nil {
				log.Error("Failed to remove document", "path", relPath, "error", err)
			} else if removed {
				w.onEvent("delete", relPath)
				log.Info("Removed from knowledge base", "file", relPath)
			}
		} else if op.Has(fsnotify.Create) || op.Has(fsnotify.Write) {
			ingested, err := w.ingestFile(ctx, path, relPath)
			if err != nil {
				log.Error("Failed to ingest document", "path", relPath, "error", err)
			} else if ingested {
				w.onEvent("ingest", relPath)
				log.Info("Ingested", "file", relPath)
			}
		}
	}
}

// ingestFile replaces the document named relPath with the file's current
// content. Unchanged files (same content hash) are left alone.
func (w *Watcher) ingestFile(ctx context.Context, path, relPath string) (bool, error) {
	if w.maxFileSize > 0 {
		if info, err := os.Stat(path); err != nil || info.Size() > w.maxFileSize {
			return false, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	existing, err := w.engine.FindDocumentByName(relPath)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if existing.Hash == knowledge.HashContent(data) {
			return false, nil
		}
		if _, err := w.engine.DeleteDocument(existing.ID); err != nil {
			return false, err
		}
	}

	_, err = w.engine.Ingest(ctx, relPath, loader.DetectMIMEType(relPath, ""), data)
	if err != nil {
		return false, err
	}
	return true, nil
}

// deleteDocument removes the document named relPath, if present.
func (w *Watcher) deleteDocument(relPath string) (bool, error) {
	doc, err := w.engine.FindDocumentByName(relPath)
	if err != nil || doc == nil {
		return false, err
	}

	if _, err := w.engine.DeleteDocument(doc.ID); err != nil {
		return false, err
	}
	return true, nil
}

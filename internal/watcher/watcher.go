// Package watcher watches the attachment root in development mode and
// triggers a reindex of the owning initiative when files change on disk.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches the attachment root and debounces file events into
// per-initiative reindex callbacks. Attachment objects live under
// <root>/<ownerID>/<initiativeID>/..., so the second path segment names the
// initiative to reindex.
type Watcher struct {
	root      string
	onReindex func(initiativeID string)
	debounce  time.Duration
	watcher   *fsnotify.Watcher

	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	started     bool
	done        chan struct{}
	stopOnce    sync.Once
	logger      *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the debounce interval, for tests.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over root. onReindex is called with an
// initiative ID after events under that initiative's directory settle.
func NewWatcher(root string, onReindex func(initiativeID string), opts ...Option) *Watcher {
	w := &Watcher{
		root:        root,
		onReindex:   onReindex,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	if err := w.addTreeLocked(w.root); err != nil {
		_ = w.watcher.Close()
		w.watcher = nil
		w.started = false
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	if w.logger != nil {
		w.logger.Debug("watcher started", zap.String("root", w.root))
	}
	go w.run(ctx, watcher)
	return nil
}

// addTreeLocked watches root and every directory below it, creating root if
// it does not exist yet.
func (w *Watcher) addTreeLocked(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// run drains the event loop. It reads from its own reference to the fsnotify
// watcher, not the struct field, so Stop can nil the field without racing the
// channel reads; Close makes both channels return !ok and the loop exits.
func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	}
	switch {
	case ev.Op.Has(fsnotify.Create):
		// New owner or initiative directories must be watched as they appear.
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			if w.watcher != nil {
				_ = w.addTreeLocked(ev.Name)
			}
			w.mu.Unlock()
			return
		}
		w.scheduleReindex(ev.Name)
	case ev.Op.Has(fsnotify.Write), ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.scheduleReindex(ev.Name)
	}
}

// initiativeID maps an event path to the initiative owning it: the second
// segment below the root. Events directly under the root or an owner
// directory carry no initiative and are ignored.
func (w *Watcher) initiativeID(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

func (w *Watcher) scheduleReindex(path string) {
	id := w.initiativeID(path)
	if id == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[id]; ok {
		t.Stop()
	}
	w.debounceMap[id] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, id)
		logger := w.logger
		w.mu.Unlock()
		if logger != nil {
			logger.Debug("watcher reindexing initiative (debounced)", zap.String("initiative_id", id))
		}
		if w.onReindex != nil {
			w.onReindex(id)
		}
	})
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for id, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, id)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

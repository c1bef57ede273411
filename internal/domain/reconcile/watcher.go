package reconcile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ganot/feeflow/internal/domain/status"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes directly below the base path and the canonical
// roots. Bursts of events are collected and delivered once per debounce
// interval.
type Watcher struct {
	base     string
	folders  *status.FolderMap
	debounce time.Duration
	notify   func(paths []string)
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	started bool
	done    chan struct{}
}

// NewWatcher creates a watcher. notify is called from the watcher goroutine
// with the changed paths, sorted.
func NewWatcher(base string, folders *status.FolderMap, debounce time.Duration, notify func(paths []string), logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		base:     filepath.Clean(base),
		folders:  folders,
		debounce: debounce,
		notify:   notify,
		watcher:  fsw,
		logger:   logger,
		pending:  make(map[string]fsnotify.Op),
		done:     make(chan struct{}),
	}, nil
}

// ScheduleTrigger returns a notify func that asks sched for a watch scan.
func ScheduleTrigger(sched *Schedule) func([]string) {
	return func([]string) { sched.Trigger(TriggerWatch) }
}

// Start adds watches on the base path and every existing root and begins
// processing events.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.base); err != nil {
		return err
	}
	for _, root := range w.folders.Roots() {
		w.addRoot(filepath.Join(w.base, string(root)))
	}

	w.started = true
	go w.processEvents(ctx)

	w.logger.Info("folder watcher started", "base", w.base, "debounce", w.debounce)
	return nil
}

// Stop closes the underlying watcher and waits for the event loop to exit.
// It is safe to call when Start failed or was never called.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	if w.started {
		<-w.done
	}
	return err
}

func (w *Watcher) addRoot(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("failed to watch root", "path", path, "error", err)
		return
	}
	w.logger.Debug("watching root", "path", path)
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// handleEvent keeps events for root entries and for the roots themselves.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	parent := filepath.Dir(event.Name)
	name := filepath.Base(event.Name)

	switch {
	case parent == w.base:
		if !w.folders.IsRoot(name) {
			return
		}
		if event.Has(fsnotify.Create) {
			w.addRoot(event.Name)
		}
	case filepath.Dir(parent) == w.base && w.folders.IsRoot(filepath.Base(parent)):
	default:
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] |= event.Op
	w.pendingMu.Unlock()
}

func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	sort.Strings(paths)
	w.logger.Debug("folder changes detected", "count", len(paths))
	if w.notify != nil {
		w.notify(paths)
	}
}

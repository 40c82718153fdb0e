package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches one folder tree recursively.
type Watcher struct {
	opts      Options
	logger    *slog.Logger
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	errors    chan error
	stopCh    chan struct{}
	root      string

	mu      sync.Mutex
	stopped bool
}

// New creates a watcher. It uses fsnotify unless that fails to initialise
// or opts.ForcePolling is set.
func New(opts Options) *Watcher {
	opts = opts.WithDefaults()
	w := &Watcher{
		opts:      opts,
		logger:    opts.Logger,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize, opts.Logger),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.logger.Warn("fsnotify unavailable, falling back to polling",
				slog.String("error", err.Error()))
		} else {
			w.fs = fsw
		}
	}
	return w
}

// Mode returns "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.fs != nil {
		return "fsnotify"
	}
	return "polling"
}

// Root returns the absolute watched path once Start has been called.
func (w *Watcher) Root() string {
	return w.root
}

// Events returns debounced batches. The channel closes when the watcher stops.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start watches path until ctx is cancelled or Stop is called.
// It returns ctx.Err() on cancellation and nil after Stop.
func (w *Watcher) Start(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", abs)
	}
	w.root = abs

	w.logger.Info("watch_started",
		slog.String("root", abs),
		slog.String("mode", w.Mode()))

	if w.fs != nil {
		return w.runFsnotify(ctx)
	}
	return w.runPolling(ctx)
}

func (w *Watcher) runFsnotify(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !isHidden(rel) {
				if err := w.addRecursive(ev.Name); err != nil {
					w.emitError(err)
				}
			}
			return
		}
	}
	if !w.opts.Filter(rel) {
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}
	w.debouncer.Add(FileEvent{Path: rel, Operation: op, Timestamp: time.Now()})
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(w.root, path); rel != "." && isHidden(rel) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

type snapshot struct {
	modTime time.Time
	size    int64
}

func (w *Watcher) runPolling(ctx context.Context) error {
	state := w.scan()
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			next := w.scan()
			w.diff(state, next)
			state = next
		}
	}
}

// scan records the state of every relevant file under the root.
func (w *Watcher) scan() map[string]snapshot {
	state := make(map[string]snapshot)
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if isHidden(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.opts.Filter(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[rel] = snapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return state
}

func (w *Watcher) diff(prev, next map[string]snapshot) {
	now := time.Now()
	for rel, cur := range next {
		old, ok := prev[rel]
		switch {
		case !ok:
			w.debouncer.Add(FileEvent{Path: rel, Operation: OpCreate, Timestamp: now})
		case !old.modTime.Equal(cur.modTime) || old.size != cur.size:
			w.debouncer.Add(FileEvent{Path: rel, Operation: OpModify, Timestamp: now})
		}
	}
	for rel := range prev {
		if _, ok := next[rel]; !ok {
			w.debouncer.Add(FileEvent{Path: rel, Operation: OpDelete, Timestamp: now})
		}
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
		w.logger.Warn("watcher error dropped", slog.String("error", err.Error()))
	}
}

// Stop stops the watcher and releases resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fs != nil {
		_ = w.fs.Close()
	}
	close(w.errors)
	return nil
}

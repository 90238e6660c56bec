// Package watch recomputes items when files they depend on change.
//
// Watching is best effort. Watcher errors are logged and never stop the
// bar; a path that cannot be watched simply never triggers.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of events such as editors writing a file
// in several steps.
const DefaultDebounce = 100 * time.Millisecond

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove | fsnotify.Chmod

// RefreshFunc recomputes the items at the given indices.
type RefreshFunc func(ctx context.Context, indices []int)

// Watcher maps file paths to the items that watch them.
type Watcher struct {
	targets  map[string][]int
	refresh  RefreshFunc
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[int]struct{}
	timer   *time.Timer

	done chan struct{}
}

// New creates a Watcher. paths[i] lists the files watched by item i.
func New(paths [][]string, refresh RefreshFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	targets := make(map[string][]int)
	for i, list := range paths {
		for _, p := range list {
			if p == "" {
				continue
			}
			if abs, err := filepath.Abs(p); err == nil {
				p = abs
			}
			p = filepath.Clean(p)
			targets[p] = append(targets[p], i)
		}
	}

	return &Watcher{
		targets:  targets,
		refresh:  refresh,
		debounce: DefaultDebounce,
		logger:   logger,
		pending:  make(map[int]struct{}),
		done:     make(chan struct{}),
	}
}

// Empty reports whether no item watches any path.
func (w *Watcher) Empty() bool {
	return len(w.targets) == 0
}

// SetDebounce overrides the debounce window. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start installs the file watches and processes events in the background
// until ctx is done. Parent directories are watched so that files replaced
// by rename are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	dirs := make(map[string]struct{})
	for p := range w.targets {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			w.logger.Warn("cannot watch directory", "dir", dir, "error", err)
		}
	}

	go w.loop(ctx, fw)
	return nil
}

// Done is closed once the watcher has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer close(w.done)
	defer func() { _ = fw.Close() }()
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&relevantOps == 0 {
				continue
			}
			if indices, hit := w.targets[filepath.Clean(ev.Name)]; hit {
				w.logger.Debug("watched file changed", "path", ev.Name, "op", ev.Op.String())
				w.schedule(ctx, indices)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "error", err)
		}
	}
}

// schedule adds indices to the pending set and restarts the debounce timer.
func (w *Watcher) schedule(ctx context.Context, indices []int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, i := range indices {
		w.pending[i] = struct{}{}
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(ctx) })
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	indices := make([]int, 0, len(w.pending))
	for i := range w.pending {
		indices = append(indices, i)
	}
	w.pending = make(map[int]struct{})
	w.mu.Unlock()

	if len(indices) == 0 || ctx.Err() != nil {
		return
	}
	sort.Ints(indices)
	w.refresh(ctx, indices)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

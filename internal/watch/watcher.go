// Package watch triggers incremental reindexing from filesystem events.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last relevant event before
// a reindex runs
const DefaultDebounce = 500 * time.Millisecond

// ReindexFunc runs one reindex pass
type ReindexFunc func(ctx context.Context) error

// Watcher debounces source file changes below a project root into reindex
// calls.
type Watcher struct {
	root     string
	reindex  ReindexFunc
	relevant func(path string) bool
	excluded map[string]bool
	debounce time.Duration
	retry    error
	logger   *slog.Logger
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter limits triggering events to files for which relevant returns
// true. Directory events are always handled.
func WithFilter(relevant func(path string) bool) Option {
	return func(w *Watcher) { w.relevant = relevant }
}

// WithExcludedDirs skips directories by name in addition to hidden ones
func WithExcludedDirs(dirs []string) Option {
	return func(w *Watcher) {
		w.excluded = make(map[string]bool, len(dirs))
		for _, d := range dirs {
			w.excluded[d] = true
		}
	}
}

// WithRetryOn reschedules a pass that failed with err (compared with
// errors.Is) instead of logging it
func WithRetryOn(err error) Option {
	return func(w *Watcher) { w.retry = err }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func New(root string, reindex ReindexFunc, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		reindex:  reindex,
		relevant: func(string) bool { return true },
		excluded: map[string]bool{},
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. New directories created at runtime
// are added to the watch list.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := w.addDirsRecursive(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", w.root))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false
	schedule := func() {
		timer.Reset(w.debounce)
		pending = true
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("watcher: stopped")
			return nil

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := w.reindex(ctx); err != nil {
				if w.retry != nil && errors.Is(err, w.retry) {
					w.logger.Debug("watcher: reindex busy, rescheduling")
					schedule()
					continue
				}
				w.logger.Warn("watcher: reindex failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handle(fw, ev) {
				schedule()
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handle reports whether ev should trigger a reindex
func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if w.skipName(filepath.Base(ev.Name)) {
		return false
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addDirsRecursive(fw, ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			return true
		}
	}

	// Removed or renamed directories cannot be told apart from files here
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && filepath.Ext(ev.Name) == "" {
		return true
	}
	return w.relevant(ev.Name)
}

func (w *Watcher) skipName(name string) bool {
	return strings.HasPrefix(name, ".") || w.excluded[name]
}

// addDirsRecursive adds root and its non-skipped subdirectories
func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skipName(d.Name()) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

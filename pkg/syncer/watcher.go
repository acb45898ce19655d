package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/engram/pkg/logger"
)

const (
	// DefaultDebounce is the quiet period after the last change before a
	// run is triggered.
	DefaultDebounce = 5 * time.Second

	// maxWatchDirs caps the directories registered per watcher.
	maxWatchDirs = 1024
)

// Watcher triggers a callback whenever the watched source directories stop
// changing for the debounce period.
type Watcher struct {
	roots    []string
	debounce time.Duration
	logger   *slog.Logger
}

type WatcherConfig struct {
	// Roots are directories or files. A file is watched through its parent
	// directory; missing roots are skipped.
	Roots []string

	Debounce time.Duration
	Logger   *slog.Logger
}

func NewWatcher(c WatcherConfig) *Watcher {
	w := &Watcher{
		roots:    c.Roots,
		debounce: c.Debounce,
		logger:   c.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = logger.Nop()
	}
	return w
}

// Watch blocks until ctx is done, calling fn after each burst of changes.
// fn runs on the watching goroutine, so changes made while it runs are
// batched into the next call.
func (w *Watcher) Watch(ctx context.Context, fn func(context.Context)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	added := 0
	for _, root := range w.roots {
		added += w.addTree(fw, root, maxWatchDirs-added)
	}
	if added == 0 {
		return fmt.Errorf("none of the source directories exist")
	}
	w.logger.Debug("watching source directories", "count", added)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addTree(fw, event.Name, maxWatchDirs-len(fw.WatchList()))
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			fn(ctx)
		}
	}
}

// addTree registers root and the directories beneath it, at most limit of
// them, and returns how many were added.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string, limit int) int {
	info, err := os.Stat(root)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		root = filepath.Dir(root)
	}

	added := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if added >= limit {
			return filepath.SkipAll
		}
		if err := fw.Add(path); err != nil {
			w.logger.Debug("cannot watch directory", "path", path, "error", err)
			return nil
		}
		added++
		return nil
	})
	return added
}

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the configuration file and triggers reloads on
// change. Writes are debounced so editors that truncate-then-write do
// not trigger a reload storm.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher builds a watcher for the config file at path.
func NewWatcher(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		path:     path,
		debounce: 200 * time.Millisecond,
		watcher:  w,
	}, nil
}

// Watch blocks until the context is cancelled, invoking onReload after
// each settled change to the config file. A failed reload keeps the
// previous configuration and the watch alive.
func (w *Watcher) Watch(ctx context.Context, onReload func() error) error {
	// Watch the directory, not the file: many editors replace the file
	// on save, which drops a file-level watch.
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	slog.Info("config watcher started", "path", w.path)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := onReload(); err != nil {
				slog.Error("config reload failed, keeping previous", "error", err)
				continue
			}
			slog.Info("config reloaded", "path", w.path)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

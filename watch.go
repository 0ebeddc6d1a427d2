package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aktagon/feedwatch/internal/logger"
)

// settingsWatcher reports changes to a single file. It watches the parent
// directory so editors that replace the file on save are still seen.
type settingsWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	log      logger.Logger
}

func newSettingsWatcher(path string, debounce time.Duration, log logger.Logger) (*settingsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &settingsWatcher{
		watcher:  watcher,
		path:     filepath.Clean(path),
		debounce: debounce,
		log:      log,
	}, nil
}

// Run calls onChange once per burst of writes to the file, after debounce has
// passed without further events. It returns when ctx is done. Errors from
// onChange are logged and watching continues.
func (w *settingsWatcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.log.Debug("settings changed", logger.String("path", w.path), logger.String("op", event.Op.String()))
			fire = time.After(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", logger.Error(err))

		case <-fire:
			fire = nil
			if err := onChange(ctx); err != nil {
				w.log.Error("re-run after settings change failed", logger.Error(err))
			}
		}
	}
}

func (w *settingsWatcher) Close() error {
	return w.watcher.Close()
}

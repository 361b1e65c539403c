package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/agentforge/logging"
)

const debounceDelay = 100 * time.Millisecond

// WatchFile signals on the returned channel whenever path is written or
// recreated. Bursts of events are coalesced. The channel is closed when ctx
// is done.
func WatchFile(ctx context.Context, path string, logger logging.Logger) (<-chan struct{}, error) {
	logger = logging.OrNoOp(logger)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory; editors often replace files instead of writing them.
	dir := filepath.Dir(absPath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	ch := make(chan struct{}, 1)

	go watchLoop(ctx, watcher, absPath, ch, logger)

	logger.Info("config.watch.started", "path", absPath)

	return ch, nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, ch chan<- struct{}, logger logging.Logger) {
	defer close(ch)
	defer watcher.Close()

	base := filepath.Base(path)

	timer := time.NewTimer(debounceDelay)
	timer.Stop()

	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != base {
				continue
			}

			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				timer.Reset(debounceDelay)
			case event.Has(fsnotify.Remove):
				logger.Warn("config.watch.removed", "path", path)
			}

		case <-timer.C:
			select {
			case ch <- struct{}{}:
				logger.Debug("config.watch.changed", "path", path)
			default:
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			logger.Error("config.watch.error", "path", path, "error", err.Error())
		}
	}
}

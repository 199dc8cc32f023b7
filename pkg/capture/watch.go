package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/video-system/go-tether/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// WatchConfig calls onChange with the re-parsed configuration whenever the
// file at path is written or replaced, until ctx is cancelled. The parent
// directory is watched so editors that save by rename are seen. Invalid
// files are logged and skipped.
func WatchConfig(ctx context.Context, path string, onChange func(*Config)) error {
	logger := log.WithComponent("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	logger.Info().Str("path", abs).Msg("watching config file for changes")

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce = time.After(reloadDebounce)
			}

		case <-debounce:
			debounce = nil
			cfg, err := LoadConfig(abs)
			if err != nil {
				logger.Error().Err(err).Msg("config reload failed")
				continue
			}
			logger.Info().Msg("config reloaded")
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("config watcher error")
		}
	}
}

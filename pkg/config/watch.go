package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/LagoAI/LiebExplorer/pkg/logging"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads m whenever the file behind path changes and then calls
// onChange. It returns once the watcher is running; watching stops when
// ctx is done. Reload errors are logged and the previous values stay in
// effect for sections that failed to apply.
func Watch(ctx context.Context, m *Manager, path string, logger logging.Interface, onChange func(*Manager)) error {
	if logger == nil {
		logger = logging.Nop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				if err := m.LoadAll(); err != nil {
					logger.Warnf("Config reload of %s failed: %v", abs, err)
					continue
				}
				logger.Infof("Reloaded configuration from %s", abs)
				if onChange != nil {
					onChange(m)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("Config watcher error: %v", err)
			}
		}
	}()
	return nil
}

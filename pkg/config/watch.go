package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration file whenever it changes and passes every
// successfully loaded and validated config to fn. Invalid edits and watcher
// errors go to onError, which may be nil, and are otherwise ignored. Watch
// blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors which
// save by renaming a temp file over the config are picked up.
func Watch(ctx context.Context, path string, fn func(*Config), onError func(error)) error {
	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != abs || e.Op == fsnotify.Chmod {
				continue
			}
			// Editors often emit several events per save.
			drainUntilSilence(w, 100*time.Millisecond)

			cfg, err := LoadConfig(abs)
			if err != nil {
				report(fmt.Errorf("reload failed: %w", err))
				continue
			}
			if err := cfg.Validate(); err != nil {
				report(fmt.Errorf("ignoring invalid configuration: %w", err))
				continue
			}
			fn(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			report(fmt.Errorf("watcher error: %w", err))
		}
	}
}

// drainUntilSilence reads from w.Events until the channel has been silent
// for silenceDur.
func drainUntilSilence(w *fsnotify.Watcher, silenceDur time.Duration) {
	timer := time.NewTimer(silenceDur)
	defer timer.Stop()
	for {
		select {
		case <-w.Events:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(silenceDur)
		case <-timer.C:
			return
		}
	}
}

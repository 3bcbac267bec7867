package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange with the reloaded Config each time the file at path is
// written or replaced. Reload failures are logged and skipped. Watch runs
// until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// The parent directory is watched so atomic renames are seen.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	slog.Info("agent config: watching for changes", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("agent config: watcher error", "err", err)

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				slog.Error("agent config: reload failed, keeping previous config", "err", err)
				continue
			}
			onChange(cfg)
		}
	}
}

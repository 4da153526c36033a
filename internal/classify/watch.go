package classify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads c whenever the vocabulary file at path changes. It blocks until ctx is done.
// The parent directory is watched so editors that replace the file are handled.
func Watch(ctx context.Context, path string, c *Classifier, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create vocabulary watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			v, err := LoadVocabulary(target)
			if err != nil {
				logger.Warn("vocabulary reload failed", "path", target, "error", err)
				continue
			}
			c.Reload(v)
			logger.Info("vocabulary reloaded", "path", target, "domain_terms", len(v.Domain), "anomaly_terms", len(v.Anomaly))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("vocabulary watcher error", "error", err)
		}
	}
}

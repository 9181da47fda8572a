// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/log"
)

// Watch reloads the file whenever it changes and passes each valid
// configuration to fn. Invalid edits are logged and skipped. It blocks until
// the context ends.
func (l Loader) Watch(
	ctx context.Context,
	path string,
	fn func(*Config),
) error {
	logger := log.Wrap(l.Logger).With(slog.String("path", path))

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Config("path", path, err.Error())
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Normalize(err, "config watch")
	}
	defer watcher.Close()

	// Editors replace files rather than writing them, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return errors.Normalize(err, "config watch")
	}

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != abs {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) &&
				!evt.Has(fsnotify.Rename) {
				continue
			}

			// Truncating writes show up as an empty file first.
			if info, err := os.Stat(abs); err != nil || info.Size() == 0 {
				continue
			}

			cfg, err := l.Load(abs)
			if err != nil {
				logger.Err(ctx, "config reload failed", err)
				continue
			}
			logger.Info(ctx, "config reloaded")
			fn(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(ctx, "config watch error", slog.String("error", err.Error()))

		case <-ctx.Done():
			return errors.Context(ctx, "config watch")
		}
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watch reloads a timeline document whenever it is saved.
package watch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/timeline"
)

// Timeline watches path and calls fn with every version that loads and
// validates. Invalid saves are logged and skipped. The parent directory is
// watched so editors that replace the file by rename are followed. Timeline
// blocks until ctx is done.
func Timeline(ctx context.Context, path string, fn func(timeline.Timeline)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve timeline path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch timeline dir: %w", err)
	}

	logger := xlog.WithComponent("watch").With().Str(xlog.FieldPath, abs).Logger()
	logger.Info().Str(xlog.FieldEvent, "watch.started").Msg("watching timeline for changes")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str(xlog.FieldEvent, "watch.stopped").Msg("timeline watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			// Write and Create cover in-place saves and rename-replace.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			reload(logger, abs, event, fn)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Str(xlog.FieldEvent, "watch.error").Msg("timeline watcher error")
		}
	}
}

func reload(logger zerolog.Logger, path string, event fsnotify.Event, fn func(timeline.Timeline)) {
	tl, err := timeline.LoadFile(path)
	if err != nil {
		logger.Warn().Err(err).
			Str(xlog.FieldEvent, "watch.reload_failed").
			Str("op", event.Op.String()).
			Msg("timeline changed but does not load")
		return
	}
	logger.Debug().Str(xlog.FieldEvent, "watch.reloaded").Str("op", event.Op.String()).Msg("timeline reloaded")
	fn(tl)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rotation

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceWindow collapses editor write bursts into one reload.
const debounceWindow = 2 * time.Second

// Watcher reloads playlists automatically when the playlist directory
// changes. The explicit reload-playlists command stays authoritative; this
// just saves operators from having to issue it after every edit.
type Watcher struct {
	dir    string
	svc    *Service
	logger zerolog.Logger
}

// NewWatcher creates a playlist directory watcher.
func NewWatcher(dir string, svc *Service, logger zerolog.Logger) *Watcher {
	return &Watcher{
		dir:    dir,
		svc:    svc,
		logger: logger.With().Str("component", "watcher").Logger(),
	}
}

// Run watches until ctx ends. Only m3u8 changes schedule a reload, and
// rapid successive events collapse into one.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info().Str("dir", w.dir).Msg("watching playlist directory")

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isPlaylistFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
				debounceC = debounce.C
			} else {
				debounce.Reset(debounceWindow)
			}

		case <-debounceC:
			debounce = nil
			debounceC = nil
			w.logger.Info().Msg("playlist directory changed, reloading")
			if err := w.svc.ReloadPlaylists(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("automatic reload failed, keeping previous playlists")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

func isPlaylistFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".m3u8")
}

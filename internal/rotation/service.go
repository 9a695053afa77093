/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package rotation is the atomic surface over the playlist store, the
// special scheduler, and the tag cache. Every mutating operation reachable
// from a client command or a background task commits under one mutex, so no
// two operations ever interleave their intermediate state. Anything that
// can block (tag reads, disk scans) runs outside the lock; only the commit
// happens inside.
package rotation

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/cache"
	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/playlist"
	"github.com/friendsincode/bragi/internal/schedule"
	"github.com/friendsincode/bragi/internal/tags"
	"github.com/friendsincode/bragi/internal/telemetry"
)

// Scanner produces the current on-disk playlist set.
type Scanner func() (map[string][]string, error)

// NowPlaying describes the most recently served track.
type NowPlaying struct {
	Path   string    `json:"path"`
	Kind   string    `json:"kind"` // "playlist" or "special"
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// Status is a point-in-time snapshot for the admin API.
type Status struct {
	CurrentPlaylist string              `json:"current_playlist,omitempty"`
	Playlists       []playlist.Info     `json:"playlists"`
	SpecialEnabled  []schedule.Category `json:"special_enabled"`
	SpecialInterval string              `json:"special_interval"`
	LastEmission    time.Time           `json:"last_emission"`
	TagEntries      int                 `json:"tag_entries"`
	NowPlaying      *NowPlaying         `json:"now_playing,omitempty"`
}

// PreviewTrack pairs an upcoming track path with its cached metadata.
type PreviewTrack struct {
	Path string
	Meta tags.Metadata
}

// Options carries the service's collaborators.
type Options struct {
	Store     *playlist.Store
	Scheduler *schedule.Scheduler
	TagCache  *tags.Cache
	Reader    tags.Reader
	SideCache *cache.Cache // optional Redis layer, may be nil
	Scan      Scanner
	Bus       *events.Bus
	Logger    zerolog.Logger
}

// Service implements the daemon's operations.
type Service struct {
	mu     sync.Mutex
	store  *playlist.Store
	sched  *schedule.Scheduler
	tcache *tags.Cache
	reader tags.Reader
	side   *cache.Cache
	scan   Scanner
	bus    *events.Bus
	logger zerolog.Logger

	nowPlaying *NowPlaying
}

// New creates the rotation service.
func New(opts Options) *Service {
	return &Service{
		store:  opts.Store,
		sched:  opts.Scheduler,
		tcache: opts.TagCache,
		reader: opts.Reader,
		side:   opts.SideCache,
		scan:   opts.Scan,
		bus:    opts.Bus,
		logger: opts.Logger.With().Str("component", "rotation").Logger(),
	}
}

// Bootstrap performs the initial disk load. Failure here is fatal for the
// daemon: a radio with no playlists has nothing to play.
func (s *Service) Bootstrap() error {
	scan, err := s.scan()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Reload(scan); err != nil {
		return err
	}

	current, _ := s.store.CurrentName()
	s.logger.Info().
		Int("playlists", s.store.Len()).
		Str("current", current).
		Msg("playlists loaded")
	return nil
}

// NextTrack returns the path the mixer should play next. A due special
// announcement wins over the ordinary playlist; both decisions happen in
// one atomic step so a concurrent reload or switch cannot interleave.
func (s *Service) NextTrack(now time.Time) (string, error) {
	s.mu.Lock()
	if category, path, ok := s.sched.ShouldEmit(now); ok {
		s.nowPlaying = &NowPlaying{Path: path, Kind: "special", Source: string(category), At: now}
		s.mu.Unlock()

		telemetry.TracksServedTotal.WithLabelValues("special").Inc()
		telemetry.SpecialEmissionsTotal.WithLabelValues(string(category)).Inc()
		s.bus.Publish(events.EventSpecialEmitted, events.Payload{"category": string(category), "path": path})
		s.bus.Publish(events.EventNowPlaying, events.Payload{"path": path, "kind": "special", "source": string(category)})
		s.logger.Debug().Str("category", string(category)).Str("path", path).Msg("serving special announcement")
		return path, nil
	}

	track, name, err := s.store.AdvanceCurrent()
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.nowPlaying = &NowPlaying{Path: track, Kind: "playlist", Source: name, At: now}
	s.mu.Unlock()

	telemetry.TracksServedTotal.WithLabelValues("playlist").Inc()
	s.bus.Publish(events.EventNowPlaying, events.Payload{"path": track, "kind": "playlist", "source": name})
	return track, nil
}

// ListPlaylists returns all playlist names in sort order.
func (s *Service) ListPlaylists() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Names()
}

// CurrentPlaylist returns the active playlist name.
func (s *Service) CurrentPlaylist() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.CurrentName()
}

// SwitchPlaylist changes the active playlist without touching cursors.
func (s *Service) SwitchPlaylist(name string) error {
	s.mu.Lock()
	err := s.store.Switch(name)
	s.mu.Unlock()

	if err == nil {
		s.bus.Publish(events.EventPlaylistSwitch, events.Payload{"playlist": name})
		s.logger.Info().Str("playlist", name).Msg("switched playlist")
	}
	return err
}

// ShufflePlaylists re-permutes every playlist and resets every cursor.
func (s *Service) ShufflePlaylists() {
	s.mu.Lock()
	s.store.ShuffleAll()
	s.mu.Unlock()

	s.bus.Publish(events.EventPlaylistShuffle, events.Payload{})
	s.logger.Info().Msg("shuffled all playlists")
}

// ReloadPlaylists rescans the playlist directory and reconciles the store.
// The disk scan runs outside the lock; only the merge commits inside. New
// paths get their metadata merged into the tag cache afterwards.
func (s *Service) ReloadPlaylists(ctx context.Context) error {
	scan, err := s.scan()
	if err != nil {
		s.logger.Error().Err(err).Msg("playlist scan failed")
		telemetry.ReloadsTotal.WithLabelValues("scan_error").Inc()
		return playlist.ErrNoPlaylistsAvailable
	}

	s.mu.Lock()
	if err := s.store.Reload(scan); err != nil {
		s.mu.Unlock()
		telemetry.ReloadsTotal.WithLabelValues("no_playlists").Inc()
		return err
	}
	count := s.store.Len()
	missing := s.tcache.Missing(s.store.AllEntries())
	s.mu.Unlock()

	telemetry.ReloadsTotal.WithLabelValues("ok").Inc()
	s.bus.Publish(events.EventPlaylistReload, events.Payload{"playlists": count})
	s.logger.Info().Int("playlists", count).Int("new_tracks", len(missing)).Msg("playlists reloaded")

	// Merge refresh: fetch metadata for paths the cache has never seen.
	if len(missing) > 0 {
		fetched := s.fetchMeta(ctx, missing, true)
		s.mu.Lock()
		for path, meta := range fetched {
			if _, ok := s.tcache.Lookup(path); !ok {
				s.tcache.Insert(path, meta)
			}
		}
		telemetry.TagCacheSize.Set(float64(s.tcache.Len()))
		s.mu.Unlock()
	}

	return nil
}

// ReloadTags rebuilds the tag cache from scratch for every track reachable
// from the current playlists. Reads bypass the Redis layer so the rebuild
// reflects what is on disk right now.
func (s *Service) ReloadTags(ctx context.Context) {
	s.mu.Lock()
	paths := s.store.AllEntries()
	s.mu.Unlock()

	if s.side != nil {
		if err := s.side.FlushTrackMeta(ctx); err != nil {
			s.logger.Debug().Err(err).Msg("flushing metadata side-cache failed")
		}
	}

	fetched := s.fetchMeta(ctx, paths, false)

	s.mu.Lock()
	s.tcache.Clear()
	for path, meta := range fetched {
		s.tcache.Insert(path, meta)
	}
	entries := s.tcache.Len()
	telemetry.TagCacheSize.Set(float64(entries))
	s.mu.Unlock()

	s.bus.Publish(events.EventTagsReload, events.Payload{"entries": entries})
	s.logger.Info().Int("entries", entries).Msg("tag cache rebuilt")
}

// Preview returns the next count tracks of the named playlist with their
// metadata, fetching uncached tags on the way (outside the lock).
func (s *Service) Preview(ctx context.Context, name string, count int) ([]PreviewTrack, error) {
	s.mu.Lock()
	paths, err := s.store.Peek(name, count)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	missing := s.tcache.Missing(dedup(paths))
	s.mu.Unlock()

	if len(missing) > 0 {
		fetched := s.fetchMeta(ctx, missing, true)
		s.mu.Lock()
		for path, meta := range fetched {
			if _, ok := s.tcache.Lookup(path); !ok {
				s.tcache.Insert(path, meta)
			}
		}
		telemetry.TagCacheSize.Set(float64(s.tcache.Len()))
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PreviewTrack, 0, len(paths))
	for _, path := range paths {
		meta, _ := s.tcache.Lookup(path)
		out = append(out, PreviewTrack{Path: path, Meta: meta})
	}
	return out, nil
}

// RegisterGenerated records a freshly generated announcement file so the
// scheduler can serve it. Called by the clock and weather workers; never by
// client commands.
func (s *Service) RegisterGenerated(category schedule.Category, path string) {
	if _, err := os.Stat(path); err != nil {
		s.logger.Warn().Err(err).Str("category", string(category)).Str("path", path).
			Msg("generated file vanished before registration")
		return
	}

	s.mu.Lock()
	accepted := s.sched.RegisterGenerated(category, path)
	s.mu.Unlock()

	if !accepted {
		s.logger.Debug().Str("category", string(category)).Msg("ignoring file for disabled category")
		return
	}
	s.bus.Publish(events.EventSpecialGenerated, events.Payload{"category": string(category), "path": path})
	s.logger.Debug().Str("category", string(category)).Str("path", path).Msg("announcement registered")
}

// Status snapshots the daemon state for the admin API.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Playlists:       s.store.Snapshot(),
		SpecialEnabled:  s.sched.Enabled(),
		SpecialInterval: s.sched.Interval().String(),
		LastEmission:    s.sched.LastEmission(),
		TagEntries:      s.tcache.Len(),
	}
	if name, err := s.store.CurrentName(); err == nil {
		status.CurrentPlaylist = name
	}
	if s.nowPlaying != nil {
		copied := *s.nowPlaying
		status.NowPlaying = &copied
	}
	return status
}

// fetchMeta reads metadata for the given paths without holding the lock.
// With useSide set, the Redis side-cache is consulted first and updated
// write-through. Read failures become cached "unavailable" markers; the
// reader is never retried here.
func (s *Service) fetchMeta(ctx context.Context, paths []string, useSide bool) map[string]tags.Metadata {
	out := make(map[string]tags.Metadata, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		if useSide && s.side != nil {
			if meta, ok := s.side.GetTrackMeta(ctx, path); ok {
				telemetry.TagReadsTotal.WithLabelValues("redis_hit").Inc()
				out[path] = meta
				continue
			}
		}

		meta, err := s.reader.ReadTags(path)
		if err != nil {
			s.logger.Debug().Err(err).Str("path", path).Msg("tag read failed, caching unavailable marker")
			telemetry.TagReadsTotal.WithLabelValues("error").Inc()
			meta = tags.Metadata{}
		} else {
			telemetry.TagReadsTotal.WithLabelValues("ok").Inc()
		}
		out[path] = meta

		if s.side != nil {
			_ = s.side.SetTrackMeta(ctx, path, meta)
		}
	}
	return out
}

func dedup(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out
}

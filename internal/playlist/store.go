/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Store owns the set of named playlists and the name of the active one.
// It performs no locking of its own: callers serialize access (the rotation
// service holds one mutex over the store, the special scheduler, and the
// tag cache).
type Store struct {
	playlists map[string]*Playlist
	current   string
	rng       *rand.Rand
}

// NewStore creates an empty store with a randomly seeded shuffle source.
func NewStore() *Store {
	return NewStoreWithRand(seededRand())
}

// NewStoreWithRand creates an empty store using the given shuffle source.
func NewStoreWithRand(rng *rand.Rand) *Store {
	return &Store{playlists: make(map[string]*Playlist), rng: rng}
}

// Names returns all playlist names in sort order.
func (s *Store) Names() []string {
	names := lo.Keys(s.playlists)
	sort.Strings(names)
	return names
}

// Len returns the number of playlists.
func (s *Store) Len() int { return len(s.playlists) }

// CurrentName returns the name of the active playlist.
func (s *Store) CurrentName() (string, error) {
	if s.current == "" {
		return "", ErrEmptyStore
	}
	return s.current, nil
}

// AdvanceCurrent returns the active playlist's next track and moves its
// cursor forward. The playlist name is returned alongside the track for
// event reporting.
func (s *Store) AdvanceCurrent() (track, name string, err error) {
	if s.current == "" {
		return "", "", ErrEmptyStore
	}
	pl := s.playlists[s.current]
	if pl.Len() == 0 {
		return "", "", ErrEmptyStore
	}
	return pl.advance(), s.current, nil
}

// Switch makes the named playlist active. Cursors are untouched, so
// switching away and back resumes where the playlist left off.
func (s *Store) Switch(name string) error {
	if _, ok := s.playlists[name]; !ok {
		return ErrNoSuchPlaylist
	}
	s.current = name
	return nil
}

// ShuffleAll re-permutes every playlist independently and resets every
// cursor to the start.
func (s *Store) ShuffleAll() {
	for _, name := range s.Names() {
		s.playlists[name].shuffle(s.rng)
	}
}

// Peek returns up to count upcoming tracks of the named playlist, starting
// at its cursor and wrapping, without advancing anything.
func (s *Store) Peek(name string, count int) ([]string, error) {
	pl, ok := s.playlists[name]
	if !ok {
		return nil, ErrNoSuchPlaylist
	}
	return pl.peek(count), nil
}

// AllEntries returns the union of every playlist's entries, deduplicated
// and sorted.
func (s *Store) AllEntries() []string {
	seen := make(map[string]struct{})
	for _, pl := range s.playlists {
		for _, path := range pl.entries {
			seen[path] = struct{}{}
		}
	}
	paths := lo.Keys(seen)
	sort.Strings(paths)
	return paths
}

// Reload reconciles the store against a disk scan (name to ordered entry
// list, as read from the playlist files):
//
//   - names present on both sides merge: vanished paths are removed (cursor
//     shifted to stay on the same upcoming track where possible), new paths
//     are shuffled and appended, and the cursor otherwise survives;
//   - names only on disk become new playlists with shuffled entries;
//   - names only in memory are deleted.
//
// An empty scan performs no mutation and reports ErrNoPlaylistsAvailable.
// If the active playlist is deleted, the lowest remaining name in sort
// order takes over.
func (s *Store) Reload(scan map[string][]string) error {
	live := 0
	for _, entries := range scan {
		if len(entries) > 0 {
			live++
		}
	}
	if live == 0 {
		return ErrNoPlaylistsAvailable
	}

	for _, name := range sortedKeys(scan) {
		diskEntries := scan[name]
		if len(diskEntries) == 0 {
			continue
		}

		if existing, ok := s.playlists[name]; ok {
			added, removed := existing.diff(diskEntries)
			s.rng.Shuffle(len(added), func(i, j int) {
				added[i], added[j] = added[j], added[i]
			})
			existing.merge(added, removed)
			continue
		}

		fresh := newPlaylist(name, append([]string(nil), diskEntries...))
		fresh.shuffle(s.rng)
		s.playlists[name] = fresh
	}

	for _, name := range s.Names() {
		if entries, ok := scan[name]; !ok || len(entries) == 0 {
			delete(s.playlists, name)
		}
	}

	if _, ok := s.playlists[s.current]; !ok {
		s.current = ""
		if names := s.Names(); len(names) > 0 {
			s.current = names[0]
		}
	}

	return nil
}

// Info describes one playlist for status reporting.
type Info struct {
	Name   string `json:"name"`
	Length int    `json:"length"`
	Cursor int    `json:"cursor"`
}

// Snapshot returns per-playlist descriptions in name order.
func (s *Store) Snapshot() []Info {
	names := s.Names()
	return lo.Map(names, func(name string, _ int) Info {
		pl := s.playlists[name]
		return Info{Name: name, Length: pl.Len(), Cursor: pl.Cursor()}
	})
}

func sortedKeys(scan map[string][]string) []string {
	keys := lo.Keys(scan)
	sort.Strings(keys)
	return keys
}

func seededRand() *rand.Rand {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err == nil {
		return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(buf[:]))))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

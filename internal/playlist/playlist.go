/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlist implements the in-memory playlist store: named track
// sequences with independent playback cursors, shuffle, and disk
// reconciliation.
package playlist

import (
	"errors"
	"math/rand"
)

var (
	// ErrEmptyStore is returned when no playable playlist exists.
	ErrEmptyStore = errors.New("no playlists loaded")

	// ErrNoSuchPlaylist is returned when a named playlist is unknown.
	ErrNoSuchPlaylist = errors.New("no such playlist")

	// ErrNoPlaylistsAvailable is returned by a reload whose disk scan found
	// no playlist files. The store is left untouched.
	ErrNoPlaylistsAvailable = errors.New("no playlists available on disk")
)

// Playlist is a named ordered sequence of track paths plus the index of the
// next track an advance will return.
type Playlist struct {
	name    string
	entries []string
	cursor  int
}

func newPlaylist(name string, entries []string) *Playlist {
	return &Playlist{name: name, entries: entries}
}

// Name returns the playlist name.
func (p *Playlist) Name() string { return p.name }

// Len returns the number of entries.
func (p *Playlist) Len() int { return len(p.entries) }

// Cursor returns the index of the next track to be served.
func (p *Playlist) Cursor() int { return p.cursor }

// Entries returns a copy of the entry list.
func (p *Playlist) Entries() []string {
	return append([]string(nil), p.entries...)
}

// advance returns the track at the cursor and moves the cursor forward,
// wrapping at the end.
func (p *Playlist) advance() string {
	track := p.entries[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.entries)
	return track
}

// peek returns up to count tracks starting at the cursor, wrapping. A count
// larger than the playlist repeats entries, matching what playback would do.
func (p *Playlist) peek(count int) []string {
	if len(p.entries) == 0 || count <= 0 {
		return nil
	}
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, p.entries[(p.cursor+i)%len(p.entries)])
	}
	return out
}

// shuffle produces a uniform random permutation of the entries and resets
// the cursor to the start.
func (p *Playlist) shuffle(rng *rand.Rand) {
	rng.Shuffle(len(p.entries), func(i, j int) {
		p.entries[i], p.entries[j] = p.entries[j], p.entries[i]
	})
	p.cursor = 0
}

// diff computes the entry delta between this playlist and the given disk
// entry list: paths only on disk (added) and paths only in memory (removed).
func (p *Playlist) diff(disk []string) (added, removed []string) {
	diskSet := make(map[string]struct{}, len(disk))
	for _, path := range disk {
		diskSet[path] = struct{}{}
	}
	memSet := make(map[string]struct{}, len(p.entries))
	for _, path := range p.entries {
		memSet[path] = struct{}{}
	}

	for _, path := range disk {
		if _, ok := memSet[path]; !ok {
			added = append(added, path)
		}
	}
	for _, path := range p.entries {
		if _, ok := diskSet[path]; !ok {
			removed = append(removed, path)
		}
	}
	return added, removed
}

// merge removes the removed paths and appends the added paths at the end.
// The cursor shifts down for every removal before it so the track it pointed
// at keeps playing next; when the pointed-at track itself is removed the
// cursor ends up on its old successor. If removals push the cursor out of
// range it resets to the start.
func (p *Playlist) merge(added, removed []string) {
	removedSet := make(map[string]struct{}, len(removed))
	for _, path := range removed {
		removedSet[path] = struct{}{}
	}

	kept := make([]string, 0, len(p.entries)+len(added))
	cursor := p.cursor
	for idx, path := range p.entries {
		if _, drop := removedSet[path]; drop {
			if idx < p.cursor {
				cursor--
			}
			continue
		}
		kept = append(kept, path)
	}
	kept = append(kept, added...)

	if cursor < 0 || cursor >= len(kept) {
		cursor = 0
	}

	p.entries = kept
	p.cursor = cursor
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package tags caches track metadata (title/artist) keyed by track path.
package tags

import (
	"fmt"
	"os"

	"github.com/dhowden/tag"
)

// Metadata is the cached metadata for one track. Available is false when
// the track's tags could not be read; the marker is cached so the reader is
// not retried on every lookup.
type Metadata struct {
	Title     string
	Artist    string
	Available bool
}

// Reader reads metadata from an audio file.
type Reader interface {
	ReadTags(path string) (Metadata, error)
}

// FileReader reads ID3/MP4/FLAC style tags straight from the file.
type FileReader struct{}

// ReadTags opens the file and extracts title and artist.
func (FileReader) ReadTags(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("read tags from %s: %w", path, err)
	}

	return Metadata{Title: meta.Title(), Artist: meta.Artist(), Available: true}, nil
}

// Cache is the in-memory path to metadata mapping. It performs no locking;
// the rotation service serializes mutation under its shared lock.
type Cache struct {
	entries map[string]Metadata
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Metadata)}
}

// Lookup returns the cached metadata for path.
func (c *Cache) Lookup(path string) (Metadata, bool) {
	meta, ok := c.entries[path]
	return meta, ok
}

// Insert stores metadata for path, replacing any previous value.
func (c *Cache) Insert(path string, meta Metadata) {
	c.entries[path] = meta
}

// Missing returns the subset of paths with no cached entry, preserving
// order.
func (c *Cache) Missing(paths []string) []string {
	var missing []string
	for _, path := range paths {
		if _, ok := c.entries[path]; !ok {
			missing = append(missing, path)
		}
	}
	return missing
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.entries = make(map[string]Metadata)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return len(c.entries) }

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ScanDir reads every *.m3u8 file in dir and returns playlist name (the
// file's base name without extension) to the ordered absolute track paths
// it lists. A playlist file that fails to parse is logged and skipped so a
// single bad file cannot poison a reload; only a directory read failure is
// an error.
func ScanDir(dir string, logger zerolog.Logger) (map[string][]string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read playlist directory: %w", err)
	}

	scan := make(map[string][]string)
	for _, dirent := range dirents {
		if dirent.IsDir() || !strings.EqualFold(filepath.Ext(dirent.Name()), ".m3u8") {
			continue
		}

		path := filepath.Join(dir, dirent.Name())
		entries, err := parseM3U(path)
		if err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("skipping unreadable playlist file")
			continue
		}

		name := strings.TrimSuffix(dirent.Name(), filepath.Ext(dirent.Name()))
		scan[name] = entries
	}

	return scan, nil
}

// parseM3U reads an M3U8 playlist. Relative entries resolve against the
// playlist file's directory; blank lines and # directives are skipped.
// Missing files and duplicate entries reject the whole playlist.
func parseM3U(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve playlist directory: %w", err)
	}

	var entries []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry := line
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(base, entry)
		}
		entry = filepath.Clean(entry)

		info, err := os.Stat(entry)
		if err != nil || !info.Mode().IsRegular() {
			return nil, fmt.Errorf("entry %s is not a file", entry)
		}
		if _, dup := seen[entry]; dup {
			return nil, fmt.Errorf("entry %s is a duplicate", entry)
		}

		seen[entry] = struct{}{}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries in %s", path)
	}
	return entries, nil
}

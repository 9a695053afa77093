/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package control implements the line-oriented JSON command protocol served
// on the daemon's UNIX socket.
package control

import (
	"encoding/json"
	"errors"
	"unicode/utf8"
)

// Command names accepted on the wire.
type Command string

const (
	CmdNextTrack        Command = "next-track"
	CmdListPlaylists    Command = "list-playlists"
	CmdGetPlaylist      Command = "get-playlist"
	CmdSwitchPlaylist   Command = "switch-playlist"
	CmdReloadPlaylists  Command = "reload-playlists"
	CmdReloadTags       Command = "reload-tags"
	CmdShufflePlaylists Command = "shuffle-playlists"
	CmdPreviewPlaylist  Command = "preview-playlist"
)

const (
	// DefaultPreviewCount is used when preview-playlist omits count.
	DefaultPreviewCount = 5
	// MaxPreviewCount caps the count a client may request.
	MaxPreviewCount = 50
)

// Protocol-level parse failures. Each maps to exactly one generic wire
// status; the connection stays open after any of them.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidParameter = errors.New("invalid parameter")
)

var knownCommands = map[Command]bool{
	CmdNextTrack:        true,
	CmdListPlaylists:    true,
	CmdGetPlaylist:      true,
	CmdSwitchPlaylist:   true,
	CmdReloadPlaylists:  true,
	CmdReloadTags:       true,
	CmdShufflePlaylists: true,
	CmdPreviewPlaylist:  true,
}

// Request is one parsed and validated client command.
type Request struct {
	Command  Command
	Playlist string // switch-playlist, preview-playlist
	Count    int    // preview-playlist
}

// ParseLine validates one wire line. Checks run in a fixed order and the
// first failure wins: the bytes must be UTF-8, the line must be a single
// JSON object, "command" must be a string, the string must name a known
// command, and command-specific parameters must be present with the right
// types. Parsing never touches shared state.
func ParseLine(line []byte) (Request, error) {
	if !utf8.Valid(line) {
		return Request{}, ErrInvalidRequest
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Request{}, ErrInvalidRequest
	}

	rawCmd, ok := fields["command"]
	if !ok {
		return Request{}, ErrInvalidRequest
	}
	var name string
	if err := json.Unmarshal(rawCmd, &name); err != nil {
		return Request{}, ErrInvalidRequest
	}

	cmd := Command(name)
	if !knownCommands[cmd] {
		return Request{}, ErrUnknownCommand
	}

	req := Request{Command: cmd}
	switch cmd {
	case CmdSwitchPlaylist:
		playlist, err := stringParam(fields, "playlist")
		if err != nil {
			return Request{}, err
		}
		req.Playlist = playlist

	case CmdPreviewPlaylist:
		playlist, err := stringParam(fields, "playlist")
		if err != nil {
			return Request{}, err
		}
		req.Playlist = playlist

		req.Count = DefaultPreviewCount
		if rawCount, ok := fields["count"]; ok {
			var count int
			if err := json.Unmarshal(rawCount, &count); err != nil || count < 1 {
				return Request{}, ErrInvalidParameter
			}
			if count > MaxPreviewCount {
				count = MaxPreviewCount
			}
			req.Count = count
		}
	}

	return req, nil
}

func stringParam(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", ErrInvalidParameter
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil || value == "" {
		return "", ErrInvalidParameter
	}
	return value, nil
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/playlist"
	"github.com/friendsincode/bragi/internal/rotation"
	"github.com/friendsincode/bragi/internal/telemetry"
)

const (
	// readTimeout bounds how long a connection may stall without
	// delivering a complete line.
	readTimeout = 5 * time.Second
	// maxLineBytes caps a single request line. Longer lines drop the
	// connection.
	maxLineBytes = 64 * 1024
)

// Server listens on a UNIX stream socket and dispatches commands against
// the rotation service, one JSON object per line in each direction.
type Server struct {
	socketPath string
	svc        *rotation.Service
	logger     zerolog.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a control server bound to the given socket path.
func NewServer(socketPath string, svc *rotation.Service, logger zerolog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		svc:        svc,
		logger:     logger.With().Str("component", "control").Logger(),
	}
}

// Listen validates the socket path and binds it. A path that already
// exists is refused unless it is a stale socket nobody answers on; a live
// socket means another instance is running.
func (s *Server) Listen() error {
	if !filepath.IsAbs(s.socketPath) {
		return fmt.Errorf("control socket path %q is not absolute", s.socketPath)
	}
	parent := filepath.Dir(s.socketPath)
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return fmt.Errorf("control socket parent %q is not a directory", parent)
	}

	if info, err := os.Stat(s.socketPath); err == nil {
		if info.Mode()&os.ModeSocket == 0 {
			return fmt.Errorf("control socket path %q exists and is not a socket", s.socketPath)
		}
		conn, err := net.DialTimeout("unix", s.socketPath, time.Second)
		if err == nil {
			conn.Close()
			return fmt.Errorf("control socket %q is already in use", s.socketPath)
		}
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("removing stale control socket: %w", err)
		}
		s.logger.Warn().Str("path", s.socketPath).Msg("removed stale control socket")
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("binding control socket: %w", err)
	}
	s.listener = listener
	s.logger.Info().Str("path", s.socketPath).Msg("control socket listening")
	return nil
}

// Serve accepts connections until ctx is cancelled, then closes the
// listener and waits for in-flight connections to finish.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("control server not listening")
	}

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.wg.Wait()
			s.cleanup()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accepting control connection: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) cleanup() {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Msg("removing control socket")
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	logger := s.logger.With().Str("conn_id", connID).Logger()
	logger.Debug().Msg("connection opened")
	telemetry.ConnectionsActive.Inc()
	defer telemetry.ConnectionsActive.Dec()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), maxLineBytes)

	for {
		if ctx.Err() != nil {
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				if errors.Is(err, bufio.ErrTooLong) {
					logger.Warn().Msg("request line too long, dropping connection")
				} else if !errors.Is(err, net.ErrClosed) {
					logger.Debug().Err(err).Msg("connection read ended")
				}
			}
			return
		}

		response := s.dispatch(ctx, logger, scanner.Bytes())
		if err := conn.SetWriteDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		if err := json.NewEncoder(conn).Encode(response); err != nil {
			logger.Debug().Err(err).Msg("writing response failed")
			return
		}
	}
}

// Wire response shapes.
type trackResponse struct {
	Track string `json:"track"`
}

type playlistsResponse struct {
	Playlists []string `json:"playlists"`
}

type playlistResponse struct {
	Playlist string `json:"playlist"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type previewEntry struct {
	Path   string  `json:"path"`
	Title  *string `json:"title"`
	Artist *string `json:"artist"`
}

type previewResponse struct {
	Tracks []previewEntry `json:"tracks"`
}

const (
	statusOK                   = "ok"
	statusInvalidRequest       = "invalid-request"
	statusUnknownCommand       = "unknown-command"
	statusInvalidParameter     = "invalid-parameter"
	statusNoSuchPlaylist       = "no-such-playlist"
	statusNoPlaylistsAvailable = "no-playlists-available"
	statusEmptyStore           = "empty-store"
)

// dispatch parses one line and executes it. Every path returns a response;
// protocol and domain errors keep the connection open.
func (s *Server) dispatch(ctx context.Context, logger zerolog.Logger, line []byte) any {
	req, err := ParseLine(line)
	if err != nil {
		status := statusInvalidRequest
		switch {
		case errors.Is(err, ErrUnknownCommand):
			status = statusUnknownCommand
		case errors.Is(err, ErrInvalidParameter):
			status = statusInvalidParameter
		}
		telemetry.CommandsTotal.WithLabelValues("malformed", status).Inc()
		logger.Debug().Str("status", status).Msg("rejected request")
		return statusResponse{Status: status}
	}

	response, status := s.execute(ctx, req)
	telemetry.CommandsTotal.WithLabelValues(string(req.Command), status).Inc()
	logger.Debug().Str("command", string(req.Command)).Str("status", status).Msg("command handled")
	return response
}

func (s *Server) execute(ctx context.Context, req Request) (any, string) {
	switch req.Command {
	case CmdNextTrack:
		track, err := s.svc.NextTrack(time.Now())
		if err != nil {
			return statusResponse{Status: statusEmptyStore}, statusEmptyStore
		}
		return trackResponse{Track: track}, statusOK

	case CmdListPlaylists:
		return playlistsResponse{Playlists: s.svc.ListPlaylists()}, statusOK

	case CmdGetPlaylist:
		name, err := s.svc.CurrentPlaylist()
		if err != nil {
			return statusResponse{Status: statusEmptyStore}, statusEmptyStore
		}
		return playlistResponse{Playlist: name}, statusOK

	case CmdSwitchPlaylist:
		if err := s.svc.SwitchPlaylist(req.Playlist); err != nil {
			return statusResponse{Status: statusNoSuchPlaylist}, statusNoSuchPlaylist
		}
		return statusResponse{Status: statusOK}, statusOK

	case CmdReloadPlaylists:
		if err := s.svc.ReloadPlaylists(ctx); err != nil {
			return statusResponse{Status: statusNoPlaylistsAvailable}, statusNoPlaylistsAvailable
		}
		return statusResponse{Status: statusOK}, statusOK

	case CmdReloadTags:
		s.svc.ReloadTags(ctx)
		return statusResponse{Status: statusOK}, statusOK

	case CmdShufflePlaylists:
		s.svc.ShufflePlaylists()
		return statusResponse{Status: statusOK}, statusOK

	case CmdPreviewPlaylist:
		tracks, err := s.svc.Preview(ctx, req.Playlist, req.Count)
		if err != nil {
			if errors.Is(err, playlist.ErrNoSuchPlaylist) {
				return statusResponse{Status: statusNoSuchPlaylist}, statusNoSuchPlaylist
			}
			return statusResponse{Status: statusEmptyStore}, statusEmptyStore
		}
		entries := make([]previewEntry, 0, len(tracks))
		for _, track := range tracks {
			entry := previewEntry{Path: track.Path}
			if track.Meta.Available {
				title, artist := track.Meta.Title, track.Meta.Artist
				entry.Title, entry.Artist = &title, &artist
			}
			entries = append(entries, entry)
		}
		return previewResponse{Tracks: entries}, statusOK
	}

	// ParseLine only emits known commands.
	return statusResponse{Status: statusUnknownCommand}, statusUnknownCommand
}

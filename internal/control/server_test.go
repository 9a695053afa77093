package control

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/playlist"
	"github.com/friendsincode/bragi/internal/rotation"
	"github.com/friendsincode/bragi/internal/schedule"
	"github.com/friendsincode/bragi/internal/tags"
)

type staticReader struct{}

func (staticReader) ReadTags(path string) (tags.Metadata, error) {
	return tags.Metadata{Title: "Title of " + filepath.Base(path), Artist: "Artist", Available: true}, nil
}

func startTestServer(t *testing.T, scan map[string][]string) (*Server, net.Conn) {
	t.Helper()

	svc := rotation.New(rotation.Options{
		Store:     playlist.NewStore(),
		Scheduler: schedule.New(nil, time.Minute, time.Now()),
		TagCache:  tags.NewCache(),
		Reader:    staticReader{},
		Scan:      func() (map[string][]string, error) { return scan, nil },
		Bus:       events.NewBus(),
		Logger:    zerolog.Nop(),
	})
	if err := svc.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	socket := filepath.Join(t.TempDir(), "bragi.sock")
	srv := NewServer(socket, svc, zerolog.Nop())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return srv, conn
}

func roundTrip(t *testing.T, conn net.Conn, line string) map[string]json.RawMessage {
	t.Helper()
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	reader := bufio.NewReader(conn)
	response, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(response, &fields); err != nil {
		t.Fatalf("response %q is not a JSON object: %v", response, err)
	}
	return fields
}

func fieldString(t *testing.T, fields map[string]json.RawMessage, key string) string {
	t.Helper()
	raw, ok := fields[key]
	if !ok {
		t.Fatalf("response missing %q: %v", key, fields)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		t.Fatalf("response key %q not a string: %v", key, err)
	}
	return value
}

func TestServerNextTrack(t *testing.T) {
	_, conn := startTestServer(t, map[string][]string{"a": {"/music/one.mp3"}})

	fields := roundTrip(t, conn, `{"command":"next-track"}`)
	if got := fieldString(t, fields, "track"); got != "/music/one.mp3" {
		t.Fatalf("track = %q, want /music/one.mp3", got)
	}
}

func TestServerCommandSequenceOnOneConnection(t *testing.T) {
	_, conn := startTestServer(t, map[string][]string{
		"a": {"/music/one.mp3"},
		"b": {"/music/two.mp3"},
	})

	fields := roundTrip(t, conn, `{"command":"get-playlist"}`)
	if got := fieldString(t, fields, "playlist"); got != "a" {
		t.Fatalf("current playlist = %q, want a", got)
	}

	fields = roundTrip(t, conn, `{"command":"switch-playlist","playlist":"b"}`)
	if got := fieldString(t, fields, "status"); got != "ok" {
		t.Fatalf("switch status = %q, want ok", got)
	}

	fields = roundTrip(t, conn, `{"command":"next-track"}`)
	if got := fieldString(t, fields, "track"); got != "/music/two.mp3" {
		t.Fatalf("track after switch = %q, want /music/two.mp3", got)
	}

	fields = roundTrip(t, conn, `{"command":"list-playlists"}`)
	var names []string
	if err := json.Unmarshal(fields["playlists"], &names); err != nil {
		t.Fatalf("playlists field: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("playlists = %v, want [a b]", names)
	}
}

func TestServerMalformedInputKeepsConnectionOpen(t *testing.T) {
	_, conn := startTestServer(t, map[string][]string{"a": {"/music/one.mp3"}})

	cases := []struct {
		line string
		want string
	}{
		{`this is not json`, "invalid-request"},
		{`{"command":42}`, "invalid-request"},
		{`{"command":"fly-to-the-moon"}`, "unknown-command"},
		{`{"command":"switch-playlist"}`, "invalid-parameter"},
	}
	for _, tc := range cases {
		fields := roundTrip(t, conn, tc.line)
		if got := fieldString(t, fields, "status"); got != tc.want {
			t.Fatalf("status for %q = %q, want %q", tc.line, got, tc.want)
		}
	}

	// The same connection still serves valid commands.
	fields := roundTrip(t, conn, `{"command":"next-track"}`)
	if got := fieldString(t, fields, "track"); got != "/music/one.mp3" {
		t.Fatalf("track after malformed input = %q, want /music/one.mp3", got)
	}
}

func TestServerDomainErrors(t *testing.T) {
	_, conn := startTestServer(t, map[string][]string{"a": {"/music/one.mp3"}})

	fields := roundTrip(t, conn, `{"command":"switch-playlist","playlist":"nope"}`)
	if got := fieldString(t, fields, "status"); got != "no-such-playlist" {
		t.Fatalf("status = %q, want no-such-playlist", got)
	}

	fields = roundTrip(t, conn, `{"command":"preview-playlist","playlist":"nope"}`)
	if got := fieldString(t, fields, "status"); got != "no-such-playlist" {
		t.Fatalf("preview status = %q, want no-such-playlist", got)
	}
}

func TestServerPreviewPlaylist(t *testing.T) {
	_, conn := startTestServer(t, map[string][]string{"a": {"/music/one.mp3"}})

	fields := roundTrip(t, conn, `{"command":"preview-playlist","playlist":"a","count":2}`)
	var tracks []struct {
		Path   string  `json:"path"`
		Title  *string `json:"title"`
		Artist *string `json:"artist"`
	}
	if err := json.Unmarshal(fields["tracks"], &tracks); err != nil {
		t.Fatalf("tracks field: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("preview returned %d tracks, want 2", len(tracks))
	}
	if tracks[0].Path != "/music/one.mp3" || tracks[0].Title == nil || *tracks[0].Title != "Title of one.mp3" {
		t.Fatalf("first preview track = %+v", tracks[0])
	}
}

func TestServerShuffleAndReloadStatuses(t *testing.T) {
	_, conn := startTestServer(t, map[string][]string{"a": {"/music/one.mp3"}})

	for _, cmd := range []string{"shuffle-playlists", "reload-playlists", "reload-tags"} {
		fields := roundTrip(t, conn, `{"command":"`+cmd+`"}`)
		if got := fieldString(t, fields, "status"); got != "ok" {
			t.Fatalf("%s status = %q, want ok", cmd, got)
		}
	}
}

func TestListenRefusesLiveSocket(t *testing.T) {
	srv, _ := startTestServer(t, map[string][]string{"a": {"/music/one.mp3"}})

	second := NewServer(srv.socketPath, srv.svc, zerolog.Nop())
	if err := second.Listen(); err == nil {
		second.listener.Close()
		t.Fatal("Listen() on a live socket succeeded, want error")
	}
}

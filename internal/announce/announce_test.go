package announce

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestClockText(t *testing.T) {
	at := time.Date(2026, 3, 9, 7, 5, 30, 0, time.UTC)
	got := clockText(at)
	want := "The current time is 07 05 hours. Repeat, the current time is 07 05 hours"
	if got != want {
		t.Fatalf("clockText() = %q, want %q", got, want)
	}
}

func TestAppendID3v1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp3")
	audio := []byte("fake mp3 frames")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := appendID3v1(path, "Clock", "bragi"); err != nil {
		t.Fatalf("appendID3v1() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != len(audio)+128 {
		t.Fatalf("file length = %d, want audio plus 128-byte trailer", len(data))
	}
	if !bytes.Equal(data[:len(audio)], audio) {
		t.Fatal("audio bytes were modified")
	}

	trailer := data[len(audio):]
	if string(trailer[:3]) != "TAG" {
		t.Fatalf("trailer magic = %q, want TAG", trailer[:3])
	}
	title := bytes.TrimRight(trailer[3:33], "\x00")
	if string(title) != "Clock" {
		t.Fatalf("title = %q, want Clock", title)
	}
	artist := bytes.TrimRight(trailer[33:63], "\x00")
	if string(artist) != "bragi" {
		t.Fatalf("artist = %q, want bragi", artist)
	}
	if trailer[127] != 28 {
		t.Fatalf("genre byte = %d, want 28", trailer[127])
	}
}

func TestFixedFieldTruncatesLongValues(t *testing.T) {
	long := "a title far longer than the thirty bytes an ID3v1 field allows"
	field := fixedField(long, 30)
	if len(field) != 30 {
		t.Fatalf("field length = %d, want 30", len(field))
	}
	if string(field) != long[:30] {
		t.Fatalf("field = %q, want first 30 bytes of input", field)
	}
}

func TestOutputPath(t *testing.T) {
	p := NewPipeline("/var/lib/bragi", "/usr/bin/espeak", "/usr/bin/sox", "/usr/bin/lame", zerolog.Nop())
	if got := p.OutputPath("clock"); got != "/var/lib/bragi/clock-stereo.mp3" {
		t.Fatalf("OutputPath() = %q", got)
	}
}

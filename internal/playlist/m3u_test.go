package playlist

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestScanDirReadsPlaylists(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.mp3"), "audio")
	writeFile(t, filepath.Join(dir, "two.mp3"), "audio")

	writeFile(t, filepath.Join(dir, "mix.m3u8"),
		"#EXTM3U\none.mp3\n\n"+filepath.Join(dir, "two.mp3")+"\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	scan, err := ScanDir(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	want := map[string][]string{
		"mix": {filepath.Join(dir, "one.mp3"), filepath.Join(dir, "two.mp3")},
	}
	if !reflect.DeepEqual(scan, want) {
		t.Fatalf("scan mismatch: got %v want %v", scan, want)
	}
}

func TestScanDirSkipsBrokenPlaylists(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.mp3"), "audio")

	writeFile(t, filepath.Join(dir, "good.m3u8"), "one.mp3\n")
	writeFile(t, filepath.Join(dir, "missing.m3u8"), "does-not-exist.mp3\n")
	writeFile(t, filepath.Join(dir, "dup.m3u8"), "one.mp3\none.mp3\n")
	writeFile(t, filepath.Join(dir, "empty.m3u8"), "#EXTM3U\n")

	scan, err := ScanDir(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(scan) != 1 {
		t.Fatalf("expected only the good playlist, got %v", scan)
	}
	if _, ok := scan["good"]; !ok {
		t.Fatalf("expected playlist 'good', got %v", scan)
	}
}

func TestScanDirMissingDirectory(t *testing.T) {
	if _, err := ScanDir(filepath.Join(t.TempDir(), "nope"), zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

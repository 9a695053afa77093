package playlist

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

func testStore(t *testing.T, scan map[string][]string) *Store {
	t.Helper()
	s := NewStoreWithRand(rand.New(rand.NewSource(1)))
	if err := s.Reload(scan); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	return s
}

// loadOrdered loads a scan and then forces the given entry order so tests
// can reason about advance sequences despite load-time shuffling.
func loadOrdered(t *testing.T, scan map[string][]string) *Store {
	t.Helper()
	s := testStore(t, scan)
	for name, entries := range scan {
		s.playlists[name].entries = append([]string(nil), entries...)
		s.playlists[name].cursor = 0
	}
	return s
}

func TestAdvanceCyclesInOrder(t *testing.T) {
	s := loadOrdered(t, map[string][]string{"mix": {"/a.mp3", "/b.mp3", "/c.mp3"}})

	want := []string{"/a.mp3", "/b.mp3", "/c.mp3", "/a.mp3", "/b.mp3", "/c.mp3"}
	for i, expected := range want {
		track, name, err := s.AdvanceCurrent()
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if name != "mix" {
			t.Fatalf("advance %d: unexpected playlist %q", i, name)
		}
		if track != expected {
			t.Fatalf("advance %d: got %q, want %q", i, track, expected)
		}
	}
}

func TestAdvanceOnEmptyStore(t *testing.T) {
	s := NewStoreWithRand(rand.New(rand.NewSource(1)))
	if _, _, err := s.AdvanceCurrent(); err != ErrEmptyStore {
		t.Fatalf("expected ErrEmptyStore, got %v", err)
	}
	if _, err := s.CurrentName(); err != ErrEmptyStore {
		t.Fatalf("expected ErrEmptyStore from CurrentName, got %v", err)
	}
}

func TestSwitchPreservesCursors(t *testing.T) {
	s := loadOrdered(t, map[string][]string{
		"a": {"/a1.mp3", "/a2.mp3"},
		"b": {"/b1.mp3", "/b2.mp3", "/b3.mp3"},
	})
	if err := s.Switch("b"); err != nil {
		t.Fatalf("switch b: %v", err)
	}

	track, _, _ := s.AdvanceCurrent()
	if track != "/b1.mp3" {
		t.Fatalf("expected /b1.mp3, got %q", track)
	}

	if err := s.Switch("a"); err != nil {
		t.Fatalf("switch a: %v", err)
	}
	track, _, _ = s.AdvanceCurrent()
	if track != "/a1.mp3" {
		t.Fatalf("expected /a1.mp3, got %q", track)
	}

	if err := s.Switch("b"); err != nil {
		t.Fatalf("switch back to b: %v", err)
	}
	track, _, _ = s.AdvanceCurrent()
	if track != "/b2.mp3" {
		t.Fatalf("expected b to resume at /b2.mp3, got %q", track)
	}
}

func TestSwitchUnknownPlaylist(t *testing.T) {
	s := testStore(t, map[string][]string{"a": {"/a1.mp3"}})
	if err := s.Switch("nope"); err != ErrNoSuchPlaylist {
		t.Fatalf("expected ErrNoSuchPlaylist, got %v", err)
	}
	if name, _ := s.CurrentName(); name != "a" {
		t.Fatalf("failed switch must not change current, got %q", name)
	}
}

func TestShuffleAllKeepsMembershipResetsCursor(t *testing.T) {
	entries := []string{"/a.mp3", "/b.mp3", "/c.mp3", "/d.mp3", "/e.mp3"}
	s := loadOrdered(t, map[string][]string{"mix": entries})

	s.AdvanceCurrent()
	s.AdvanceCurrent()

	s.ShuffleAll()

	pl := s.playlists["mix"]
	if pl.Cursor() != 0 {
		t.Fatalf("expected cursor reset to 0, got %d", pl.Cursor())
	}

	got := pl.Entries()
	sort.Strings(got)
	want := append([]string(nil), entries...)
	sort.Strings(want)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("membership changed by shuffle: got %v want %v", got, want)
	}
}

func TestReloadMergeAppendsAddedRemovesVanished(t *testing.T) {
	s := loadOrdered(t, map[string][]string{"mix": {"/a.mp3", "/b.mp3", "/c.mp3"}})

	// Advance once so the cursor points at /b.mp3.
	s.AdvanceCurrent()

	err := s.Reload(map[string][]string{"mix": {"/a.mp3", "/c.mp3", "/d.mp3"}})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	pl := s.playlists["mix"]
	got := pl.Entries()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %v", got)
	}
	if got[0] != "/a.mp3" || got[1] != "/c.mp3" {
		t.Fatalf("expected surviving entries in order, got %v", got)
	}
	if got[2] != "/d.mp3" {
		t.Fatalf("expected added entry appended, got %v", got)
	}
	if pl.Cursor() < 0 || pl.Cursor() >= pl.Len() {
		t.Fatalf("cursor out of range after merge: %d", pl.Cursor())
	}
	// Documented policy: with the pointed-at track removed, the cursor lands
	// on its old successor.
	if got[pl.Cursor()] != "/c.mp3" {
		t.Fatalf("expected cursor on /c.mp3, got %q", got[pl.Cursor()])
	}
}

func TestReloadShiftsCursorForEarlierRemovals(t *testing.T) {
	s := loadOrdered(t, map[string][]string{"mix": {"/a.mp3", "/b.mp3", "/c.mp3"}})

	s.AdvanceCurrent() // cursor now at /b.mp3

	// Remove /a.mp3, which sits before the cursor.
	if err := s.Reload(map[string][]string{"mix": {"/b.mp3", "/c.mp3"}}); err != nil {
		t.Fatalf("reload: %v", err)
	}

	track, _, err := s.AdvanceCurrent()
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if track != "/b.mp3" {
		t.Fatalf("expected /b.mp3 to still be next, got %q", track)
	}
}

func TestReloadEmptyScanLeavesStoreUntouched(t *testing.T) {
	s := loadOrdered(t, map[string][]string{"mix": {"/a.mp3", "/b.mp3"}})
	s.AdvanceCurrent()

	if err := s.Reload(map[string][]string{}); err != ErrNoPlaylistsAvailable {
		t.Fatalf("expected ErrNoPlaylistsAvailable, got %v", err)
	}

	pl := s.playlists["mix"]
	if pl.Len() != 2 || pl.Cursor() != 1 {
		t.Fatalf("store mutated by failed reload: len=%d cursor=%d", pl.Len(), pl.Cursor())
	}
}

func TestReloadDeletesVanishedPlaylistAndReassignsCurrent(t *testing.T) {
	s := testStore(t, map[string][]string{
		"rock": {"/r1.mp3"},
		"jazz": {"/j1.mp3"},
	})
	if err := s.Switch("rock"); err != nil {
		t.Fatalf("switch: %v", err)
	}

	if err := s.Reload(map[string][]string{
		"jazz":  {"/j1.mp3"},
		"blues": {"/bl1.mp3"},
	}); err != nil {
		t.Fatalf("reload: %v", err)
	}

	names := s.Names()
	if !reflect.DeepEqual(names, []string{"blues", "jazz"}) {
		t.Fatalf("unexpected names after reload: %v", names)
	}
	// Lowest remaining name in sort order takes over.
	if name, _ := s.CurrentName(); name != "blues" {
		t.Fatalf("expected current to become blues, got %q", name)
	}
}

func TestReloadCreatesNewPlaylistShuffledWithCursorZero(t *testing.T) {
	s := testStore(t, map[string][]string{"a": {"/a1.mp3"}})

	entries := []string{"/n1.mp3", "/n2.mp3", "/n3.mp3", "/n4.mp3"}
	if err := s.Reload(map[string][]string{"a": {"/a1.mp3"}, "new": entries}); err != nil {
		t.Fatalf("reload: %v", err)
	}

	pl, ok := s.playlists["new"]
	if !ok {
		t.Fatal("expected new playlist to exist")
	}
	if pl.Cursor() != 0 {
		t.Fatalf("expected cursor 0 for new playlist, got %d", pl.Cursor())
	}
	got := pl.Entries()
	sort.Strings(got)
	if !reflect.DeepEqual(got, entries) {
		t.Fatalf("new playlist membership wrong: %v", got)
	}
}

func TestStartupLoadPicksLowestName(t *testing.T) {
	s := testStore(t, map[string][]string{
		"rock":    {"/r1.mp3"},
		"ambient": {"/am1.mp3"},
		"jazz":    {"/j1.mp3"},
	})
	if name, _ := s.CurrentName(); name != "ambient" {
		t.Fatalf("expected ambient as initial current, got %q", name)
	}
}

func TestPeekWrapsWithoutAdvancing(t *testing.T) {
	s := loadOrdered(t, map[string][]string{"mix": {"/a.mp3", "/b.mp3", "/c.mp3"}})
	s.AdvanceCurrent() // cursor at /b.mp3

	got, err := s.Peek("mix", 4)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	want := []string{"/b.mp3", "/c.mp3", "/a.mp3", "/b.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("peek mismatch: got %v want %v", got, want)
	}

	track, _, _ := s.AdvanceCurrent()
	if track != "/b.mp3" {
		t.Fatalf("peek must not advance; next track was %q", track)
	}

	if _, err := s.Peek("nope", 1); err != ErrNoSuchPlaylist {
		t.Fatalf("expected ErrNoSuchPlaylist, got %v", err)
	}
}

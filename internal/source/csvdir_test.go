package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ROrodrigp/spotifire/internal/normalize"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCSVDirUsers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "u2", "recently_played_1.csv"), "played_at\n")
	writeFile(t, filepath.Join(root, "u1", "recently_played_1.csv"), "played_at\n")

	users, err := NewCSVDir(root).Users()
	if err != nil {
		t.Fatalf("Users() error: %v", err)
	}
	if len(users) != 2 || users[0] != "u1" || users[1] != "u2" {
		t.Errorf("Users() = %v, want [u1 u2]", users)
	}
}

func TestCSVDirEvents(t *testing.T) {
	root := t.TempDir()
	content := "played_at,track_name,artist_name,album_name,track_id,artist_id,album_id,duration_ms,popularity,explicit\n" +
		"2024-01-15T23:30:00Z,Song One,Act,Album,t1,a1;a2,al1,200000,47,true\n" +
		"2024-01-14T10:00:00Z,Song Two,Act,Album,t2,a1,al1,not-a-number,61,false\n"
	writeFile(t, filepath.Join(root, "u1", "recently_played_20240115.csv"), content)

	events, err := NewCSVDir(root).Events("u1")
	if err != nil {
		t.Fatalf("Events() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	first := events[0]
	if first.UserID != "u1" || first.TrackID != "t1" {
		t.Errorf("unexpected identifiers: %+v", first)
	}
	if len(first.ArtistIDs) != 2 || first.ArtistIDs[0] != "a1" {
		t.Errorf("artist_ids = %v, want [a1 a2]", first.ArtistIDs)
	}
	if first.DurationMs != 200000 || first.Popularity != 47 || !first.Explicit {
		t.Errorf("unexpected numeric fields: %+v", first)
	}
	if first.SourceBatchID != "recently_played_20240115.csv" {
		t.Errorf("batch_id = %q", first.SourceBatchID)
	}

	// Unparseable numerics degrade to zero; the normalizer decides what
	// to drop.
	if events[1].DurationMs != 0 {
		t.Errorf("bad duration parsed as %d, want 0", events[1].DurationMs)
	}
}

func TestCSVDirRoundTrip(t *testing.T) {
	root := t.TempDir()
	d := NewCSVDir(root)

	in := []normalize.RawEvent{
		{
			UserID:     "u1",
			TrackID:    "t1",
			TrackName:  "Song",
			ArtistIDs:  []string{"a1"},
			ArtistName: "Act",
			AlbumID:    "al1",
			AlbumName:  "Album",
			PlayedAt:   "2024-01-15T23:30:00Z",
			DurationMs: 200000,
			Popularity: 47,
		},
	}

	path, err := d.WriteBatch("u1", in)
	if err != nil {
		t.Fatalf("WriteBatch() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("batch file missing: %v", err)
	}

	out, err := d.Events("u1")
	if err != nil {
		t.Fatalf("Events() error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d events, want 1", len(out))
	}
	got := out[0]
	if got.TrackID != in[0].TrackID || got.PlayedAt != in[0].PlayedAt ||
		got.DurationMs != in[0].DurationMs || got.Popularity != in[0].Popularity {
		t.Errorf("round trip mismatch: %+v vs %+v", got, in[0])
	}
}

func TestCSVDirMissingRoot(t *testing.T) {
	if _, err := NewCSVDir(filepath.Join(t.TempDir(), "missing")).Users(); err == nil {
		t.Error("expected error for missing root")
	}
}

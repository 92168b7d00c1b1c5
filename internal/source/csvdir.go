// Package source supplies raw listening events from external
// collaborators: collector CSV batches on disk and the Spotify Web API.
package source

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ROrodrigp/spotifire/internal/normalize"
)

// csvHeader is the column layout the periodic collector writes.
var csvHeader = []string{
	"played_at", "track_name", "artist_name", "album_name",
	"track_id", "artist_id", "album_id", "duration_ms", "popularity", "explicit",
}

// CSVDir reads and writes collector batch files laid out as one
// directory per user: <root>/<user_id>/recently_played_*.csv.
type CSVDir struct {
	root string
}

// NewCSVDir creates a CSV batch source rooted at the given directory.
func NewCSVDir(root string) *CSVDir {
	return &CSVDir{root: root}
}

// Users lists the user IDs that have a batch directory.
func (d *CSVDir) Users() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("listing user directories: %w", err)
	}

	var users []string
	for _, e := range entries {
		if e.IsDir() {
			users = append(users, e.Name())
		}
	}
	sort.Strings(users)
	return users, nil
}

// Events reads all CSV batches for one user. Rows are returned as raw
// events; the normalizer is responsible for dropping and counting
// malformed ones, so parse failures here degrade to zero values instead
// of erroring.
func (d *CSVDir) Events(userID string) ([]normalize.RawEvent, error) {
	pattern := filepath.Join(d.root, userID, "*.csv")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", pattern, err)
	}
	sort.Strings(files)

	var events []normalize.RawEvent
	for _, file := range files {
		batch, err := readBatchFile(file, userID)
		if err != nil {
			return nil, err
		}
		events = append(events, batch...)
	}
	return events, nil
}

func readBatchFile(path, userID string) ([]normalize.RawEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening batch file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // malformed rows are the normalizer's problem

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.TrimSpace(name)] = i
	}

	batchID := filepath.Base(path)
	events := make([]normalize.RawEvent, 0, len(rows)-1)
	for _, row := range rows[1:] {
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		durationMs, _ := strconv.ParseInt(get("duration_ms"), 10, 64)
		popularity, _ := strconv.Atoi(get("popularity"))
		explicit, _ := strconv.ParseBool(get("explicit"))

		ev := normalize.RawEvent{
			UserID:        userID,
			TrackID:       get("track_id"),
			TrackName:     get("track_name"),
			ArtistName:    get("artist_name"),
			AlbumID:       get("album_id"),
			AlbumName:     get("album_name"),
			PlayedAt:      get("played_at"),
			DurationMs:    durationMs,
			Popularity:    popularity,
			Explicit:      explicit,
			SourceBatchID: batchID,
		}
		if artistID := get("artist_id"); artistID != "" {
			ev.ArtistIDs = strings.Split(artistID, ";")
		}
		events = append(events, ev)
	}

	return events, nil
}

// WriteBatch appends a new timestamped batch file for a user and returns
// its path. Used by the collect command.
func (d *CSVDir) WriteBatch(userID string, events []normalize.RawEvent) (string, error) {
	dir := filepath.Join(d.root, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating user directory: %w", err)
	}

	name := fmt.Sprintf("recently_played_%s.csv", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating batch file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	for _, ev := range events {
		row := []string{
			ev.PlayedAt,
			ev.TrackName,
			ev.ArtistName,
			ev.AlbumName,
			ev.TrackID,
			strings.Join(ev.ArtistIDs, ";"),
			ev.AlbumID,
			strconv.FormatInt(ev.DurationMs, 10),
			strconv.Itoa(ev.Popularity),
			strconv.FormatBool(ev.Explicit),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing batch file: %w", err)
	}

	return path, nil
}

package partition

import (
	"testing"
	"time"

	"github.com/ROrodrigp/spotifire/internal/catalog"
	"github.com/ROrodrigp/spotifire/internal/feature"
	"github.com/ROrodrigp/spotifire/internal/genre"
	"github.com/ROrodrigp/spotifire/internal/normalize"
)

func TestPopularityBucket(t *testing.T) {
	tests := []struct {
		popularity int
		want       int
	}{
		{0, 0},
		{9, 0},
		{10, 10},
		{47, 40},
		{99, 90},
		{100, 100},
		{-3, 0},
	}
	for _, tt := range tests {
		if got := PopularityBucket(tt.popularity); got != tt.want {
			t.Errorf("PopularityBucket(%d) = %d, want %d", tt.popularity, got, tt.want)
		}
	}
}

func TestForEventStable(t *testing.T) {
	artists := map[string]catalog.Artist{
		"a1": {ID: "a1", Name: "Act", Genres: []string{"techno"}, Popularity: 35},
	}
	ev := normalize.Event{
		UserID:     "u1",
		TrackID:    "t1",
		ArtistIDs:  []string{"a1"},
		PlayedAt:   time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC),
		Season:     "Summer",
		Popularity: 47,
	}

	first := ForEvent(ev, artists)
	second := ForEvent(ev, artists)
	if first != second {
		t.Errorf("ForEvent not stable: %+v vs %+v", first, second)
	}

	if first.Season != "Summer" {
		t.Errorf("season = %q, want reused Summer", first.Season)
	}
	if first.PopularityBucket != 30 {
		t.Errorf("popularity_bucket = %d, want 30 from the catalog artist", first.PopularityBucket)
	}
	if first.GenreBucket != "electronic" {
		t.Errorf("genre_bucket = %q, want electronic", first.GenreBucket)
	}
}

func TestForEventPopularityPrecedence(t *testing.T) {
	artists := map[string]catalog.Artist{
		"a1": {ID: "a1", Name: "Act", Genres: []string{"techno"}, Popularity: 62},
	}

	// A catalog artist wins over the track popularity, including when the
	// track popularity is a legitimate zero.
	known := normalize.Event{UserID: "u1", ArtistIDs: []string{"a1"}, Season: "Spring", Popularity: 0}
	if key := ForEvent(known, artists); key.PopularityBucket != 60 {
		t.Errorf("popularity_bucket = %d, want 60 from the catalog artist", key.PopularityBucket)
	}

	// Without the artist the track popularity stands in, and zero stays
	// zero rather than turning into a lookup.
	missing := normalize.Event{UserID: "u1", ArtistIDs: []string{"a2"}, Season: "Spring", Popularity: 0}
	if key := ForEvent(missing, artists); key.PopularityBucket != 0 {
		t.Errorf("popularity_bucket = %d, want 0 for missing artist", key.PopularityBucket)
	}
}

func TestForEventMissingArtist(t *testing.T) {
	ev := normalize.Event{
		UserID:     "u1",
		ArtistIDs:  []string{"unknown"},
		Season:     "Winter",
		Popularity: 85,
	}

	key := ForEvent(ev, nil)
	if key.GenreBucket != "mainstream" {
		t.Errorf("genre_bucket = %q, want mainstream fallback", key.GenreBucket)
	}
	if key.PopularityBucket != 80 {
		t.Errorf("popularity_bucket = %d, want 80", key.PopularityBucket)
	}
}

func TestForArtist(t *testing.T) {
	a := catalog.Artist{ID: "a1", Name: "Orchestra", Genres: []string{"baroque"}, Popularity: 62}

	key := ForArtist(a)
	if key.UserID != "" {
		t.Errorf("user_id = %q, want empty", key.UserID)
	}
	if key.PopularityBucket != 60 {
		t.Errorf("popularity_bucket = %d, want 60", key.PopularityBucket)
	}
	if key.GenreBucket != "classical" {
		t.Errorf("genre_bucket = %q, want classical", key.GenreBucket)
	}
}

func TestForVector(t *testing.T) {
	v := feature.Vector{
		UserID:     "u1",
		ComputedAt: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
	}
	v.Values[feature.MeanArtistPopularity] = 73.4

	key := ForVector(v, genre.Rock)
	if key.Season != "Fall" {
		t.Errorf("season = %q, want Fall", key.Season)
	}
	if key.PopularityBucket != 70 {
		t.Errorf("popularity_bucket = %d, want 70", key.PopularityBucket)
	}
	if key.GenreBucket != "rock" {
		t.Errorf("genre_bucket = %q, want rock", key.GenreBucket)
	}
}

package normalize

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func rawPlay(userID, trackID, playedAt string, durationMs int64) RawEvent {
	return RawEvent{
		UserID:     userID,
		TrackID:    trackID,
		ArtistIDs:  []string{"a1"},
		PlayedAt:   playedAt,
		DurationMs: durationMs,
	}
}

func TestNormalizeDedup(t *testing.T) {
	raw := []RawEvent{
		rawPlay("u1", "t1", "2024-01-15T23:30:00Z", 200000),
		rawPlay("u1", "t1", "2024-01-15T23:30:00Z", 204000), // within 5%
		rawPlay("u1", "t1", "2024-01-15T23:31:00Z", 200000), // different second
	}

	result := Normalize(raw, testLogger())
	if len(result.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(result.Events))
	}
	if result.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", result.Duplicates)
	}
	// First-seen duration wins.
	if result.Events[0].DurationMs != 200000 {
		t.Errorf("duration = %d, want first-seen 200000", result.Events[0].DurationMs)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := []RawEvent{
		rawPlay("u2", "t9", "2024-06-01T08:00:00Z", 180000),
		rawPlay("u1", "t1", "2024-01-15T23:30:00Z", 200000),
		rawPlay("u1", "t2", "2024-01-14T10:00:00Z", 210000),
		rawPlay("u1", "t1", "2024-01-15T23:30:00Z", 200000),
	}

	first := Normalize(raw, testLogger())
	second := Normalize(raw, testLogger())

	if len(first.Events) != len(second.Events) {
		t.Fatalf("runs differ in length: %d vs %d", len(first.Events), len(second.Events))
	}
	for i := range first.Events {
		a, b := first.Events[i], second.Events[i]
		if a.UserID != b.UserID || a.TrackID != b.TrackID || !a.PlayedAt.Equal(b.PlayedAt) {
			t.Errorf("event %d differs between runs", i)
		}
	}
}

func TestNormalizeOrdering(t *testing.T) {
	raw := []RawEvent{
		rawPlay("u2", "t1", "2024-01-10T12:00:00Z", 180000),
		rawPlay("u1", "t2", "2024-03-01T09:00:00Z", 180000),
		rawPlay("u1", "t3", "2024-01-01T09:00:00Z", 180000),
	}

	result := Normalize(raw, testLogger())
	if len(result.Events) != 3 {
		t.Fatalf("got %d events, want 3", len(result.Events))
	}
	for i := 1; i < len(result.Events); i++ {
		prev, cur := result.Events[i-1], result.Events[i]
		if prev.UserID > cur.UserID {
			t.Fatalf("events not ordered by user_id: %q before %q", prev.UserID, cur.UserID)
		}
		if prev.UserID == cur.UserID && prev.PlayedAt.After(cur.PlayedAt) {
			t.Fatalf("events for %q not ordered by played_at", cur.UserID)
		}
	}
}

func TestNormalizeDropsMalformed(t *testing.T) {
	raw := []RawEvent{
		rawPlay("", "t1", "2024-01-15T23:30:00Z", 200000),
		rawPlay("u1", "", "2024-01-15T23:30:00Z", 200000),
		rawPlay("u1", "t1", "not-a-timestamp", 200000),
		rawPlay("u1", "t1", "2024-01-15T23:30:00Z", 200000),
	}

	result := Normalize(raw, testLogger())
	if result.Dropped != 3 {
		t.Errorf("dropped = %d, want 3", result.Dropped)
	}
	if len(result.Events) != 1 {
		t.Errorf("got %d events, want 1", len(result.Events))
	}
}

func TestNormalizeDerivedFields(t *testing.T) {
	raw := []RawEvent{
		rawPlay("u1", "t1", "2024-01-15T23:30:00Z", 200000),
	}

	result := Normalize(raw, testLogger())
	if len(result.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(result.Events))
	}
	ev := result.Events[0]
	if ev.PlayHour != 23 {
		t.Errorf("play_hour = %d, want 23", ev.PlayHour)
	}
	if ev.DurationMinutes != 3.33 {
		t.Errorf("duration_minutes = %v, want 3.33", ev.DurationMinutes)
	}
	if ev.Season != "Winter" {
		t.Errorf("season = %q, want Winter", ev.Season)
	}
	if ev.PlayWeekday != time.Monday {
		t.Errorf("weekday = %v, want Monday", ev.PlayWeekday)
	}
}

func TestSeason(t *testing.T) {
	tests := []struct {
		month time.Month
		want  string
	}{
		{time.January, "Winter"},
		{time.March, "Spring"},
		{time.May, "Spring"},
		{time.June, "Summer"},
		{time.August, "Summer"},
		{time.September, "Fall"},
		{time.November, "Fall"},
		{time.December, "Winter"},
	}
	for _, tt := range tests {
		if got := Season(tt.month); got != tt.want {
			t.Errorf("Season(%v) = %q, want %q", tt.month, got, tt.want)
		}
	}
}

func TestIsNight(t *testing.T) {
	night := []int{22, 23, 0, 3, 5}
	day := []int{6, 12, 21}
	for _, h := range night {
		if !IsNight(h) {
			t.Errorf("IsNight(%d) = false, want true", h)
		}
	}
	for _, h := range day {
		if IsNight(h) {
			t.Errorf("IsNight(%d) = true, want false", h)
		}
	}
}

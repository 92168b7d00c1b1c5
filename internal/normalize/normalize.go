// Package normalize deduplicates and type-normalizes raw listening events
// and computes their derived temporal fields.
package normalize

import (
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// durationMismatchTolerance is the relative duration_ms difference above
// which a dedup collision is logged as a data-quality signal.
const durationMismatchTolerance = 0.05

// RawEvent is a listening record as supplied by the collector. String
// timestamps are parsed during normalization so malformed rows can be
// counted instead of failing the batch.
type RawEvent struct {
	UserID        string
	TrackID       string
	TrackName     string
	ArtistIDs     []string
	ArtistName    string
	AlbumID       string
	AlbumName     string
	PlayedAt      string // RFC3339, as written by the collector
	DurationMs    int64
	Popularity    int
	Explicit      bool
	SourceBatchID string
}

// Event is a cleaned, deduplicated listening event with derived fields.
type Event struct {
	UserID          string
	TrackID         string
	TrackName       string
	ArtistIDs       []string
	ArtistName      string
	AlbumID         string
	AlbumName       string
	PlayedAt        time.Time // UTC
	DurationMs      int64
	DurationMinutes float64 // duration_ms / 60000, rounded to 2 decimals
	Popularity      int
	Explicit        bool
	PlayHour        int    // 0-23
	PlayWeekday     time.Weekday
	Season          string // Spring, Summer, Fall, Winter
	SourceBatchID   string
	ProcessedAt     time.Time
}

// Result is the outcome of normalizing one raw batch.
type Result struct {
	Events     []Event // ordered by (user_id, played_at) ascending
	Dropped    int     // malformed records
	Duplicates int     // records collapsed by the dedup key
}

// dedupKey identifies a physical play: two records with the same user,
// track and second-resolution timestamp are the same event.
type dedupKey struct {
	userID   string
	trackID  string
	playedAt int64 // unix seconds
}

// Normalize cleans a raw batch. Malformed records (missing user_id or
// track_id, unparseable played_at) are dropped and counted. Duplicate
// plays collapse to the earliest-ingested record; collisions with a
// materially different duration are logged, not failed. Output is ordered
// by (user_id, played_at) ascending, which the feature builder's window
// computations rely on.
func Normalize(raw []RawEvent, log *logrus.Logger) Result {
	if log == nil {
		log = logrus.StandardLogger()
	}

	processedAt := time.Now().UTC()
	seen := make(map[dedupKey]int, len(raw))
	var result Result

	for _, r := range raw {
		if r.UserID == "" || r.TrackID == "" {
			result.Dropped++
			continue
		}
		playedAt, err := time.Parse(time.RFC3339, r.PlayedAt)
		if err != nil {
			result.Dropped++
			continue
		}
		playedAt = playedAt.UTC().Truncate(time.Second)

		key := dedupKey{userID: r.UserID, trackID: r.TrackID, playedAt: playedAt.Unix()}
		if i, ok := seen[key]; ok {
			result.Duplicates++
			if mismatch(result.Events[i].DurationMs, r.DurationMs) {
				log.WithFields(logrus.Fields{
					"user_id":    r.UserID,
					"track_id":   r.TrackID,
					"played_at":  playedAt.Format(time.RFC3339),
					"kept_ms":    result.Events[i].DurationMs,
					"dropped_ms": r.DurationMs,
					"batch_id":   r.SourceBatchID,
				}).Warn("duplicate play with mismatched duration")
			}
			continue
		}

		ev := Event{
			UserID:          r.UserID,
			TrackID:         r.TrackID,
			TrackName:       r.TrackName,
			ArtistIDs:       r.ArtistIDs,
			ArtistName:      r.ArtistName,
			AlbumID:         r.AlbumID,
			AlbumName:       r.AlbumName,
			PlayedAt:        playedAt,
			DurationMs:      clampNonNegative(r.DurationMs),
			DurationMinutes: durationMinutes(r.DurationMs),
			Popularity:      r.Popularity,
			Explicit:        r.Explicit,
			PlayHour:        playedAt.Hour(),
			PlayWeekday:     playedAt.Weekday(),
			Season:          Season(playedAt.Month()),
			SourceBatchID:   r.SourceBatchID,
			ProcessedAt:     processedAt,
		}
		seen[key] = len(result.Events)
		result.Events = append(result.Events, ev)
	}

	sort.SliceStable(result.Events, func(i, j int) bool {
		a, b := result.Events[i], result.Events[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.PlayedAt.Before(b.PlayedAt)
	})

	return result
}

// Season maps a calendar month to its season label.
func Season(m time.Month) string {
	switch {
	case m >= time.March && m <= time.May:
		return "Spring"
	case m >= time.June && m <= time.August:
		return "Summer"
	case m >= time.September && m <= time.November:
		return "Fall"
	default:
		return "Winter"
	}
}

// IsNight reports whether an hour falls in the night window 22:00-05:59.
func IsNight(hour int) bool {
	return hour >= 22 || hour <= 5
}

// IsWeekend reports whether a weekday is Saturday or Sunday.
func IsWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func durationMinutes(ms int64) float64 {
	if ms <= 0 {
		return 0
	}
	return math.Round(float64(ms)/60000*100) / 100
}

func clampNonNegative(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms
}

// mismatch reports whether two durations differ by more than the
// tolerance, relative to the kept value.
func mismatch(kept, other int64) bool {
	if kept == 0 && other == 0 {
		return false
	}
	base := float64(kept)
	if base == 0 {
		return true
	}
	return math.Abs(float64(other)-base)/base > durationMismatchTolerance
}

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ROrodrigp/spotifire/internal/normalize"
	"github.com/ROrodrigp/spotifire/internal/partition"
)

// EventRepository handles normalized listening event rows.
type EventRepository struct {
	pool *pgxpool.Pool
}

// insertEvents batch-inserts normalized events with their partition
// columns. Conflicts on the dedup key are ignored so re-running a batch
// stays idempotent.
func insertEvents(ctx context.Context, tx pgx.Tx, events []normalize.Event, keys []partition.Key) error {
	if len(events) == 0 {
		return nil
	}
	if len(keys) != len(events) {
		return fmt.Errorf("partition keys (%d) do not match events (%d)", len(keys), len(events))
	}

	query := `
		INSERT INTO listening_events (
			user_id, track_id, track_name, artist_ids, artist_name,
			album_id, album_name, played_at, duration_ms, duration_minutes,
			popularity, explicit, play_hour, play_weekday, season,
			source_batch_id, processed_at, popularity_bucket, genre_bucket
		)
		SELECT * FROM unnest(
			$1::text[], $2::text[], $3::text[], $4::text[], $5::text[],
			$6::text[], $7::text[], $8::timestamptz[], $9::bigint[], $10::float8[],
			$11::int[], $12::bool[], $13::int[], $14::int[], $15::text[],
			$16::text[], $17::timestamptz[], $18::int[], $19::text[]
		)
		ON CONFLICT (user_id, track_id, played_at) DO NOTHING
	`

	n := len(events)
	userIDs := make([]string, n)
	trackIDs := make([]string, n)
	trackNames := make([]string, n)
	artistIDs := make([]string, n)
	artistNames := make([]string, n)
	albumIDs := make([]string, n)
	albumNames := make([]string, n)
	playedAts := make([]time.Time, n)
	durationsMs := make([]int64, n)
	durationsMin := make([]float64, n)
	popularities := make([]int, n)
	explicits := make([]bool, n)
	playHours := make([]int, n)
	playWeekdays := make([]int, n)
	seasons := make([]string, n)
	batchIDs := make([]string, n)
	processedAts := make([]time.Time, n)
	popBuckets := make([]int, n)
	genreBuckets := make([]string, n)

	for i, ev := range events {
		userIDs[i] = ev.UserID
		trackIDs[i] = ev.TrackID
		trackNames[i] = ev.TrackName
		artistIDs[i] = strings.Join(ev.ArtistIDs, ";")
		artistNames[i] = ev.ArtistName
		albumIDs[i] = ev.AlbumID
		albumNames[i] = ev.AlbumName
		playedAts[i] = ev.PlayedAt
		durationsMs[i] = ev.DurationMs
		durationsMin[i] = ev.DurationMinutes
		popularities[i] = ev.Popularity
		explicits[i] = ev.Explicit
		playHours[i] = ev.PlayHour
		playWeekdays[i] = int(ev.PlayWeekday)
		seasons[i] = ev.Season
		batchIDs[i] = ev.SourceBatchID
		processedAts[i] = ev.ProcessedAt
		popBuckets[i] = keys[i].PopularityBucket
		genreBuckets[i] = keys[i].GenreBucket
	}

	_, err := tx.Exec(ctx, query,
		userIDs, trackIDs, trackNames, artistIDs, artistNames,
		albumIDs, albumNames, playedAts, durationsMs, durationsMin,
		popularities, explicits, playHours, playWeekdays, seasons,
		batchIDs, processedAts, popBuckets, genreBuckets,
	)
	if err != nil {
		return fmt.Errorf("batch inserting events: %w", err)
	}
	return nil
}

// CountForUser returns the number of stored events for a user.
func (r *EventRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listening_events WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return count, nil
}

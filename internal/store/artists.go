package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ROrodrigp/spotifire/internal/catalog"
	"github.com/ROrodrigp/spotifire/internal/partition"
)

// Genre lists are stored as a single ";"-joined column so batch upserts
// can stream through unnest, which flattens nested arrays.
func joinGenres(genres []string) string {
	return strings.Join(genres, ";")
}

func splitGenres(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ";")
}

// ArtistRepository handles artist catalog rows.
type ArtistRepository struct {
	pool *pgxpool.Pool
}

// UpsertBatch inserts or refreshes a batch of catalog artists together
// with their derived partition columns.
func (r *ArtistRepository) UpsertBatch(ctx context.Context, artists []catalog.Artist) error {
	if len(artists) == 0 {
		return nil
	}

	query := `
		INSERT INTO artists (
			id, name, genres, popularity, followers,
			followers_tier, popularity_bucket, genre_bucket
		)
		SELECT * FROM unnest(
			$1::text[], $2::text[], $3::text[], $4::int[], $5::bigint[],
			$6::text[], $7::int[], $8::text[]
		)
		ON CONFLICT (id) DO UPDATE SET
			name              = EXCLUDED.name,
			genres            = EXCLUDED.genres,
			popularity        = EXCLUDED.popularity,
			followers         = EXCLUDED.followers,
			followers_tier    = EXCLUDED.followers_tier,
			popularity_bucket = EXCLUDED.popularity_bucket,
			genre_bucket      = EXCLUDED.genre_bucket
	`

	n := len(artists)
	ids := make([]string, n)
	names := make([]string, n)
	genres := make([]string, n)
	popularities := make([]int, n)
	followers := make([]int64, n)
	tiers := make([]string, n)
	popBuckets := make([]int, n)
	genreBuckets := make([]string, n)

	for i, a := range artists {
		key := partition.ForArtist(a)
		ids[i] = a.ID
		names[i] = a.Name
		genres[i] = joinGenres(a.Genres)
		popularities[i] = a.Popularity
		followers[i] = int64(a.Followers)
		tiers[i] = catalog.FollowersTier(a.Followers)
		popBuckets[i] = key.PopularityBucket
		genreBuckets[i] = key.GenreBucket
	}

	_, err := r.pool.Exec(ctx, query,
		ids, names, genres, popularities, followers,
		tiers, popBuckets, genreBuckets,
	)
	if err != nil {
		return fmt.Errorf("upserting artists: %w", err)
	}
	return nil
}

// Get returns a single catalog artist.
func (r *ArtistRepository) Get(ctx context.Context, id string) (catalog.Artist, error) {
	query := `SELECT id, name, genres, popularity, followers FROM artists WHERE id = $1`
	var a catalog.Artist
	var genres string
	err := r.pool.QueryRow(ctx, query, id).Scan(&a.ID, &a.Name, &genres, &a.Popularity, &a.Followers)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Artist{}, ErrNotFound
	}
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("querying artist: %w", err)
	}
	a.Genres = splitGenres(genres)
	return a, nil
}

// All returns every catalog artist keyed by ID.
func (r *ArtistRepository) All(ctx context.Context) (map[string]catalog.Artist, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, genres, popularity, followers FROM artists`)
	if err != nil {
		return nil, fmt.Errorf("querying artists: %w", err)
	}
	defer rows.Close()

	artists := make(map[string]catalog.Artist)
	for rows.Next() {
		var a catalog.Artist
		var genres string
		if err := rows.Scan(&a.ID, &a.Name, &genres, &a.Popularity, &a.Followers); err != nil {
			return nil, fmt.Errorf("scanning artist row: %w", err)
		}
		a.Genres = splitGenres(genres)
		artists[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artist rows: %w", err)
	}
	return artists, nil
}

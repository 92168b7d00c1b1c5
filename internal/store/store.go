// Package store persists partitioned pipeline outputs in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
)

// Store wraps a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Events returns an EventRepository.
func (s *Store) Events() *EventRepository {
	return &EventRepository{pool: s.pool}
}

// Vectors returns a VectorRepository.
func (s *Store) Vectors() *VectorRepository {
	return &VectorRepository{pool: s.pool}
}

// Profiles returns a ProfileRepository.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{pool: s.pool}
}

// Artists returns an ArtistRepository.
func (s *Store) Artists() *ArtistRepository {
	return &ArtistRepository{pool: s.pool}
}

// Migrate creates the output tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS listening_events (
			user_id          TEXT NOT NULL,
			track_id         TEXT NOT NULL,
			track_name       TEXT NOT NULL DEFAULT '',
			artist_ids       TEXT NOT NULL DEFAULT '',
			artist_name      TEXT NOT NULL DEFAULT '',
			album_id         TEXT NOT NULL DEFAULT '',
			album_name       TEXT NOT NULL DEFAULT '',
			played_at        TIMESTAMPTZ NOT NULL,
			duration_ms      BIGINT NOT NULL DEFAULT 0,
			duration_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
			popularity       INT NOT NULL DEFAULT 0,
			explicit         BOOLEAN NOT NULL DEFAULT FALSE,
			play_hour        INT NOT NULL,
			play_weekday     INT NOT NULL,
			season           TEXT NOT NULL,
			source_batch_id  TEXT NOT NULL DEFAULT '',
			processed_at     TIMESTAMPTZ NOT NULL,
			popularity_bucket INT NOT NULL,
			genre_bucket     TEXT NOT NULL,
			PRIMARY KEY (user_id, track_id, played_at)
		)`,
		`CREATE TABLE IF NOT EXISTS user_feature_vectors (
			user_id           TEXT NOT NULL,
			computed_at       TIMESTAMPTZ NOT NULL,
			sparse            BOOLEAN NOT NULL,
			features          DOUBLE PRECISION[] NOT NULL,
			season            TEXT NOT NULL,
			popularity_bucket INT NOT NULL,
			genre_bucket      TEXT NOT NULL,
			PRIMARY KEY (user_id, computed_at)
		)`,
		`CREATE TABLE IF NOT EXISTS music_profiles (
			user_id          TEXT NOT NULL,
			persona          TEXT NOT NULL,
			cluster          INT NOT NULL,
			cluster_distance DOUBLE PRECISION NOT NULL,
			computed_at      TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, computed_at)
		)`,
		`CREATE TABLE IF NOT EXISTS artists (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			genres            TEXT NOT NULL DEFAULT '',
			popularity        INT NOT NULL DEFAULT 0,
			followers         BIGINT NOT NULL DEFAULT 0,
			followers_tier    TEXT NOT NULL,
			popularity_bucket INT NOT NULL,
			genre_bucket      TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}
	return nil
}

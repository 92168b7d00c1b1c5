package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ROrodrigp/spotifire/internal/feature"
	"github.com/ROrodrigp/spotifire/internal/partition"
)

// VectorRepository handles per-user feature vector rows.
type VectorRepository struct {
	pool *pgxpool.Pool
}

func insertVector(ctx context.Context, tx pgx.Tx, vec feature.Vector, key partition.Key) error {
	query := `
		INSERT INTO user_feature_vectors (
			user_id, computed_at, sparse, features,
			season, popularity_bucket, genre_bucket
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, computed_at) DO UPDATE SET
			sparse            = EXCLUDED.sparse,
			features          = EXCLUDED.features,
			season            = EXCLUDED.season,
			popularity_bucket = EXCLUDED.popularity_bucket,
			genre_bucket      = EXCLUDED.genre_bucket
	`
	_, err := tx.Exec(ctx, query,
		vec.UserID, vec.ComputedAt, vec.Sparse, vec.Values[:],
		key.Season, key.PopularityBucket, key.GenreBucket,
	)
	if err != nil {
		return fmt.Errorf("inserting feature vector: %w", err)
	}
	return nil
}

// Latest returns a user's most recent feature vector.
func (r *VectorRepository) Latest(ctx context.Context, userID string) (feature.Vector, error) {
	query := `
		SELECT user_id, computed_at, sparse, features
		FROM user_feature_vectors
		WHERE user_id = $1
		ORDER BY computed_at DESC
		LIMIT 1
	`
	vec, err := scanVector(r.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return feature.Vector{}, ErrNotFound
	}
	if err != nil {
		return feature.Vector{}, fmt.Errorf("querying latest vector: %w", err)
	}
	return vec, nil
}

// LatestAll returns the most recent feature vector for every user. Sparse
// vectors are included; training filters them out itself.
func (r *VectorRepository) LatestAll(ctx context.Context) ([]feature.Vector, error) {
	query := `
		SELECT DISTINCT ON (user_id)
			user_id, computed_at, sparse, features
		FROM user_feature_vectors
		ORDER BY user_id, computed_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying latest vectors: %w", err)
	}
	defer rows.Close()

	var vectors []feature.Vector
	for rows.Next() {
		vec, err := scanVector(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector rows: %w", err)
	}
	return vectors, nil
}

// Exists reports whether any vector is stored for the user.
func (r *VectorRepository) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_feature_vectors WHERE user_id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking vector existence: %w", err)
	}
	return exists, nil
}

func scanVector(row pgx.Row) (feature.Vector, error) {
	var vec feature.Vector
	var values []float64
	if err := row.Scan(&vec.UserID, &vec.ComputedAt, &vec.Sparse, &values); err != nil {
		return feature.Vector{}, err
	}
	if len(values) != len(vec.Values) {
		return feature.Vector{}, fmt.Errorf("stored vector has %d features, want %d", len(values), len(vec.Values))
	}
	copy(vec.Values[:], values)
	return vec, nil
}

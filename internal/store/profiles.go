package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ROrodrigp/spotifire/internal/profile"
)

// ProfileRepository handles classified music profile rows.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// execer is satisfied by both the pool and a transaction, so profile
// writes share one query between the sink and the repository.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertProfile(ctx context.Context, db execer, prof profile.Profile) error {
	query := `
		INSERT INTO music_profiles (
			user_id, persona, cluster, cluster_distance, computed_at
		)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, computed_at) DO UPDATE SET
			persona          = EXCLUDED.persona,
			cluster          = EXCLUDED.cluster,
			cluster_distance = EXCLUDED.cluster_distance
	`
	_, err := db.Exec(ctx, query,
		prof.UserID, prof.Persona.String(), prof.Cluster, prof.ClusterDistance, prof.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// Upsert writes one profile outside a sink transaction. Used when
// re-classifying stored vectors against a new model.
func (r *ProfileRepository) Upsert(ctx context.Context, prof profile.Profile) error {
	return insertProfile(ctx, r.pool, prof)
}

// Latest returns a user's most recent profile.
func (r *ProfileRepository) Latest(ctx context.Context, userID string) (profile.Profile, error) {
	query := `
		SELECT user_id, persona, cluster, cluster_distance, computed_at
		FROM music_profiles
		WHERE user_id = $1
		ORDER BY computed_at DESC
		LIMIT 1
	`
	var prof profile.Profile
	var persona string
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&prof.UserID, &persona, &prof.Cluster, &prof.ClusterDistance, &prof.ComputedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Profile{}, ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("querying latest profile: %w", err)
	}
	prof.Persona, err = profile.ParsePersona(persona)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("stored profile for %s: %w", userID, err)
	}
	return prof, nil
}

// PersonaDistribution counts users by the persona of their most recent
// profile.
func (r *ProfileRepository) PersonaDistribution(ctx context.Context) (map[profile.Persona]int, error) {
	query := `
		SELECT persona, COUNT(*)
		FROM (
			SELECT DISTINCT ON (user_id) persona
			FROM music_profiles
			ORDER BY user_id, computed_at DESC
		) latest
		GROUP BY persona
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying persona distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[profile.Persona]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scanning persona row: %w", err)
		}
		persona, err := profile.ParsePersona(name)
		if err != nil {
			return nil, fmt.Errorf("stored persona: %w", err)
		}
		dist[persona] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating persona rows: %w", err)
	}
	return dist, nil
}

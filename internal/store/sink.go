package store

import (
	"context"
	"fmt"

	"github.com/ROrodrigp/spotifire/internal/pipeline"
)

// EmitUser persists a user's full output set in one transaction so
// partial writes are never observable: either all derived rows for the
// user land, or none do.
func (s *Store) EmitUser(ctx context.Context, out pipeline.UserOutput) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertEvents(ctx, tx, out.Events, out.EventKeys); err != nil {
		return err
	}
	if err := insertVector(ctx, tx, out.Vector, out.VectorKey); err != nil {
		return err
	}
	if err := insertProfile(ctx, tx, out.Profile); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing user outputs: %w", err)
	}
	return nil
}

// HasPriorVector reports whether any feature vector exists for the user
// from an earlier run.
func (s *Store) HasPriorVector(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_feature_vectors WHERE user_id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking prior vector: %w", err)
	}
	return exists, nil
}

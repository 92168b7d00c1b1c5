// Package pipeline orchestrates batch runs: normalization, feature
// building, classification and partition-key assignment, parallel across
// user partitions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ROrodrigp/spotifire/internal/catalog"
	"github.com/ROrodrigp/spotifire/internal/feature"
	"github.com/ROrodrigp/spotifire/internal/genre"
	"github.com/ROrodrigp/spotifire/internal/normalize"
	"github.com/ROrodrigp/spotifire/internal/partition"
	"github.com/ROrodrigp/spotifire/internal/profile"
)

// UserOutput is the complete set of derived artifacts for one user. A
// sink must persist it atomically: either all rows land or none do.
type UserOutput struct {
	UserID    string
	Events    []normalize.Event
	EventKeys []partition.Key
	Vector    feature.Vector
	VectorKey partition.Key
	Profile   profile.Profile
}

// Sink receives per-user outputs. Implementations must make EmitUser
// all-or-nothing per call.
type Sink interface {
	EmitUser(ctx context.Context, out UserOutput) error
	HasPriorVector(ctx context.Context, userID string) (bool, error)
}

// DiscardSink drops all outputs; used for dry runs.
type DiscardSink struct{}

func (DiscardSink) EmitUser(context.Context, UserOutput) error { return nil }

func (DiscardSink) HasPriorVector(context.Context, string) (bool, error) { return false, nil }

// Summary aggregates run-level counters. Expected data-quality
// conditions (dropped records, sparse users) land here instead of
// failing the run.
type Summary struct {
	RunID            string
	AsOf             time.Time
	UsersProcessed   int
	UsersFailed      int
	RawRecords       int
	DroppedRecords   int
	DuplicateRecords int
	SparseUsers      int
	Personas         map[string]int
}

// Runner executes batch runs. The model is loaded once and shared
// read-only by all workers; everything else is per-user state.
type Runner struct {
	Model   *profile.Model
	Artists map[string]catalog.Artist
	Sink    Sink
	Workers int
	Log     *logrus.Logger
}

// Run processes one batch window. Raw events arrive grouped by user
// because deduplication needs a complete view of a user's events; the
// user partition is the unit of parallel work. The as-of timestamp
// controls feature-window cutoffs.
//
// Per-user failures are counted, not raised. Only contract-level errors
// (an invalid model) abort the batch.
func (r *Runner) Run(ctx context.Context, rawByUser map[string][]normalize.RawEvent, asOf time.Time) (*Summary, error) {
	if r.Sink == nil {
		return nil, errors.New("pipeline: nil sink")
	}
	if r.Model == nil {
		return nil, errors.New("pipeline: nil model")
	}
	if err := r.Model.Validate(feature.Names()); err != nil {
		return nil, err
	}

	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	userIDs := make([]string, 0, len(rawByUser))
	for userID := range rawByUser {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	summary := &Summary{
		RunID:    uuid.NewString(),
		AsOf:     asOf,
		Personas: make(map[string]int),
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		work = make(chan string)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range work {
				result, err := r.processUser(ctx, userID, rawByUser[userID], asOf, log)

				mu.Lock()
				summary.RawRecords += len(rawByUser[userID])
				if err != nil {
					summary.UsersFailed++
					log.WithField("user_id", userID).WithError(err).Error("user partition failed")
					mu.Unlock()
					continue
				}
				summary.UsersProcessed++
				summary.DroppedRecords += result.dropped
				summary.DuplicateRecords += result.duplicates
				if result.output.Vector.Sparse {
					summary.SparseUsers++
				}
				summary.Personas[result.output.Profile.Persona.String()]++
				mu.Unlock()
			}
		}()
	}

	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return summary, ctx.Err()
		case work <- userID:
		}
	}
	close(work)
	wg.Wait()

	log.WithFields(logrus.Fields{
		"run_id":     summary.RunID,
		"users_ok":   summary.UsersProcessed,
		"users_fail": summary.UsersFailed,
		"dropped":    summary.DroppedRecords,
		"duplicates": summary.DuplicateRecords,
		"sparse":     summary.SparseUsers,
	}).Info("batch run complete")

	return summary, nil
}

type userResult struct {
	output     UserOutput
	dropped    int
	duplicates int
}

// processUser runs the full per-user fold: normalize, build features,
// classify, derive partition keys, emit. Nothing is emitted on error.
func (r *Runner) processUser(ctx context.Context, userID string, raw []normalize.RawEvent, asOf time.Time, log *logrus.Logger) (userResult, error) {
	normalized := normalize.Normalize(raw, log)

	vector, err := feature.Build(userID, normalized.Events, r.Artists, asOf)
	if errors.Is(err, feature.ErrInsufficientData) {
		hasPrior, priorErr := r.Sink.HasPriorVector(ctx, userID)
		if priorErr != nil {
			return userResult{}, fmt.Errorf("checking prior vector: %w", priorErr)
		}
		if !hasPrior {
			log.WithField("user_id", userID).Info("no event history, assigning default profile")
		}
		// Either way the sparse vector stands in; the run never fails
		// for missing history.
	} else if err != nil {
		return userResult{}, fmt.Errorf("building features: %w", err)
	}

	prof, err := r.Model.Classify(vector)
	if err != nil {
		return userResult{}, fmt.Errorf("classifying user: %w", err)
	}

	eventKeys := make([]partition.Key, len(normalized.Events))
	for i, ev := range normalized.Events {
		eventKeys[i] = partition.ForEvent(ev, r.Artists)
	}

	out := UserOutput{
		UserID:    userID,
		Events:    normalized.Events,
		EventKeys: eventKeys,
		Vector:    vector,
		VectorKey: partition.ForVector(vector, r.topGenre(normalized.Events, asOf)),
		Profile:   prof,
	}

	if err := r.Sink.EmitUser(ctx, out); err != nil {
		return userResult{}, fmt.Errorf("emitting user outputs: %w", err)
	}

	return userResult{
		output:     out,
		dropped:    normalized.Dropped,
		duplicates: normalized.Duplicates,
	}, nil
}

// topGenre finds the dominant genre category across a user's window by
// summing scored weights per play.
func (r *Runner) topGenre(events []normalize.Event, asOf time.Time) genre.Category {
	totals := make(map[genre.Category]float64)
	for _, ev := range events {
		if ev.PlayedAt.After(asOf) || len(ev.ArtistIDs) == 0 {
			continue
		}
		popularity := genre.NeutralPopularity
		var rawGenres []string
		if artist, ok := r.Artists[ev.ArtistIDs[0]]; ok {
			popularity = artist.Popularity
			rawGenres = artist.Genres
		}
		weights, err := genre.Score(rawGenres, popularity)
		if err != nil {
			continue
		}
		for _, w := range weights {
			totals[w.Category] += w.Weight
		}
	}

	best := genre.Underground
	bestWeight := 0.0
	for c := genre.Pop; c <= genre.Underground; c++ {
		if totals[c] > bestWeight {
			best = c
			bestWeight = totals[c]
		}
	}
	return best
}

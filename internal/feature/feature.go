// Package feature aggregates a user's normalized listening events into a
// fixed-width behavioral feature vector.
package feature

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/ROrodrigp/spotifire/internal/catalog"
	"github.com/ROrodrigp/spotifire/internal/genre"
	"github.com/ROrodrigp/spotifire/internal/normalize"
)

// ErrInsufficientData is returned when a user has no event history at all.
// Callers with a prior vector on record should degrade to the sparse case
// instead of failing the run.
var ErrInsufficientData = errors.New("no listening events for user")

// undergroundPopularity is the artist popularity below which a play counts
// as underground.
const undergroundPopularity = 30

// Feature indexes into Vector.Values. Names() returns the matching
// storage names in the same order; the classifier's model artifact must
// declare the identical schema.
const (
	NightPlayFraction = iota
	WeekendFraction
	HourEntropy
	DistinctArtistRatio
	GenreDiversity
	MeanArtistPopularity
	UndergroundFraction
	PlayCount7d
	PlayCount30d
	numFeatures
)

var featureNames = [numFeatures]string{
	"night_play_fraction",
	"weekend_fraction",
	"hour_entropy",
	"distinct_artist_ratio",
	"genre_diversity",
	"mean_artist_popularity",
	"underground_fraction",
	"play_count_7d",
	"play_count_30d",
}

// Names returns the fixed, ordered feature schema.
func Names() []string {
	names := make([]string, numFeatures)
	copy(names, featureNames[:])
	return names
}

// Vector is a user's behavioral feature vector for one computation run.
// Vectors are immutable once computed; a later run supersedes the prior
// one by ComputedAt, it never mutates it.
type Vector struct {
	UserID     string
	ComputedAt time.Time
	Sparse     bool // no events in the window; values are neutral defaults
	Values     [numFeatures]float64
}

// Value returns the named feature, or 0 for an unknown name.
func (v Vector) Value(name string) float64 {
	for i, n := range featureNames {
		if n == name {
			return v.Values[i]
		}
	}
	return 0
}

// Build computes a user's feature vector from events already normalized
// and ordered ascending by played_at. Events after asOf are excluded so a
// vector never leaks future plays. Artists missing from the lookup fall
// back to a neutral popularity and the genre fallback path.
//
// A user with zero events in the window gets a sparse all-defaults vector;
// Build returns ErrInsufficientData (alongside the sparse vector) only
// when the events slice itself is empty.
func Build(userID string, events []normalize.Event, artists map[string]catalog.Artist, asOf time.Time) (Vector, error) {
	v := Vector{UserID: userID, ComputedAt: asOf, Sparse: true}
	if len(events) == 0 {
		return v, ErrInsufficientData
	}

	var (
		plays          int
		nightPlays     int
		weekendPlays   int
		hourCounts     [24]int
		artistsSeen    = map[string]struct{}{}
		categoryWeight = map[genre.Category]float64{}
		popularitySum  float64
		underground    int
		plays7d        int
		plays30d       int
	)

	cutoff7d := asOf.AddDate(0, 0, -7)
	cutoff30d := asOf.AddDate(0, 0, -30)

	for _, ev := range events {
		if ev.PlayedAt.After(asOf) {
			continue
		}
		plays++
		if normalize.IsNight(ev.PlayHour) {
			nightPlays++
		}
		if normalize.IsWeekend(ev.PlayWeekday) {
			weekendPlays++
		}
		hourCounts[ev.PlayHour%24]++
		if ev.PlayedAt.After(cutoff7d) {
			plays7d++
		}
		if ev.PlayedAt.After(cutoff30d) {
			plays30d++
		}

		artistID := primaryArtist(ev)
		if artistID != "" {
			artistsSeen[artistID] = struct{}{}
		}

		popularity := genre.NeutralPopularity
		var rawGenres []string
		if artist, ok := artists[artistID]; ok {
			popularity = artist.Popularity
			rawGenres = artist.Genres
		}
		popularitySum += float64(popularity)
		if popularity < undergroundPopularity {
			underground++
		}

		if weights, err := genre.Score(rawGenres, popularity); err == nil {
			for _, w := range weights {
				categoryWeight[w.Category] += w.Weight
			}
		}
	}

	if plays == 0 {
		return v, nil
	}

	total := float64(plays)
	v.Sparse = false
	v.Values[NightPlayFraction] = float64(nightPlays) / total
	v.Values[WeekendFraction] = float64(weekendPlays) / total
	v.Values[HourEntropy] = entropyInts(hourCounts[:], plays)
	v.Values[DistinctArtistRatio] = float64(len(artistsSeen)) / total
	v.Values[GenreDiversity] = entropyWeights(categoryWeight, total)
	v.Values[MeanArtistPopularity] = popularitySum / total
	v.Values[UndergroundFraction] = float64(underground) / total
	v.Values[PlayCount7d] = float64(plays7d)
	v.Values[PlayCount30d] = float64(plays30d)

	return v, nil
}

// primaryArtist returns the first listed artist of an event.
func primaryArtist(ev normalize.Event) string {
	if len(ev.ArtistIDs) == 0 {
		return ""
	}
	return ev.ArtistIDs[0]
}

// entropyInts computes Shannon entropy (base 2) of an integer histogram.
func entropyInts(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// entropyWeights computes Shannon entropy (base 2) of a weight
// distribution normalized by the given total mass. Categories are summed
// in fixed declaration order so the result is bitwise reproducible.
func entropyWeights(weights map[genre.Category]float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	categories := make([]genre.Category, 0, len(weights))
	for c := range weights {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	var h float64
	for _, c := range categories {
		w := weights[c]
		if w <= 0 {
			continue
		}
		p := w / total
		h -= p * math.Log2(p)
	}
	return h
}

// Package partition derives storage partition keys for pipeline outputs.
package partition

import (
	"github.com/ROrodrigp/spotifire/internal/catalog"
	"github.com/ROrodrigp/spotifire/internal/feature"
	"github.com/ROrodrigp/spotifire/internal/genre"
	"github.com/ROrodrigp/spotifire/internal/normalize"
)

// Key is the derived partition tuple attached to output records. It is
// computed, never stored independently, and never alters record contents.
type Key struct {
	UserID           string
	Season           string
	PopularityBucket int
	GenreBucket      string
}

// PopularityBucket floors a popularity value to its decade: 47 -> 40,
// 100 -> 100. This matches the client-side display bucketing.
func PopularityBucket(popularity int) int {
	if popularity < 0 {
		return 0
	}
	return popularity / 10 * 10
}

// ForEvent derives the partition key of a normalized listening event.
// Season is reused from the normalizer, not recomputed. The genre bucket
// is the top-weight category scored from the event's primary artist.
// When the primary artist is in the catalog, its popularity drives the
// bucket, matching what the genre scorer and feature builder use; the
// event's track popularity only stands in when the artist is missing.
func ForEvent(ev normalize.Event, artists map[string]catalog.Artist) Key {
	popularity := ev.Popularity
	var rawGenres []string

	if len(ev.ArtistIDs) > 0 {
		if artist, ok := artists[ev.ArtistIDs[0]]; ok {
			rawGenres = artist.Genres
			popularity = artist.Popularity
		}
	}

	return Key{
		UserID:           ev.UserID,
		Season:           ev.Season,
		PopularityBucket: PopularityBucket(popularity),
		GenreBucket:      topCategory(rawGenres, popularity).String(),
	}
}

// ForArtist derives the partition key of an artist catalog record.
// Artist records are not user-scoped, so UserID stays empty, and they
// carry no timestamp, so Season does too.
func ForArtist(a catalog.Artist) Key {
	return Key{
		PopularityBucket: PopularityBucket(a.Popularity),
		GenreBucket:      topCategory(a.Genres, a.Popularity).String(),
	}
}

// ForVector derives the partition key of a user feature vector. The
// popularity bucket comes from the vector's mean artist popularity and
// the season from its computation time.
func ForVector(v feature.Vector, topGenre genre.Category) Key {
	return Key{
		UserID:           v.UserID,
		Season:           normalize.Season(v.ComputedAt.Month()),
		PopularityBucket: PopularityBucket(int(v.Value("mean_artist_popularity"))),
		GenreBucket:      topGenre.String(),
	}
}

// topCategory scores raw genres and returns the highest-weight category,
// clamping out-of-range popularity to the neutral default first so key
// derivation never fails.
func topCategory(rawGenres []string, popularity int) genre.Category {
	if popularity < 0 || popularity > 100 {
		popularity = genre.NeutralPopularity
	}
	weights, err := genre.Score(rawGenres, popularity)
	if err != nil {
		return genre.Underground
	}
	return genre.Top(weights)
}

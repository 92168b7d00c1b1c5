// Package genre assigns weighted category labels to artists based on
// their raw genre tags.
package genre

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ErrInvalidPopularity is returned when a popularity value is outside [0,100].
var ErrInvalidPopularity = errors.New("popularity out of range")

// NeutralPopularity is used when an artist's popularity is unknown,
// e.g. the artist is missing from the catalog.
const NeutralPopularity = 50

// mainstreamThreshold decides the fallback category for artists with no
// matching genre keywords.
const mainstreamThreshold = 70

// Category is a fixed genre taxonomy bucket. Declaration order doubles as
// the tie-break priority when two categories score equally.
type Category int

const (
	Pop Category = iota
	Rock
	Electronic
	HipHop
	Latin
	JazzBlues
	CountryFolk
	Classical
	Reggae
	World
	// Mainstream and Underground are synthetic fallback categories for
	// artists whose raw genres match no keyword; the popularity value
	// picks between them.
	Mainstream
	Underground
)

var categoryNames = map[Category]string{
	Pop:         "pop",
	Rock:        "rock",
	Electronic:  "electronic",
	HipHop:      "hip_hop",
	Latin:       "latin",
	JazzBlues:   "jazz_blues",
	CountryFolk: "country_folk",
	Classical:   "classical",
	Reggae:      "reggae",
	World:       "world",
	Mainstream:  "mainstream",
	Underground: "underground",
}

// String returns the lowercase storage name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Weight is one entry of a scored genre distribution.
type Weight struct {
	Category Category
	Weight   float64
}

// rule maps keyword patterns to a category with a vote weight. More
// specific patterns carry a higher weight so that "indie rock" outvotes a
// bare "indie" match.
type rule struct {
	patterns []string
	category Category
	weight   float64
}

// scoringRules is the fixed keyword-to-category table. Matching is
// case-insensitive substring containment, so a single raw genre may vote
// for several categories ("pop rap" votes Pop and HipHop, "synthpop"
// still counts as Pop). A rule votes at most once per raw genre, and
// patterns listed in wholeWordPatterns match whole words only.
var scoringRules = []rule{
	{[]string{"reggaeton", "bachata", "salsa", "merengue", "cumbia", "tango"}, Latin, 10},
	{[]string{"bossa nova", "flamenco", "fado"}, Latin, 9},
	{[]string{"latin", "latino", "spanish", "mexican", "colombian", "argentinian"}, Latin, 8},

	{[]string{"k-pop", "j-pop"}, Pop, 9},
	{[]string{"pop"}, Pop, 7},
	{[]string{"mainstream", "chart", "commercial"}, Pop, 5},

	{[]string{"heavy metal", "death metal", "black metal", "power metal"}, Rock, 10},
	{[]string{"indie rock", "alternative rock", "punk rock", "prog rock"}, Rock, 9},
	{[]string{"rock", "metal"}, Rock, 7},
	{[]string{"alternative", "indie", "punk", "grunge"}, Rock, 6},

	{[]string{"house", "techno", "trance", "dubstep", "drum and bass"}, Electronic, 10},
	{[]string{"electronic", "edm", "electronica"}, Electronic, 8},
	{[]string{"dance", "club", "synthesizer", "ambient"}, Electronic, 5},

	{[]string{"hip hop", "rap", "trap", "drill", "grime"}, HipHop, 10},
	{[]string{"urban", "street"}, HipHop, 6},

	{[]string{"neo soul", "jazz fusion", "smooth jazz", "bebop"}, JazzBlues, 9},
	{[]string{"jazz", "blues", "soul", "funk"}, JazzBlues, 8},
	{[]string{"swing", "dixieland", "gospel"}, JazzBlues, 7},

	{[]string{"country", "folk", "americana", "bluegrass"}, CountryFolk, 8},
	{[]string{"acoustic", "roots", "singer-songwriter"}, CountryFolk, 4},

	{[]string{"african", "indian", "middle eastern", "celtic"}, World, 9},
	{[]string{"world", "traditional", "ethnic", "international"}, World, 8},

	{[]string{"reggae", "ska", "dancehall"}, Reggae, 10},
	{[]string{"jamaican", "dub"}, Reggae, 8},

	{[]string{"classical", "orchestral", "opera", "symphony", "baroque"}, Classical, 10},
	{[]string{"instrumental", "chamber music"}, Classical, 8},
}

// wholeWordPatterns lists patterns where containment would cross
// categories: "dub" sits inside "dubstep" and "dance" inside
// "dancehall", both of which belong elsewhere in the table.
var wholeWordPatterns = map[string]bool{
	"dub":   true,
	"dance": true,
}

func matchesPattern(g, pattern string) bool {
	if !wholeWordPatterns[pattern] {
		return strings.Contains(g, pattern)
	}
	for _, word := range strings.FieldsFunc(g, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if word == pattern {
			return true
		}
	}
	return false
}

// Score assigns a normalized category distribution to an artist given its
// raw genre tags. Weights are non-negative and sum to 1.0. When no raw
// genre matches any keyword, the popularity value picks a single synthetic
// fallback category with weight 1.0.
//
// Score is pure; it returns ErrInvalidPopularity if popularity is outside
// [0,100].
func Score(rawGenres []string, popularity int) ([]Weight, error) {
	if popularity < 0 || popularity > 100 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPopularity, popularity)
	}

	votes := make(map[Category]float64)
	var total float64

	for _, raw := range rawGenres {
		g := strings.ToLower(strings.TrimSpace(raw))
		if g == "" {
			continue
		}
		for _, r := range scoringRules {
			for _, pattern := range r.patterns {
				if matchesPattern(g, pattern) {
					votes[r.category] += r.weight
					total += r.weight
					break // one vote per rule per raw genre
				}
			}
		}
	}

	if total == 0 {
		return []Weight{{Category: Fallback(popularity), Weight: 1.0}}, nil
	}

	weights := make([]Weight, 0, len(votes))
	for category, v := range votes {
		weights = append(weights, Weight{Category: category, Weight: v / total})
	}

	// Highest weight first; equal weights fall back to the fixed category
	// order so output is deterministic regardless of input order.
	sort.Slice(weights, func(i, j int) bool {
		if weights[i].Weight != weights[j].Weight {
			return weights[i].Weight > weights[j].Weight
		}
		return weights[i].Category < weights[j].Category
	})

	return weights, nil
}

// Fallback returns the synthetic category for an artist with no matched
// genre keywords.
func Fallback(popularity int) Category {
	if popularity >= mainstreamThreshold {
		return Mainstream
	}
	return Underground
}

// Top returns the highest-weight category of a scored distribution, or
// Underground when the distribution is empty.
func Top(weights []Weight) Category {
	if len(weights) == 0 {
		return Underground
	}
	return weights[0].Category
}

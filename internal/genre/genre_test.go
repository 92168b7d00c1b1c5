package genre

import (
	"errors"
	"math"
	"testing"
)

func TestScoreWeightsSumToOne(t *testing.T) {
	tests := []struct {
		name       string
		rawGenres  []string
		popularity int
	}{
		{"single genre", []string{"indie rock"}, 50},
		{"multiple genres", []string{"deep house", "techno", "pop rap"}, 40},
		{"overlapping votes", []string{"latin pop", "reggaeton", "pop"}, 80},
		{"no match fallback", []string{"vaporcore zzz"}, 10},
		{"empty genres", nil, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights, err := Score(tt.rawGenres, tt.popularity)
			if err != nil {
				t.Fatalf("Score() error: %v", err)
			}
			if len(weights) == 0 {
				t.Fatal("Score() returned empty distribution")
			}
			var sum float64
			for _, w := range weights {
				if w.Weight < 0 {
					t.Errorf("negative weight %f for %s", w.Weight, w.Category)
				}
				sum += w.Weight
			}
			if math.Abs(sum-1.0) > 1e-9 {
				t.Errorf("weights sum to %f, want 1.0", sum)
			}
		})
	}
}

func TestScoreElectronicGenres(t *testing.T) {
	weights, err := Score([]string{"deep house", "techno"}, 40)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if len(weights) != 1 {
		t.Fatalf("got %d categories, want 1", len(weights))
	}
	if weights[0].Category != Electronic {
		t.Errorf("top category = %s, want electronic", weights[0].Category)
	}
	if math.Abs(weights[0].Weight-1.0) > 1e-9 {
		t.Errorf("electronic weight = %f, want 1.0", weights[0].Weight)
	}
}

func TestScoreCompoundGenresStayInCategory(t *testing.T) {
	// "dub" and "dance" only match whole words, so compound genres that
	// contain them do not leak votes into Reggae or Electronic.
	tests := []struct {
		name      string
		rawGenres []string
		want      Category
	}{
		{"dubstep is electronic", []string{"dubstep"}, Electronic},
		{"dancehall is reggae", []string{"dancehall"}, Reggae},
		{"dub alone is reggae", []string{"dub"}, Reggae},
		{"dance alone is electronic", []string{"dance"}, Electronic},
		{"dub techno splits", []string{"dub techno"}, Electronic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights, err := Score(tt.rawGenres, 50)
			if err != nil {
				t.Fatalf("Score() error: %v", err)
			}
			if got := Top(weights); got != tt.want {
				t.Errorf("top category = %s, want %s", got, tt.want)
			}
		})
	}

	weights, err := Score([]string{"dubstep"}, 50)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if len(weights) != 1 {
		t.Fatalf("dubstep scored %d categories, want electronic only", len(weights))
	}
}

func TestScoreOneVotePerRule(t *testing.T) {
	// "trap" contains the "rap" pattern from the same rule; the rule
	// must vote once, keeping the hip hop share at 10/18 against jazz.
	weights, err := Score([]string{"trap", "jazz"}, 50)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if len(weights) != 2 {
		t.Fatalf("got %d categories, want 2", len(weights))
	}
	if weights[0].Category != HipHop {
		t.Fatalf("top category = %s, want hip_hop", weights[0].Category)
	}
	if math.Abs(weights[0].Weight-10.0/18.0) > 1e-9 {
		t.Errorf("hip_hop weight = %f, want %f", weights[0].Weight, 10.0/18.0)
	}
}

func TestScoreFallback(t *testing.T) {
	tests := []struct {
		name       string
		rawGenres  []string
		popularity int
		want       Category
	}{
		{"popular artist no genres", nil, 85, Mainstream},
		{"obscure artist no genres", nil, 20, Underground},
		{"threshold exactly", nil, 70, Mainstream},
		{"just below threshold", nil, 69, Underground},
		{"unmatched genres", []string{"nullwave"}, 90, Mainstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights, err := Score(tt.rawGenres, tt.popularity)
			if err != nil {
				t.Fatalf("Score() error: %v", err)
			}
			if len(weights) != 1 {
				t.Fatalf("got %d categories, want 1", len(weights))
			}
			if weights[0].Category != tt.want {
				t.Errorf("category = %s, want %s", weights[0].Category, tt.want)
			}
			if weights[0].Weight != 1.0 {
				t.Errorf("weight = %f, want 1.0", weights[0].Weight)
			}
		})
	}
}

func TestScoreInvalidPopularity(t *testing.T) {
	for _, popularity := range []int{-1, 101, 500} {
		_, err := Score([]string{"pop"}, popularity)
		if !errors.Is(err, ErrInvalidPopularity) {
			t.Errorf("Score(popularity=%d) error = %v, want ErrInvalidPopularity", popularity, err)
		}
	}
}

func TestScoreDeterministicTieBreak(t *testing.T) {
	// "jazz rap" votes hip_hop (rap, 10) and jazz_blues (jazz, 8);
	// "rap jazz" must produce the identical distribution.
	a, err := Score([]string{"jazz rap"}, 50)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	b, err := Score([]string{"rap jazz"}, 50)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("distributions differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("entry %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
	if a[0].Category != HipHop {
		t.Errorf("top category = %s, want hip_hop", a[0].Category)
	}
}

func TestScoreMultipleCategories(t *testing.T) {
	// "pop rock" votes pop (7) and rock (7): equal weights broken by
	// category order, pop first.
	weights, err := Score([]string{"pop rock"}, 60)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if len(weights) != 2 {
		t.Fatalf("got %d categories, want 2", len(weights))
	}
	if weights[0].Category != Pop || weights[1].Category != Rock {
		t.Errorf("order = [%s %s], want [pop rock]", weights[0].Category, weights[1].Category)
	}
	if weights[0].Weight != weights[1].Weight {
		t.Errorf("expected equal weights, got %f and %f", weights[0].Weight, weights[1].Weight)
	}
}

func TestTop(t *testing.T) {
	weights, err := Score([]string{"salsa", "pop"}, 50)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if got := Top(weights); got != Latin {
		t.Errorf("Top() = %s, want latin", got)
	}
	if got := Top(nil); got != Underground {
		t.Errorf("Top(nil) = %s, want underground", got)
	}
}

package profile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ROrodrigp/spotifire/internal/feature"
)

// syntheticVectors builds a population with five clearly separated
// behavioral groups, n users per group.
func syntheticVectors(n int) []feature.Vector {
	computedAt := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	var vectors []feature.Vector

	add := func(group int, jitter float64) {
		v := feature.Vector{UserID: "u", ComputedAt: computedAt}
		switch group {
		case 0: // mainstream: high popularity, daytime, modest volume
			v.Values[feature.MeanArtistPopularity] = 85 + jitter
			v.Values[feature.PlayCount30d] = 40 + jitter
			v.Values[feature.NightPlayFraction] = 0.1
		case 1: // underground: low popularity, many underground plays
			v.Values[feature.MeanArtistPopularity] = 20 + jitter
			v.Values[feature.UndergroundFraction] = 0.8
			v.Values[feature.DistinctArtistRatio] = 0.7
			v.Values[feature.PlayCount30d] = 60 + jitter
		case 2: // addict: very high volume
			v.Values[feature.MeanArtistPopularity] = 55 + jitter
			v.Values[feature.PlayCount30d] = 400 + 10*jitter
			v.Values[feature.PlayCount7d] = 100 + jitter
		case 3: // night owl
			v.Values[feature.MeanArtistPopularity] = 50 + jitter
			v.Values[feature.NightPlayFraction] = 0.9
			v.Values[feature.PlayCount30d] = 50 + jitter
		case 4: // casual: low everything
			v.Values[feature.MeanArtistPopularity] = 55 + jitter
			v.Values[feature.PlayCount30d] = 10 + jitter
		}
		vectors = append(vectors, v)
	}

	for group := 0; group < 5; group++ {
		for i := 0; i < n; i++ {
			add(group, float64(i%3))
		}
	}
	return vectors
}

func TestTrainProducesValidModel(t *testing.T) {
	m, err := Train(syntheticVectors(10), "v-test")
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}

	if err := m.Validate(feature.Names()); err != nil {
		t.Fatalf("trained model invalid: %v", err)
	}
	if len(m.Centroids) != NumClusters {
		t.Errorf("got %d centroids, want %d", len(m.Centroids), NumClusters)
	}

	// Every persona label appears exactly once in the mapping.
	seen := map[string]int{}
	for _, key := range m.Personas {
		seen[key]++
	}
	for _, p := range []Persona{CasualListener, MainstreamExplorer, UndergroundHunter, MusicAddict, NightOwl} {
		if seen[p.String()] != 1 {
			t.Errorf("persona %s mapped %d times, want 1", p, seen[p.String()])
		}
	}
}

func TestTrainRejectsTinyPopulation(t *testing.T) {
	vectors := syntheticVectors(10)[:3]
	if _, err := Train(vectors, "v-test"); err == nil {
		t.Error("expected error for population smaller than k")
	}
}

func TestTrainExcludesSparseVectors(t *testing.T) {
	vectors := syntheticVectors(10)
	for i := 0; i < 4; i++ {
		vectors = append(vectors, feature.Vector{UserID: "sparse", Sparse: true})
	}

	m, err := Train(vectors, "v-test")
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	if err := m.Validate(feature.Names()); err != nil {
		t.Errorf("trained model invalid: %v", err)
	}
}

func TestModelRoundTrip(t *testing.T) {
	m, err := Train(syntheticVectors(10), "v-roundtrip")
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := SaveModel(m, path); err != nil {
		t.Fatalf("SaveModel() error: %v", err)
	}

	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel() error: %v", err)
	}
	if loaded.Version != m.Version {
		t.Errorf("version = %q, want %q", loaded.Version, m.Version)
	}

	// A vector classified by the original and reloaded model must agree.
	v := syntheticVectors(1)[2] // the addict group
	a, err := m.Classify(v)
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	b, err := loaded.Classify(v)
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if a.Persona != b.Persona || a.Cluster != b.Cluster {
		t.Errorf("classification changed after round trip: %+v vs %+v", a, b)
	}
}

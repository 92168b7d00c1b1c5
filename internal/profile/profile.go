// Package profile assigns music personality profiles to users by
// nearest-centroid classification over behavioral feature vectors.
package profile

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ROrodrigp/spotifire/internal/feature"
)

// ErrModelMismatch is returned when a model artifact's feature schema
// does not match the current feature set. This is fatal to a run: a stale
// model must never silently misclassify.
var ErrModelMismatch = errors.New("model feature schema mismatch")

// SparseDistance marks profiles assigned without running the distance
// computation (sparse vectors).
const SparseDistance = -1

// Persona is one of the five fixed music personality labels.
type Persona int

const (
	CasualListener Persona = iota
	MainstreamExplorer
	UndergroundHunter
	MusicAddict
	NightOwl
)

var personaKeys = map[Persona]string{
	CasualListener:     "casual_listener",
	MainstreamExplorer: "mainstream_explorer",
	UndergroundHunter:  "underground_hunter",
	MusicAddict:        "music_addict",
	NightOwl:           "night_owl",
}

var personaByKey = func() map[string]Persona {
	m := make(map[string]Persona, len(personaKeys))
	for p, k := range personaKeys {
		m[k] = p
	}
	return m
}()

// String returns the persona's storage key.
func (p Persona) String() string {
	if k, ok := personaKeys[p]; ok {
		return k
	}
	return fmt.Sprintf("persona(%d)", int(p))
}

// ParsePersona converts a storage key back to a Persona.
func ParsePersona(key string) (Persona, error) {
	if p, ok := personaByKey[key]; ok {
		return p, nil
	}
	return CasualListener, fmt.Errorf("unknown persona %q", key)
}

// Info carries display metadata for a persona.
type Info struct {
	Key         string
	Name        string
	Description string
}

var personaInfo = map[Persona]Info{
	MainstreamExplorer: {
		Key:         "mainstream_explorer",
		Name:        "Mainstream Explorer",
		Description: "Follows the hits of the moment and current musical trends",
	},
	UndergroundHunter: {
		Key:         "underground_hunter",
		Name:        "Underground Hunter",
		Description: "Discovers artists before anyone else and prefers alternative music",
	},
	MusicAddict: {
		Key:         "music_addict",
		Name:        "Music Addict",
		Description: "Music is life - listens constantly and to everything",
	},
	NightOwl: {
		Key:         "night_owl",
		Name:        "Night Owl",
		Description: "Peak listening happens late at night",
	},
	CasualListener: {
		Key:         "casual_listener",
		Name:        "Casual Listener",
		Description: "Background listening, prefers the known and familiar",
	},
}

// Describe returns display metadata for a persona.
func Describe(p Persona) Info {
	return personaInfo[p]
}

// Personas returns all personas in declaration order.
func Personas() []Persona {
	return []Persona{CasualListener, MainstreamExplorer, UndergroundHunter, MusicAddict, NightOwl}
}

// Profile is a user's persona assignment for one computation run. One
// active profile per user; history is retained by ComputedAt.
type Profile struct {
	UserID          string
	Persona         Persona
	Cluster         int // -1 for sparse assignments
	ClusterDistance float64
	ComputedAt      time.Time
}

// Model is a trained cluster model artifact: k centroids in standardized
// feature space, the per-feature standardization parameters frozen at
// training time, and the fixed cluster-to-persona mapping. It is
// read-only during an inference run and safe to share across workers.
type Model struct {
	Version      string      `json:"version"`
	TrainedAt    time.Time   `json:"trained_at"`
	FeatureNames []string    `json:"feature_names"`
	Means        []float64   `json:"means"`
	StdDevs      []float64   `json:"std_devs"`
	Centroids    [][]float64 `json:"centroids"`
	Personas     []string    `json:"personas"` // cluster index -> persona key
}

// Validate checks the model's internal consistency and that its feature
// schema matches the given one. A mismatch aborts the whole run.
func (m *Model) Validate(schema []string) error {
	if len(m.FeatureNames) != len(schema) {
		return fmt.Errorf("%w: model has %d features, pipeline has %d",
			ErrModelMismatch, len(m.FeatureNames), len(schema))
	}
	for i, name := range schema {
		if m.FeatureNames[i] != name {
			return fmt.Errorf("%w: feature %d is %q, pipeline expects %q",
				ErrModelMismatch, i, m.FeatureNames[i], name)
		}
	}
	if len(m.Means) != len(schema) || len(m.StdDevs) != len(schema) {
		return fmt.Errorf("%w: standardization parameters have wrong width", ErrModelMismatch)
	}
	if len(m.Centroids) == 0 || len(m.Centroids) != len(m.Personas) {
		return fmt.Errorf("%w: %d centroids but %d persona labels",
			ErrModelMismatch, len(m.Centroids), len(m.Personas))
	}
	for i, c := range m.Centroids {
		if len(c) != len(schema) {
			return fmt.Errorf("%w: centroid %d has width %d, want %d",
				ErrModelMismatch, i, len(c), len(schema))
		}
	}
	for _, key := range m.Personas {
		if _, err := ParsePersona(key); err != nil {
			return fmt.Errorf("%w: %v", ErrModelMismatch, err)
		}
	}
	return nil
}

// Classify assigns a persona to a feature vector by nearest-centroid
// Euclidean distance in standardized feature space. Sparse vectors bypass
// the distance computation and receive Casual Listener with the sentinel
// distance.
func (m *Model) Classify(v feature.Vector) (Profile, error) {
	if v.Sparse {
		return Profile{
			UserID:          v.UserID,
			Persona:         CasualListener,
			Cluster:         -1,
			ClusterDistance: SparseDistance,
			ComputedAt:      v.ComputedAt,
		}, nil
	}

	if err := m.Validate(feature.Names()); err != nil {
		return Profile{}, err
	}

	standardized := m.standardize(v.Values[:])

	best := 0
	bestDist := math.Inf(1)
	for i, centroid := range m.Centroids {
		d := euclidean(standardized, centroid)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}

	persona, err := ParsePersona(m.Personas[best])
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrModelMismatch, err)
	}

	return Profile{
		UserID:          v.UserID,
		Persona:         persona,
		Cluster:         best,
		ClusterDistance: bestDist,
		ComputedAt:      v.ComputedAt,
	}, nil
}

// standardize applies the training-time z-score parameters. A zero
// standard deviation (constant feature in training data) passes the
// centered value through unscaled.
func (m *Model) standardize(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, x := range values {
		sd := m.StdDevs[i]
		if sd == 0 {
			out[i] = x - m.Means[i]
			continue
		}
		out[i] = (x - m.Means[i]) / sd
	}
	return out
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

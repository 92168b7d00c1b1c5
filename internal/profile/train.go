package profile

import (
	"fmt"
	"math"
	"time"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/ROrodrigp/spotifire/internal/feature"
)

// NumClusters is fixed: one cluster per persona.
const NumClusters = 5

// vectorObservation wraps a feature vector to implement the
// clusters.Observation interface.
type vectorObservation struct {
	coords clusters.Coordinates
}

func (o vectorObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o vectorObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Train fits a k=5 cluster model over the population's feature vectors.
// Sparse vectors are excluded from training. Standardization parameters
// are computed here and frozen into the artifact, so later inference runs
// reproduce identical assignments.
func Train(vectors []feature.Vector, version string) (*Model, error) {
	var usable []feature.Vector
	for _, v := range vectors {
		if !v.Sparse {
			usable = append(usable, v)
		}
	}
	if len(usable) < NumClusters {
		return nil, fmt.Errorf("training needs at least %d non-sparse vectors, have %d",
			NumClusters, len(usable))
	}

	schema := feature.Names()
	means, stdDevs := standardizationParams(usable)

	var obs clusters.Observations
	for _, v := range usable {
		coords := make(clusters.Coordinates, len(schema))
		for i := range schema {
			sd := stdDevs[i]
			if sd == 0 {
				coords[i] = v.Values[i] - means[i]
				continue
			}
			coords[i] = (v.Values[i] - means[i]) / sd
		}
		obs = append(obs, vectorObservation{coords: coords})
	}

	km := kmeans.New()
	result, err := km.Partition(obs, NumClusters)
	if err != nil {
		return nil, fmt.Errorf("k-means partition: %w", err)
	}

	centroids := make([][]float64, len(result))
	for i, cluster := range result {
		centroid := make([]float64, len(schema))
		copy(centroid, cluster.Center)
		centroids[i] = centroid
	}

	m := &Model{
		Version:      version,
		TrainedAt:    time.Now().UTC(),
		FeatureNames: schema,
		Means:        means,
		StdDevs:      stdDevs,
		Centroids:    centroids,
		Personas:     mapClustersToPersonas(centroids),
	}

	if err := m.Validate(schema); err != nil {
		return nil, err
	}
	return m, nil
}

// standardizationParams computes the per-feature mean and population
// standard deviation of the training vectors.
func standardizationParams(vectors []feature.Vector) (means, stdDevs []float64) {
	n := len(vectors)
	width := len(feature.Names())
	means = make([]float64, width)
	stdDevs = make([]float64, width)

	for _, v := range vectors {
		for i := 0; i < width; i++ {
			means[i] += v.Values[i]
		}
	}
	for i := range means {
		means[i] /= float64(n)
	}

	for _, v := range vectors {
		for i := 0; i < width; i++ {
			d := v.Values[i] - means[i]
			stdDevs[i] += d * d
		}
	}
	for i := range stdDevs {
		stdDevs[i] = math.Sqrt(stdDevs[i] / float64(n))
	}

	return means, stdDevs
}

// personaCriterion picks the dominant standardized feature that
// identifies a persona's cluster.
type personaCriterion struct {
	persona Persona
	index   int
}

// mapClustersToPersonas fixes the cluster-to-persona mapping at training
// time by inspecting centroid dominant features. Personas are assigned
// greedily in priority order; whatever cluster remains is the Casual
// Listener. Centroids are in standardized space, so "highest" means
// highest relative to the population mean.
func mapClustersToPersonas(centroids [][]float64) []string {
	criteria := []personaCriterion{
		{MusicAddict, feature.PlayCount30d},
		{UndergroundHunter, feature.UndergroundFraction},
		{NightOwl, feature.NightPlayFraction},
		{MainstreamExplorer, feature.MeanArtistPopularity},
	}

	personas := make([]string, len(centroids))
	assigned := make([]bool, len(centroids))

	for _, c := range criteria {
		best := -1
		bestVal := math.Inf(-1)
		for i, centroid := range centroids {
			if assigned[i] {
				continue
			}
			if centroid[c.index] > bestVal {
				best = i
				bestVal = centroid[c.index]
			}
		}
		if best >= 0 {
			personas[best] = c.persona.String()
			assigned[best] = true
		}
	}

	for i := range personas {
		if !assigned[i] {
			personas[i] = CasualListener.String()
		}
	}

	return personas
}

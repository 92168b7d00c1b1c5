// Package catalog defines artist metadata records and sources.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Artist is an artist metadata record from the external catalog.
// Popularity is in [0,100]; missing numeric values default to 0.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Followers  int      `json:"followers"`
}

// FollowersTier buckets an artist's follower count for partitioning and
// display.
func FollowersTier(followers int) string {
	switch {
	case followers >= 10_000_000:
		return "mega"
	case followers >= 1_000_000:
		return "major"
	case followers >= 100_000:
		return "established"
	case followers >= 10_000:
		return "emerging"
	default:
		return "niche"
	}
}

// LoadJSON reads an artist catalog file: a JSON array of artist objects as
// exported by the collector. Records without an id or name are skipped;
// the second return value counts them.
func LoadJSON(path string) ([]Artist, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading artist catalog: %w", err)
	}

	var raw []Artist
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("parsing artist catalog: %w", err)
	}

	artists := make([]Artist, 0, len(raw))
	var skipped int
	for _, a := range raw {
		a.Name = strings.TrimSpace(a.Name)
		if a.ID == "" || a.Name == "" {
			skipped++
			continue
		}
		if a.Popularity < 0 {
			a.Popularity = 0
		}
		if a.Followers < 0 {
			a.Followers = 0
		}
		artists = append(artists, a)
	}

	return artists, skipped, nil
}

// Index builds an ID lookup map from a catalog slice.
func Index(artists []Artist) map[string]Artist {
	byID := make(map[string]Artist, len(artists))
	for _, a := range artists {
		byID[a.ID] = a
	}
	return byID
}

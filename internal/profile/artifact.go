package profile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ROrodrigp/spotifire/internal/feature"
)

// LoadModel reads a versioned model artifact from a JSON file and
// validates it against the current feature schema. The loaded model is
// treated as immutable configuration: load once per run, never mutate.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing model artifact: %w", err)
	}

	if err := m.Validate(feature.Names()); err != nil {
		return nil, err
	}

	return &m, nil
}

// SaveModel writes a model artifact as indented JSON.
func SaveModel(m *Model, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding model artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing model artifact: %w", err)
	}
	return nil
}

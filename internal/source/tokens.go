package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned when a user has no stored OAuth token.
var ErrNoToken = errors.New("no token for user")

// TokenStore handles persistent storage of per-user OAuth tokens.
// Listening history requires a user-scoped token; the client-credentials
// flow only covers catalog access.
type TokenStore struct {
	path string
}

// NewTokenStore creates a TokenStore backed by the given JSON file. The
// file maps user IDs to OAuth tokens.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Path returns the file path where tokens are stored.
func (s *TokenStore) Path() string {
	return s.path
}

// Load reads all stored tokens. A missing file yields an empty map.
func (s *TokenStore) Load() (map[string]*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]*oauth2.Token{}, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var tokens map[string]*oauth2.Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return tokens, nil
}

// Token returns the stored token for one user, or ErrNoToken.
func (s *TokenStore) Token(userID string) (*oauth2.Token, error) {
	tokens, err := s.Load()
	if err != nil {
		return nil, err
	}
	token, ok := tokens[userID]
	if !ok || token == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, userID)
	}
	return token, nil
}

// Save writes a user's token, creating the parent directory if needed.
func (s *TokenStore) Save(userID string, token *oauth2.Token) error {
	if token == nil {
		return errors.New("cannot save nil token")
	}

	tokens, err := s.Load()
	if err != nil {
		return err
	}
	tokens[userID] = token

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tokens: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

package source

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/ROrodrigp/spotifire/internal/catalog"
	"github.com/ROrodrigp/spotifire/internal/normalize"
)

// artistChunkSize is the Spotify API limit for batched artist lookups.
const artistChunkSize = 50

// fetchAttempts bounds retries at the collaborator boundary; the core
// pipeline itself never retries.
const fetchAttempts = 3

// SpotifyClient wraps the Spotify Web API for collecting raw events and
// resolving artist metadata.
type SpotifyClient struct {
	api *spotify.Client
}

// NewSpotifyClient builds a client from an already-authenticated API
// client, e.g. one carrying a user token for history access.
func NewSpotifyClient(api *spotify.Client) *SpotifyClient {
	return &SpotifyClient{api: api}
}

// NewSpotifyClientCredentials builds a client via the client-credentials
// flow. This grants catalog access (artist lookups) but not per-user
// listening history.
func NewSpotifyClientCredentials(ctx context.Context, clientID, clientSecret string) (*SpotifyClient, error) {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := config.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("requesting spotify token: %w", err)
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	return &SpotifyClient{api: spotify.New(httpClient)}, nil
}

// NewSpotifyClientToken builds a client from a stored user OAuth token.
// The token carries the user-read-recently-played scope, so this is the
// only constructor whose client can fetch listening history. Expired
// access tokens are refreshed transparently through the refresh token.
func NewSpotifyClientToken(ctx context.Context, clientID, clientSecret string, token *oauth2.Token) *SpotifyClient {
	auth := spotifyauth.New(
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithClientSecret(clientSecret),
		spotifyauth.WithScopes(spotifyauth.ScopeUserReadRecentlyPlayed),
	)
	return &SpotifyClient{api: spotify.New(auth.Client(ctx, token))}
}

// RecentlyPlayed fetches the user's recent listening history as raw
// events stamped with the given batch ID.
func (c *SpotifyClient) RecentlyPlayed(ctx context.Context, userID, batchID string) ([]normalize.RawEvent, error) {
	var items []spotify.RecentlyPlayedItem
	err := retry.Do(
		func() error {
			var err error
			items, err = c.api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: 50})
			return err
		},
		retry.Attempts(fetchAttempts),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching recently played: %w", err)
	}

	events := make([]normalize.RawEvent, 0, len(items))
	for _, item := range items {
		track := item.Track

		artistIDs := make([]string, len(track.Artists))
		artistNames := ""
		for i, a := range track.Artists {
			artistIDs[i] = a.ID.String()
			if i == 0 {
				artistNames = a.Name
			}
		}

		events = append(events, normalize.RawEvent{
			UserID:        userID,
			TrackID:       track.ID.String(),
			TrackName:     track.Name,
			ArtistIDs:     artistIDs,
			ArtistName:    artistNames,
			AlbumID:       track.Album.ID.String(),
			AlbumName:     track.Album.Name,
			PlayedAt:      item.PlayedAt.UTC().Format(time.RFC3339),
			DurationMs:    int64(track.Duration),
			Explicit:      track.Explicit,
			SourceBatchID: batchID,
		})
	}

	return events, nil
}

// Artists resolves artist metadata in API-sized chunks.
func (c *SpotifyClient) Artists(ctx context.Context, ids []string) ([]catalog.Artist, error) {
	artists := make([]catalog.Artist, 0, len(ids))

	for start := 0; start < len(ids); start += artistChunkSize {
		end := min(start+artistChunkSize, len(ids))

		chunk := make([]spotify.ID, 0, end-start)
		for _, id := range ids[start:end] {
			chunk = append(chunk, spotify.ID(id))
		}

		var full []*spotify.FullArtist
		err := retry.Do(
			func() error {
				var err error
				full, err = c.api.GetArtists(ctx, chunk...)
				return err
			},
			retry.Attempts(fetchAttempts),
			retry.Context(ctx),
		)
		if err != nil {
			return nil, fmt.Errorf("fetching artists: %w", err)
		}

		for _, a := range full {
			if a == nil {
				continue
			}
			artists = append(artists, catalog.Artist{
				ID:         a.ID.String(),
				Name:       a.Name,
				Genres:     a.Genres,
				Popularity: int(a.Popularity),
				Followers:  int(a.Followers.Count),
			})
		}
	}

	return artists, nil
}

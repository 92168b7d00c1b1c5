package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ROrodrigp/spotifire/internal/source"
)

// collectCmd represents the collect command.
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetches recent listening history into batch files",
	Long: `Fetches each user's recently played tracks from the Spotify API and
appends them as a timestamped CSV batch under the output directory.
Listening history needs a user-scoped OAuth token, so each user is
fetched with their token from the token file. Artist metadata referenced
by the batches is resolved through the client-credentials flow and
written to the catalog file, and to the database when one is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		log := newLogger()

		clientID := os.Getenv("SPOTIFY_ID")
		clientSecret := os.Getenv("SPOTIFY_SECRET")
		if clientID == "" || clientSecret == "" {
			return fmt.Errorf("please set SPOTIFY_ID and SPOTIFY_SECRET environment variables")
		}

		users := viper.GetStringSlice("users")
		if len(users) == 0 {
			return fmt.Errorf("no users given: set --users")
		}

		tokens := source.NewTokenStore(viper.GetString("tokens"))
		dir := source.NewCSVDir(viper.GetString("output"))
		batchID := time.Now().UTC().Format("20060102_150405")

		artistIDs := make(map[string]struct{})
		for _, userID := range users {
			token, err := tokens.Token(userID)
			if err != nil {
				log.WithError(err).WithField("user_id", userID).Error("no usable token, skipping user")
				continue
			}
			client := source.NewSpotifyClientToken(ctx, clientID, clientSecret, token)

			events, err := client.RecentlyPlayed(ctx, userID, batchID)
			if err != nil {
				log.WithError(err).WithField("user_id", userID).Error("fetching history")
				continue
			}
			if len(events) == 0 {
				log.WithField("user_id", userID).Info("no recent plays")
				continue
			}

			path, err := dir.WriteBatch(userID, events)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"user_id": userID,
				"events":  len(events),
				"path":    path,
			}).Info("batch written")

			for _, ev := range events {
				for _, id := range ev.ArtistIDs {
					artistIDs[id] = struct{}{}
				}
			}
		}

		if len(artistIDs) == 0 {
			return nil
		}

		// Catalog lookups need no user scope; the app token covers them.
		catalogClient, err := source.NewSpotifyClientCredentials(ctx, clientID, clientSecret)
		if err != nil {
			return err
		}
		return collectArtists(cmd, catalogClient, artistIDs, log)
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().String("output", "", "directory for collected batches")
	collectCmd.MarkFlagRequired("output")

	collectCmd.Flags().StringSlice("users", nil, "user IDs to collect")
	collectCmd.Flags().String("tokens", "tokens.json", "JSON file mapping user IDs to OAuth tokens")
	collectCmd.Flags().String("catalog-out", "", "write resolved artist metadata to this JSON file")
}

// collectArtists resolves metadata for the artists seen in this batch
// and records it wherever outputs are configured.
func collectArtists(cmd *cobra.Command, client *source.SpotifyClient, ids map[string]struct{}, log *logrus.Logger) error {
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	artists, err := client.Artists(cmd.Context(), sorted)
	if err != nil {
		return err
	}
	log.WithField("artists", len(artists)).Info("artist metadata resolved")

	if path := viper.GetString("catalog-out"); path != "" {
		data, err := json.MarshalIndent(artists, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding catalog: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing catalog: %w", err)
		}
	}

	st, err := openStore(cmd.Context(), false)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}
	defer st.Close()
	if err := st.Migrate(cmd.Context()); err != nil {
		return err
	}
	return st.Artists().UpsertBatch(cmd.Context(), artists)
}

package cli

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ROrodrigp/spotifire/internal/catalog"
	"github.com/ROrodrigp/spotifire/internal/feature"
	"github.com/ROrodrigp/spotifire/internal/normalize"
	"github.com/ROrodrigp/spotifire/internal/profile"
)

// trainCmd represents the train command.
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Trains a new persona cluster model",
	Long: `Builds feature vectors for every user in the input directory, or
loads the latest stored vectors from the database, then fits the
k-means cluster model and writes the model artifact.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		log := newLogger()

		asOf, err := parseAsOf(viper.GetString("as-of"))
		if err != nil {
			return err
		}

		var vectors []feature.Vector
		if input := viper.GetString("input"); input != "" {
			artists, err := loadCatalog(viper.GetString("artists"))
			if err != nil {
				return err
			}
			vectors, err = buildVectors(input, artists, asOf, log)
			if err != nil {
				return err
			}
		} else {
			st, err := openStore(ctx, true)
			if err != nil {
				return err
			}
			defer st.Close()
			vectors, err = st.Vectors().LatestAll(ctx)
			if err != nil {
				return err
			}
		}

		model, err := profile.Train(vectors, viper.GetString("model-version"))
		if err != nil {
			return fmt.Errorf("training model: %w", err)
		}

		output := viper.GetString("output")
		if err := profile.SaveModel(model, output); err != nil {
			return fmt.Errorf("saving model: %w", err)
		}

		log.WithFields(logrus.Fields{
			"version": model.Version,
			"users":   len(vectors),
			"output":  output,
		}).Info("model trained")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("input", "", "directory of collected listening batches (omit to train from stored vectors)")
	trainCmd.Flags().String("artists", "", "artist catalog JSON file")
	trainCmd.Flags().String("as-of", "", "feature window cutoff, RFC3339 (default now)")
	trainCmd.Flags().String("output", "model.json", "path for the model artifact")
	trainCmd.Flags().String("model-version", time.Now().UTC().Format("2006-01-02"), "version label for the model")
}

// buildVectors computes one feature vector per user from raw batches.
// Users without usable events are skipped; training needs history.
func buildVectors(input string, artists map[string]catalog.Artist, asOf time.Time, log *logrus.Logger) ([]feature.Vector, error) {
	rawByUser, err := readInput(input)
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, len(rawByUser))
	for userID := range rawByUser {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	vectors := make([]feature.Vector, 0, len(userIDs))
	for _, userID := range userIDs {
		result := normalize.Normalize(rawByUser[userID], log)
		vec, err := feature.Build(userID, result.Events, artists, asOf)
		if errors.Is(err, feature.ErrInsufficientData) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("building vector for %s: %w", userID, err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

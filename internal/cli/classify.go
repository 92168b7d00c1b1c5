package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ROrodrigp/spotifire/internal/feature"
	"github.com/ROrodrigp/spotifire/internal/profile"
)

// classifyCmd represents the classify command.
var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Re-classifies stored feature vectors with a model",
	Long: `Loads every user's latest stored feature vector and assigns personas
with the given model artifact, without re-ingesting events. Useful after
training a new model version.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		log := newLogger()

		model, err := profile.LoadModel(viper.GetString("model"))
		if err != nil {
			return fmt.Errorf("loading model: %w", err)
		}

		st, err := openStore(ctx, true)
		if err != nil {
			return err
		}
		defer st.Close()

		vectors, err := st.Vectors().LatestAll(ctx)
		if err != nil {
			return err
		}

		profiles, err := classifyVectors(model, vectors)
		if err != nil {
			return err
		}

		for _, prof := range profiles {
			if err := st.Profiles().Upsert(ctx, prof); err != nil {
				return fmt.Errorf("writing profile for %s: %w", prof.UserID, err)
			}
		}

		log.WithFields(logrus.Fields{
			"version": model.Version,
			"users":   len(profiles),
		}).Info("vectors re-classified")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().String("model", "", "trained model JSON file")
	classifyCmd.MarkFlagRequired("model")
}

// classifyVectors validates the model once up front and assigns a persona
// to every vector. An invalid model fails before any profile is produced.
func classifyVectors(model *profile.Model, vectors []feature.Vector) ([]profile.Profile, error) {
	if err := model.Validate(feature.Names()); err != nil {
		return nil, err
	}

	profiles := make([]profile.Profile, 0, len(vectors))
	for _, vec := range vectors {
		prof, err := model.Classify(vec)
		if err != nil {
			return nil, fmt.Errorf("classifying %s: %w", vec.UserID, err)
		}
		profiles = append(profiles, prof)
	}
	return profiles, nil
}

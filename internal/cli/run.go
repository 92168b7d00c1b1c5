package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ROrodrigp/spotifire/internal/catalog"
	"github.com/ROrodrigp/spotifire/internal/normalize"
	"github.com/ROrodrigp/spotifire/internal/pipeline"
	"github.com/ROrodrigp/spotifire/internal/profile"
	"github.com/ROrodrigp/spotifire/internal/source"
)

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Processes a batch of listening events into profiles",
	Long: `Reads collected listening batches from a CSV directory, normalizes
and deduplicates them, builds per-user feature vectors, classifies each
user with the trained model, and writes the outputs to the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		// Rebind so shared keys (input, artists, as-of) resolve to this
		// command's flags rather than whichever command registered last.
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		log := newLogger()

		asOf, err := parseAsOf(viper.GetString("as-of"))
		if err != nil {
			return err
		}

		model, err := profile.LoadModel(viper.GetString("model"))
		if err != nil {
			return fmt.Errorf("loading model: %w", err)
		}

		artists, err := loadCatalog(viper.GetString("artists"))
		if err != nil {
			return err
		}

		rawByUser, err := readInput(viper.GetString("input"))
		if err != nil {
			return err
		}

		var sink pipeline.Sink = pipeline.DiscardSink{}
		if !viper.GetBool("dry-run") {
			st, err := openStore(ctx, true)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			sink = st
		}

		runner := &pipeline.Runner{
			Model:   model,
			Artists: artists,
			Sink:    sink,
			Workers: viper.GetInt("workers"),
			Log:     log,
		}

		summary, err := runner.Run(ctx, rawByUser, asOf)
		if err != nil {
			return err
		}

		printSummary(summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("input", "", "directory of collected listening batches")
	runCmd.MarkFlagRequired("input")

	runCmd.Flags().String("artists", "", "artist catalog JSON file")
	runCmd.MarkFlagRequired("artists")

	runCmd.Flags().String("model", "", "trained model JSON file")
	runCmd.MarkFlagRequired("model")

	runCmd.Flags().String("as-of", "", "feature window cutoff, RFC3339 (default now)")
	runCmd.Flags().Int("workers", 0, "worker count (default NumCPU)")
	runCmd.Flags().Bool("dry-run", false, "process without writing to the database")
}

func parseAsOf(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	asOf, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as-of %q: %w", value, err)
	}
	return asOf.UTC(), nil
}

func loadCatalog(path string) (map[string]catalog.Artist, error) {
	artists, skipped, err := catalog.LoadJSON(path)
	if err != nil {
		return nil, fmt.Errorf("loading artist catalog: %w", err)
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "Skipped %d malformed catalog rows\n", skipped)
	}
	return catalog.Index(artists), nil
}

func readInput(root string) (map[string][]normalize.RawEvent, error) {
	dir := source.NewCSVDir(root)
	users, err := dir.Users()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	rawByUser := make(map[string][]normalize.RawEvent, len(users))
	for _, userID := range users {
		raw, err := dir.Events(userID)
		if err != nil {
			return nil, fmt.Errorf("reading events for %s: %w", userID, err)
		}
		rawByUser[userID] = raw
	}
	return rawByUser, nil
}

func printSummary(summary *pipeline.Summary) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	table.Append([]string{"Run ID", summary.RunID})
	table.Append([]string{"As of", summary.AsOf.Format(time.RFC3339)})
	table.Append([]string{"Users processed", strconv.Itoa(summary.UsersProcessed)})
	table.Append([]string{"Users failed", strconv.Itoa(summary.UsersFailed)})
	table.Append([]string{"Raw records", strconv.Itoa(summary.RawRecords)})
	table.Append([]string{"Dropped records", strconv.Itoa(summary.DroppedRecords)})
	table.Append([]string{"Duplicate records", strconv.Itoa(summary.DuplicateRecords)})
	table.Append([]string{"Sparse users", strconv.Itoa(summary.SparseUsers)})

	personas := make([]string, 0, len(summary.Personas))
	for persona := range summary.Personas {
		personas = append(personas, persona)
	}
	sort.Strings(personas)
	for _, persona := range personas {
		table.Append([]string{"Persona " + persona, strconv.Itoa(summary.Personas[persona])})
	}

	table.Render()
}

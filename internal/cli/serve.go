package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ROrodrigp/spotifire/internal/web"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves classified profiles over a JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		st, err := openStore(ctx, true)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		server := web.NewServer(web.ServerConfig{
			Addr:     viper.GetString("addr"),
			Profiles: st.Profiles(),
			Vectors:  st.Vectors(),
			Log:      newLogger(),
		})
		return server.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", web.DefaultAddr, "listen address")
}

package cli

import (
	"github.com/spf13/cobra"

	"knowledge-server/internal/api"
	"knowledge-server/pkg/config"
	"knowledge-server/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the knowledge server HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return api.Run(cmd.Context(), cfg, logger.Get())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

package cli

import (
	"github.com/ds124wfegd/bandpool/internal/appServer"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP coordinator and its worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		return appServer.NewServer(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

package cli

import (
	"github.com/ds124wfegd/bandpool/internal/appServer"
	"github.com/spf13/cobra"
)

var workerID int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run one remote band worker over the configured broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return appServer.RunWorker(cmd.Context(), cfg, workerID)
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerID, "id", 0, "Worker id, 1 to pool.size-1")
	workerCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(workerCmd)
}

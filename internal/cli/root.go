package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ds124wfegd/bandpool/config"
	"github.com/ds124wfegd/bandpool/internal/appServer"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "1.0.0"

var (
	// cfg is loaded once in the root PersistentPreRunE and shared by subcommands
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "bandpool",
	Short:         "Row-band distributed image transform service",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			configPath = config.GetEnv("BANDPOOL_CONFIG", "")
		}
		v, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg, err = config.ParseConfig(v)
		if err != nil {
			return err
		}
		return appServer.ConfigureLogging(cfg.Logging)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: $BANDPOOL_CONFIG or ./config/config.yaml)")
}

// Package cli provides the ipo-tracker command line: the API server and its maintenance
// commands.
package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const Version = "2.0.0"

// NewRootCmd builds the command tree. Running the root command without a subcommand
// starts the server.
func NewRootCmd() *cobra.Command {
	serve := newServeCmd()

	rootCmd := &cobra.Command{
		Use:   "ipo-tracker",
		Short: "IPO application tracking API",
		Long: `ipo-tracker serves the IPO catalog, user accounts and IPO applications over HTTP.

Configuration is read from the environment, an optional .env file and CONFIG_FILE.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	rootCmd.Flags().AddFlagSet(serve.Flags())

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSeedCmd())
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

// Package commands implements the consolectl command tree.
package commands

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var verbose bool

// NewRootCmd builds the consolectl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "consolectl",
		Short:   "Operator tool for the bot admin console",
		Version: version,
		Long: `Inspect and maintain the bot admin console from the command line.
Reads the same environment variables (and .env file) as the console server.`,
		Example: `  # Check the heartbeat store and the error-log database
  $ consolectl status

  # Print the latest errors
  $ consolectl logs -n 20

  # Produce an ADMIN_CREDENTIALS entry
  $ echo -n 's3cret' | consolectl hash-password alice`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newStatusCmd())
	root.AddCommand(newLogsCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newHashPasswordCmd())
	return root
}

// Execute executes the root command
func Execute() error {
	return NewRootCmd().Execute()
}

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/bot-console/internal/cli/ui"
	"github.com/ashureev/bot-console/internal/config"
	"github.com/ashureev/bot-console/internal/store"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or upgrade the error_log schema",
		Long: `Apply the embedded error_log migrations to DB_DSN.

The bot core normally owns the error_log table; use this for a local SQLite
store or a fresh Postgres database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if err := cfg.ValidateStores(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			repo, err := store.Open(ctx, store.Options{
				Driver:      cfg.Database.Driver,
				DSN:         cfg.Database.DSN,
				AutoMigrate: true,
			}, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			ui.PrintSuccess(cmd.OutOrStdout(), "%s schema is up to date", cfg.Database.Driver)
			return nil
		},
	}
}

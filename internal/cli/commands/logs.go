package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/bot-console/internal/cli/ui"
	"github.com/ashureev/bot-console/internal/config"
	"github.com/ashureev/bot-console/internal/store"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var (
		limit   int
		asJSON  bool
		since   time.Duration
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "print the most recent error_log rows, newest first",
		Example: `  $ consolectl logs
  $ consolectl logs -n 10 --json
  $ consolectl logs --stats --since 1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if err := cfg.ValidateStores(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			repo, err := store.Open(ctx, store.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			out := cmd.OutOrStdout()

			if summary {
				stats, err := repo.ErrorStats(ctx, time.Now().Add(-since))
				if err != nil {
					return err
				}
				if asJSON {
					return json.NewEncoder(out).Encode(stats)
				}
				ui.PrintInfo(out, "total errors: %d", stats.Total)
				ui.PrintInfo(out, "since %s: %d", stats.Since.Format(time.RFC3339), stats.SinceCount)
				if stats.LastAt != nil {
					ui.PrintInfo(out, "last error: %s", stats.LastAt.Format(time.RFC3339))
				}
				return nil
			}

			records, err := repo.RecentErrors(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			fmt.Fprintln(out, ui.RenderErrorTable(records))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", store.MaxRecentErrors, fmt.Sprintf("Number of rows (at most %d)", store.MaxRecentErrors))
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().BoolVar(&summary, "stats", false, "Print totals instead of rows")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "Window for the recent-errors count with --stats")
	return cmd
}

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/bot-console/internal/cli/ui"
	"github.com/ashureev/bot-console/internal/config"
	"github.com/ashureev/bot-console/internal/liveness"
	"github.com/ashureev/bot-console/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newStatusCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "check the heartbeat store, the bot core heartbeat and the error-log database",
		Example: `  $ consolectl status
  $ consolectl status --strict   # fail when the bot core is offline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if err := cfg.ValidateStores(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			var (
				online       bool
				heartbeatErr error
				dbErr        error
				g            errgroup.Group
			)
			g.Go(func() error {
				prober := liveness.NewRedisProber(liveness.RedisConfig{
					Addr:     cfg.Heartbeat.Addr,
					DB:       cfg.Heartbeat.DB,
					Password: cfg.Heartbeat.Password,
					Key:      cfg.Heartbeat.Key,
					Timeout:  cfg.Heartbeat.Timeout,
					MaxAge:   cfg.Heartbeat.MaxAge,
				}, slog.Default())
				defer func() { _ = prober.Close() }()
				online, heartbeatErr = prober.Check(ctx)
				return nil
			})
			g.Go(func() error {
				repo, err := store.Open(ctx, store.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, slog.Default())
				if err != nil {
					dbErr = err
					return nil
				}
				defer func() { _ = repo.Close() }()
				dbErr = repo.Ping(ctx)
				return nil
			})
			_ = g.Wait()

			out := cmd.OutOrStdout()
			failed := false

			if heartbeatErr != nil {
				ui.PrintError(out, "heartbeat store %s (db %d): %v", cfg.Heartbeat.Addr, cfg.Heartbeat.DB, heartbeatErr)
				failed = true
			} else {
				ui.PrintSuccess(out, "heartbeat store %s (db %d) reachable", cfg.Heartbeat.Addr, cfg.Heartbeat.DB)
				if online {
					ui.PrintSuccess(out, "bot core online (%s present)", cfg.Heartbeat.Key)
				} else {
					ui.PrintWarning(out, "bot core offline (%s missing or stale)", cfg.Heartbeat.Key)
					failed = failed || strict
				}
			}

			if dbErr != nil {
				ui.PrintError(out, "%s database: %v", cfg.Database.Driver, dbErr)
				failed = true
			} else {
				ui.PrintSuccess(out, "%s database reachable", cfg.Database.Driver)
			}

			if failed {
				return fmt.Errorf("status check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat an offline bot core as a failure")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/scalecode-solutions/babytrackerapi/internal/config"
	"github.com/scalecode-solutions/babytrackerapi/internal/db"
	"github.com/scalecode-solutions/babytrackerapi/internal/lock"
	"github.com/scalecode-solutions/babytrackerapi/internal/models"
	"github.com/scalecode-solutions/babytrackerapi/internal/monitor"
	"github.com/scalecode-solutions/babytrackerapi/internal/push"
)

var (
	checkDryRun bool
	checkNoLock bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one warning monitor pass and print its result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, cfg *config.Config, database *db.DB) error {
			logger := newLogger(cmd, cfg)

			var provider push.Provider = push.NewMockProvider(logger)
			if cfg.PushGatewayURL != "" && !checkDryRun {
				provider = push.NewWebhookProvider(cfg.PushGatewayURL, cfg.PushGatewayKey, logger)
			}

			opts := []monitor.Option{
				monitor.WithInterval(cfg.MonitorInterval),
				monitor.WithDedupeWindow(cfg.DedupeWindow),
			}
			if cfg.RedisAddr != "" && !checkNoLock {
				locker := lock.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
				defer locker.Close()
				opts = append(opts, monitor.WithLocker(locker))
			}

			var store monitor.Store = database
			if checkDryRun {
				store = dryRunStore{Store: database, logger: logger}
			}

			mon := monitor.New(store, push.NewDispatcher(provider, nil, logger), logger, opts...)
			result, err := mon.Check(ctx)
			if err != nil {
				return fmt.Errorf("monitor pass failed: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		})
	},
}

// dryRunStore leaves the notification ledger untouched so a dry run never
// suppresses a real notification.
type dryRunStore struct {
	monitor.Store
	logger *slog.Logger
}

func (s dryRunStore) CreateNotification(ctx context.Context, babyID int64, category models.WarningType, familyID int64) error {
	s.logger.Info("Dry run, notification not recorded",
		"baby_id", babyID,
		"family_id", familyID,
		"category", category)
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Log notifications instead of sending or recording them")
	checkCmd.Flags().BoolVar(&checkNoLock, "no-lock", false, "Skip the Redis leader lock")
}

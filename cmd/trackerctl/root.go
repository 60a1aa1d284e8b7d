package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scalecode-solutions/babytrackerapi/internal/config"
	"github.com/scalecode-solutions/babytrackerapi/internal/db"
)

var (
	databaseURL string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:           "trackerctl",
	Short:         "trackerctl runs baby tracker maintenance tasks",
	Long:          "trackerctl migrates the database, runs one warning monitor pass and inspects dose safety from the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (default $DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(false)
	if err != nil {
		return nil, err
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
}

// withDB opens the configured database, applies migrations and runs fn.
func withDB(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, database *db.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := database.Migrate(ctx); err != nil {
		return err
	}
	return fn(ctx, cfg, database)
}

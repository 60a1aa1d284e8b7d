package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scalecode-solutions/babytrackerapi/internal/config"
	"github.com/scalecode-solutions/babytrackerapi/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, cfg *config.Config, database *db.DB) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Database schema is up to date")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

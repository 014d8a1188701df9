package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssc-dashboards/portal/internal/config"
	"github.com/ssc-dashboards/portal/internal/database"
	"github.com/ssc-dashboards/portal/internal/store"
)

var pruneDB string

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete revoked session records that have expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := pruneDB
		if path == "" {
			path = config.DBPath(os.Getenv)
		}
		db, err := database.Open(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		n, err := store.NewRevocationStore(db).DeleteExpired()
		if err != nil {
			return fmt.Errorf("prune: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired revocations\n", n)
		return nil
	},
}

func init() {
	pruneCmd.Flags().StringVar(&pruneDB, "db", "", "database path (default $PORTAL_DB_PATH)")
	rootCmd.AddCommand(pruneCmd)
}

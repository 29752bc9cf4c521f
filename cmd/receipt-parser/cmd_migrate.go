package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the receipts schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.HealthCheck(ctx, cfg.Database.DialTimeout); err != nil {
			return err
		}
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("migrate.ok", "driver", db.Dialect())
		return nil
	},
}

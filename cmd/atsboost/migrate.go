package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"atsboost/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the messages and orders tables and the realtime trigger",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l := logger.ForEnv(cfg.Env)
		defer l.Sync()

		database, err := connectDB(cfg.DB, l)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.Migrate(context.Background()); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		l.Infow("Schema is up to date")
		return nil
	},
}

package main

import (
	"github.com/spf13/cobra"

	"fleetguard/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		database, err := db.New(cfg, log)
		if err != nil {
			log.Error().Err(err).Msg("migration failed")
			return err
		}
		if err := db.HealthCheck(cmd.Context(), database); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package main

import (
	"strings"

	"github.com/spf13/cobra"

	"fleetguard/internal/db"
	"fleetguard/internal/model"
	"fleetguard/internal/repository"
	"fleetguard/internal/service"
)

var (
	adminID       string
	adminName     string
	adminEmail    string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		database, err := db.New(cfg, log)
		if err != nil {
			return err
		}

		input := model.CreateWorkerInput{
			ID:       adminID,
			Name:     adminName,
			Password: adminPassword,
			Role:     model.WorkerRoleAdmin,
		}
		if email := strings.TrimSpace(adminEmail); email != "" {
			input.Email = &email
		}

		workers := service.NewWorkerService(repository.NewWorkerRepository(database))
		worker, err := workers.Create(cmd.Context(), input)
		if err != nil {
			log.Error().Err(err).Str("worker_id", adminID).Msg("failed to create admin")
			return err
		}
		log.Info().Str("worker_id", worker.ID).Msg("admin created")
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminID, "id", "", "Worker id (letters, digits, '-' or '_')")
	createAdminCmd.Flags().StringVar(&adminName, "name", "", "Display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Optional email used for login")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Initial password")
	_ = createAdminCmd.MarkFlagRequired("id")
	_ = createAdminCmd.MarkFlagRequired("name")
	_ = createAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(createAdminCmd)
}

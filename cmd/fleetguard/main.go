package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fleetguard/internal/config"
	"fleetguard/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "fleetguard",
	Short: "Fleet vehicle inspection service",
	Long: `FleetGuard runs guided vehicle inspections: operators walk a fixed checklist,
attach photographs that are checked by a vision model, and finish with a stored
record and a PDF report.

Examples:
  fleetguard                 start the HTTP API (same as "fleetguard serve")
  fleetguard migrate         apply database migrations and exit
  fleetguard create-admin --id A01 --name "Fleet Admin" --password secret
  fleetguard checklist --path ./checklist.yaml`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadRuntime() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config error: %w", err)
	}
	return cfg, logger.New(cfg.Environment, cfg.LogLevel), nil
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/punchclock/internal/config"
	"github.com/kozaktomas/punchclock/internal/database/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Connect to the configured database and apply all pending schema migrations.
The server applies migrations on start as well; this command is for deployments
that migrate in a separate step.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	if cfg.Database.Driver == config.DriverPostgres {
		applied, err := postgres.GetGlobalPool().MigrationsApplied(context.Background())
		if err != nil {
			return err
		}
		for _, v := range applied {
			fmt.Printf("  %s\n", v)
		}
	}
	fmt.Println("Database schema is up to date")
	return nil
}

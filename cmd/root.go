package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/punchclock/internal/config"
	"github.com/kozaktomas/punchclock/internal/logging"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "punchclock",
	Short: "Geofenced, face-verified attendance service",
	Long: `Punchclock records employee attendance. A punch-in is accepted only when
the device is inside the configured site radius and the live face matches the
employee's registered face. Each employee gets at most one record per day,
classified as On Time, Late Entry, Half Day or Late.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides PUNCHCLOCK_CONFIG)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	if configFile != "" {
		os.Setenv(config.FileEnv, configFile)
	}
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the log section of cfg.
func newLogger(cfg *config.Config) *zap.SugaredLogger {
	return logging.Must(logging.Config{
		Level: cfg.Log.Level,
		Dev:   cfg.Log.Dev,
		File:  cfg.Log.File,
	}).Sugar()
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/punchclock/internal/constants"
	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Punchclock HTTP API.
The API accepts punch-ins from employee devices, serves attendance history
and reports, and lets administrators manage employees and their faces.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
	if cfg.Web.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET environment variable is required")
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initFaceIndex(ctx, cfg, logger)

	server, err := web.NewServer(cfg, logger)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down")
		if idx := database.GetFaceIndex(); idx != nil && cfg.Face.IndexPath != "" {
			if err := idx.Save(cfg.Face.IndexPath); err != nil {
				logger.Warnw("failed to save face index", "error", err)
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("error during shutdown", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

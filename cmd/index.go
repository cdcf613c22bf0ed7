package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/punchclock/internal/database"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the face HNSW index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the face index from registered faces",
	Long: `Rebuild the HNSW face index from all registered face descriptors and save
it to HNSW_INDEX_PATH. The server loads the saved index on start instead of
rebuilding it.`,
	RunE: runIndexRebuild,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd)
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
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

	database.RegisterFaceIndex(database.NewFaceIndex())
	n, err := database.RebuildFaceIndex(context.Background(), cfg.Face.IndexPath)
	if err != nil {
		return err
	}

	if cfg.Face.IndexPath == "" {
		fmt.Printf("Face index built with %d faces (HNSW_INDEX_PATH not set, nothing saved)\n", n)
		return nil
	}
	fmt.Printf("Face index rebuilt with %d faces, saved to %s\n", n, cfg.Face.IndexPath)
	return nil
}

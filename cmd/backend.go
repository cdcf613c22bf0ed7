package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kozaktomas/punchclock/internal/config"
	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/database/mariadb"
	"github.com/kozaktomas/punchclock/internal/database/postgres"
)

// openBackend connects to the configured database, applies pending migrations
// and registers the repositories. The returned func closes the connection.
func openBackend(cfg *config.Config, logger *zap.SugaredLogger) (func(), error) {
	if err := database.InitRecordIDs(cfg.Database.SnowflakeNode); err != nil {
		return nil, fmt.Errorf("record ids: %w", err)
	}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		logger.Infow("connecting to database", "driver", cfg.Database.Driver)
		if err := postgres.Initialize(&cfg.Database, logger); err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return func() {
			if err := postgres.GetGlobalPool().Close(); err != nil {
				logger.Warnw("closing database failed", "error", err)
			}
			database.ResetBackend()
		}, nil
	case config.DriverMySQL:
		logger.Infow("connecting to database", "driver", cfg.Database.Driver)
		pool, err := mariadb.Initialize(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		return func() {
			if err := pool.Close(); err != nil {
				logger.Warnw("closing database failed", "error", err)
			}
			database.ResetBackend()
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// initFaceIndex loads the face HNSW index from disk, or builds it from the
// registered faces when there is no usable saved copy, and registers it.
func initFaceIndex(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) {
	idx := database.NewFaceIndex()
	database.RegisterFaceIndex(idx)
	path := cfg.Face.IndexPath

	if path != "" {
		repo, err := database.GetEmployeeReader(ctx)
		if err == nil {
			var employees []database.Employee
			if employees, err = repo.ListFaceDescriptors(ctx); err == nil {
				err = idx.Load(path, employees)
			}
		}
		if err == nil {
			logger.Infow("face index loaded", "path", path, "faces", idx.Count())
			return
		}
		logger.Infow("face index not usable, rebuilding", "path", path, "reason", err)
	}

	n, err := database.RebuildFaceIndex(ctx, path)
	if err != nil {
		logger.Warnw("failed to build face index, identification falls back to the database", "error", err)
		return
	}
	logger.Infow("face index built", "faces", n, "persisted", path != "")
}

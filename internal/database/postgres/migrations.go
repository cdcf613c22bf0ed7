package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/kozaktomas/punchclock/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func (p *Pool) migrator(logger *zap.SugaredLogger) *database.Migrator {
	source, _ := fs.Sub(migrationsFS, "migrations")
	return &database.Migrator{
		DB:     p.db,
		Source: source,
		Dialect: database.MigrationDialect{
			CreateTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
				version VARCHAR(255) PRIMARY KEY,
				applied_at TIMESTAMPTZ DEFAULT NOW()
			)`,
			Insert: "INSERT INTO schema_migrations (version) VALUES ($1)",
		},
		Logger: logger,
	}
}

// Migrate applies all pending migrations automatically on startup.
// logger may be nil.
func (p *Pool) Migrate(ctx context.Context, logger *zap.SugaredLogger) error {
	if _, err := p.migrator(logger).Migrate(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

// MigrationsApplied returns the list of applied migrations
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	return p.migrator(nil).Applied(ctx)
}

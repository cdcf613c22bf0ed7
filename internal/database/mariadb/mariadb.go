package mariadb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/kozaktomas/punchclock/internal/config"
	"github.com/kozaktomas/punchclock/internal/database"
)

// BackendName is the name the MariaDB backend registers under.
const BackendName = "mysql"

// duplicateEntry is the MySQL error number of a unique key violation.
const duplicateEntry = 1062

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
	x  *sqlx.DB
}

// NewPool creates a new MariaDB connection pool. DATE and DATETIME columns are
// always parsed into UTC time.Time values regardless of the DSN, and updates
// report matched rather than changed rows.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := mysql.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.ClientFoundRows = true

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db, x: sqlx.NewDb(db, "mysql")}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Migrate applies all pending migrations. logger may be nil.
func (p *Pool) Migrate(ctx context.Context, logger *zap.SugaredLogger) error {
	source, _ := fs.Sub(migrationsFS, "migrations")
	m := &database.Migrator{
		DB:     p.db,
		Source: source,
		Dialect: database.MigrationDialect{
			CreateTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
				version VARCHAR(255) PRIMARY KEY,
				applied_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
			)`,
			Insert: "INSERT INTO schema_migrations (version) VALUES (?)",
		},
		Logger: logger,
	}
	if _, err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("mariadb: %w", err)
	}
	return nil
}

// Initialize connects, migrates and registers MariaDB as the active storage backend.
func Initialize(cfg *config.DatabaseConfig, logger *zap.SugaredLogger) (*Pool, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(context.Background(), logger); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	database.RegisterBackend(BackendName,
		func() database.EmployeeWriter { return NewEmployeeRepository(pool) },
		func() database.AttendanceWriter { return NewAttendanceRepository(pool) },
	)
	return pool, nil
}

// isDuplicateEntry reports whether err is a unique key violation.
func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == duplicateEntry
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

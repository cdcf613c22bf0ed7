package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// MigrationDialect holds the SQL that differs between backends.
type MigrationDialect struct {
	CreateTable string // creates schema_migrations if missing
	Insert      string // records one applied version, single placeholder
}

// Migrator applies the *.sql files of Source in lexical order, each in its own
// transaction, and remembers applied versions in schema_migrations.
type Migrator struct {
	DB      *sql.DB
	Source  fs.FS
	Dialect MigrationDialect
	Logger  *zap.SugaredLogger // optional
}

// appliedMigrations returns a set of already-applied migration versions.
func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	if _, err := m.DB.ExecContext(ctx, m.Dialect.CreateTable); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := m.DB.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// Pending returns sorted SQL migration filenames not yet applied.
func (m *Migrator) Pending(ctx context.Context) ([]string, error) {
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	return pendingFiles(m.Source, applied)
}

func pendingFiles(source fs.FS, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(source, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") && !applied[e.Name()] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// SplitStatements splits a migration file into statements on terminating semicolons.
// Lines starting with "--" are dropped.
func SplitStatements(content string) []string {
	var stmts []string
	var b strings.Builder
	for line := range strings.SplitSeq(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			stmts = append(stmts, strings.TrimSpace(b.String()))
			b.Reset()
		}
	}
	if rest := strings.TrimSpace(b.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}

// Migrate applies all pending migrations and returns the versions it applied.
func (m *Migrator) Migrate(ctx context.Context) ([]string, error) {
	files, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, file := range files {
		if err := m.apply(ctx, file); err != nil {
			return done, err
		}
		done = append(done, file)
		if m.Logger != nil {
			m.Logger.Infow("migration applied", "version", file)
		}
	}
	return done, nil
}

func (m *Migrator) apply(ctx context.Context, file string) error {
	content, err := fs.ReadFile(m.Source, file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", file, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, stmt := range SplitStatements(string(content)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute migration %s: %w", file, err)
		}
	}
	if _, err := tx.ExecContext(ctx, m.Dialect.Insert, file); err != nil {
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

// Applied returns the list of applied migrations.
func (m *Migrator) Applied(ctx context.Context) ([]string, error) {
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

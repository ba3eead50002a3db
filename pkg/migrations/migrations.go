// Package migrations embeds the database schema and provides a
// transactional migration runner.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed sql/*.sql
var migrationFS embed.FS

// Migration represents a single migration file.
type Migration struct {
	Version   string
	Name      string
	Direction string // "up" or "down"
	Path      string
}

// String returns the migration identifier.
func (m Migration) String() string {
	return fmt.Sprintf("%s_%s.%s.sql", m.Version, m.Name, m.Direction)
}

// Record represents a row in the schema_migrations table.
type Record struct {
	Version   string
	AppliedAt time.Time
}

// Load returns the embedded migrations for a direction, sorted by version.
func Load(direction string) ([]Migration, error) {
	suffix := fmt.Sprintf(".%s.sql", direction)

	entries, err := fs.ReadDir(migrationFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}

		// Parse filename: 000001_extensions.up.sql
		baseName := strings.TrimSuffix(entry.Name(), suffix)
		parts := strings.SplitN(baseName, "_", 2)
		if len(parts) != 2 {
			continue
		}

		migrations = append(migrations, Migration{
			Version:   parts[0],
			Name:      parts[1],
			Direction: direction,
			Path:      "sql/" + entry.Name(),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// Content reads an embedded migration file.
func Content(m Migration) ([]byte, error) {
	return migrationFS.ReadFile(m.Path)
}

// Runner executes database migrations.
type Runner struct {
	db *sql.DB
}

// NewRunner creates a new migration runner.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// EnsureMigrationTable creates the schema_migrations table if it doesn't exist.
func (r *Runner) EnsureMigrationTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Applied returns all applied migration records in version order.
func (r *Runner) Applied(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Version, &rec.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Pending returns migrations that have not been applied yet.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	available, err := Load("up")
	if err != nil {
		return nil, err
	}

	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	appliedSet := make(map[string]bool, len(applied))
	for _, rec := range applied {
		appliedSet[rec.Version] = true
	}

	var pending []Migration
	for _, m := range available {
		if !appliedSet[m.Version] {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

// Up runs all pending migrations, each in its own transaction.
func (r *Runner) Up(ctx context.Context) (int, error) {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to ensure migration table: %w", err)
	}

	pending, err := r.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, m := range pending {
		if err := r.run(ctx, m, true); err != nil {
			return i, fmt.Errorf("migration %s failed: %w", m, err)
		}
	}

	return len(pending), nil
}

// Down rolls back the last applied migration.
func (r *Runner) Down(ctx context.Context) (string, error) {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return "", fmt.Errorf("failed to ensure migration table: %w", err)
	}

	applied, err := r.Applied(ctx)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", nil
	}

	last := applied[len(applied)-1]

	downs, err := Load("down")
	if err != nil {
		return "", err
	}

	for _, m := range downs {
		if m.Version != last.Version {
			continue
		}
		if err := r.run(ctx, m, false); err != nil {
			return "", fmt.Errorf("rollback %s failed: %w", m, err)
		}
		return last.Version, nil
	}

	return "", fmt.Errorf("no down migration for version %s", last.Version)
}

// run executes a single migration inside a transaction. The version
// bookkeeping commits atomically with the schema change.
func (r *Runner) run(ctx context.Context, m Migration, up bool) error {
	content, err := Content(m)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return err
	}

	if up {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openctemio/console/pkg/logger"
)

// Runner executes database migrations and records them in schema_migrations.
type Runner struct {
	db            *sql.DB
	migrationsDir string
	logger        *logger.Logger
}

// NewRunner creates a new migration runner.
func NewRunner(db *sql.DB, migrationsDir string, log *logger.Logger) *Runner {
	return &Runner{
		db:            db,
		migrationsDir: migrationsDir,
		logger:        log.With("component", "migrations"),
	}
}

// MigrationRecord represents a migration in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// StatusEntry is one available migration and whether it is applied.
type StatusEntry struct {
	Migration Migration
	Applied   bool
	AppliedAt time.Time
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

// GetAppliedMigrations returns all applied migration versions.
func (r *Runner) GetAppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	query := `SELECT version, applied_at FROM schema_migrations ORDER BY version`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var rec MigrationRecord
		if err := rows.Scan(&rec.Version, &rec.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetPendingMigrations returns the up migrations that are not applied yet.
func (r *Runner) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	available, err := LoadMigrationsFromDir(r.migrationsDir, DirectionUp)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := r.GetAppliedMigrations(ctx)
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

	pending, err := r.GetPendingMigrations(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		r.logger.Info("no pending migrations")
		return 0, nil
	}

	for i, m := range pending {
		if err := r.run(ctx, m, true); err != nil {
			return i, fmt.Errorf("migration %s failed: %w", m, err)
		}
		r.logger.Info("migration applied", "version", m.Version, "name", m.Name)
	}
	return len(pending), nil
}

// Down rolls back the last applied migration.
func (r *Runner) Down(ctx context.Context) error {
	applied, err := r.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		r.logger.Info("no migrations to roll back")
		return nil
	}
	last := applied[len(applied)-1]

	downs, err := LoadMigrationsFromDir(r.migrationsDir, DirectionDown)
	if err != nil {
		return fmt.Errorf("failed to scan migrations: %w", err)
	}
	for _, m := range downs {
		if m.Version == last.Version {
			if err := r.run(ctx, m, false); err != nil {
				return fmt.Errorf("rollback %s failed: %w", m, err)
			}
			r.logger.Info("migration rolled back", "version", m.Version, "name", m.Name)
			return nil
		}
	}
	return fmt.Errorf("no down migration for version %s", last.Version)
}

// Status lists every available migration with its applied state.
func (r *Runner) Status(ctx context.Context) ([]StatusEntry, error) {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}
	applied, err := r.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	available, err := LoadMigrationsFromDir(r.migrationsDir, DirectionUp)
	if err != nil {
		return nil, err
	}

	appliedAt := make(map[string]time.Time, len(applied))
	for _, rec := range applied {
		appliedAt[rec.Version] = rec.AppliedAt
	}

	entries := make([]StatusEntry, len(available))
	for i, m := range available {
		at, ok := appliedAt[m.Version]
		entries[i] = StatusEntry{Migration: m, Applied: ok, AppliedAt: at}
	}
	return entries, nil
}

func (r *Runner) run(ctx context.Context, m Migration, up bool) error {
	content, err := ReadMigrationContent(m)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return err
	}

	if up {
		_, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version)
	} else {
		_, err = tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = $1", m.Version)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

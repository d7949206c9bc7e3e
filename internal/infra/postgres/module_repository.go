package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
)

// ModuleRepository handles database operations for the module registry.
type ModuleRepository struct {
	db *DB
}

var _ module.Repository = (*ModuleRepository)(nil)

// NewModuleRepository creates a new ModuleRepository.
func NewModuleRepository(db *DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

const moduleColumns = `
	id, module_name, title, alias, description, version, source, is_core, is_installed,
	status, priority, sort, dependencies, providers, keywords, path, created_at, updated_at`

// GetByID retrieves a module by its ID.
func (r *ModuleRepository) GetByID(ctx context.Context, id shared.ID) (*module.Module, error) {
	query := `SELECT` + moduleColumns + ` FROM modules WHERE id = $1`
	m, err := scanModule(r.db.QueryRowContext(ctx, query, id.Int64()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", module.ErrModuleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	return m, nil
}

// GetByName retrieves a module by its unique name.
func (r *ModuleRepository) GetByName(ctx context.Context, name string) (*module.Module, error) {
	query := `SELECT` + moduleColumns + ` FROM modules WHERE module_name = $1`
	m, err := scanModule(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", module.ErrModuleNotFound, name)
		}
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	return m, nil
}

// List returns all registered modules ordered by sort then id.
func (r *ModuleRepository) List(ctx context.Context) ([]*module.Module, error) {
	query := `SELECT` + moduleColumns + ` FROM modules ORDER BY sort ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	modules := make([]*module.Module, 0)
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate modules: %w", err)
	}
	return modules, nil
}

// Upsert inserts a module or refreshes the manifest-owned columns of the
// existing row with the same name. is_installed, status, sort and created_at
// are never overwritten by a rescan.
func (r *ModuleRepository) Upsert(ctx context.Context, m *module.Module) (*module.Module, error) {
	query := `
		INSERT INTO modules (
			module_name, title, alias, description, version, source, is_core, is_installed,
			status, priority, sort, dependencies, providers, keywords, path, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (module_name) DO UPDATE SET
			title = EXCLUDED.title,
			alias = EXCLUDED.alias,
			description = EXCLUDED.description,
			version = EXCLUDED.version,
			source = EXCLUDED.source,
			is_core = EXCLUDED.is_core,
			priority = EXCLUDED.priority,
			dependencies = EXCLUDED.dependencies,
			providers = EXCLUDED.providers,
			keywords = EXCLUDED.keywords,
			path = EXCLUDED.path,
			updated_at = EXCLUDED.updated_at
		RETURNING` + moduleColumns

	stored, err := scanModule(r.db.QueryRowContext(ctx, query,
		m.Name(),
		m.Title(),
		m.Alias(),
		m.Description(),
		m.Version(),
		string(m.Source()),
		m.IsCore(),
		string(m.Status()),
		m.Priority(),
		m.Sort(),
		stringArray(m.Dependencies()),
		stringArray(m.Providers()),
		stringArray(m.Keywords()),
		m.Path(),
		m.UpdatedAt(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert module %s: %w", m.Name(), err)
	}
	return stored, nil
}

// UpdateStatus enables or disables a module.
func (r *ModuleRepository) UpdateStatus(ctx context.Context, id shared.ID, status module.Status) error {
	query := `UPDATE modules SET status = $2, updated_at = NOW() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id.Int64(), string(status))
	if err != nil {
		return fmt.Errorf("failed to update module status: %w", err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("%w: %d", module.ErrModuleNotFound, id)
	}
	return nil
}

// Delete hard-deletes a registry row. Entitlements, relocations and the
// menu foreign keys follow through the schema's ON DELETE rules.
func (r *ModuleRepository) Delete(ctx context.Context, id shared.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM modules WHERE id = $1`, id.Int64())
	if err != nil {
		return fmt.Errorf("failed to delete module: %w", err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("%w: %d", module.ErrModuleNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModule(row rowScanner) (*module.Module, error) {
	var (
		rec                              module.Record
		source, status                   string
		dependencies, providers, keyword pq.StringArray
	)
	if err := row.Scan(
		&rec.ID, &rec.Name, &rec.Title, &rec.Alias, &rec.Description, &rec.Version,
		&source, &rec.IsCore, &rec.IsInstalled, &status, &rec.Priority, &rec.Sort,
		&dependencies, &providers, &keyword, &rec.Path, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Source = module.Source(source)
	rec.Status = module.Status(status)
	rec.Dependencies = []string(dependencies)
	rec.Providers = []string(providers)
	rec.Keywords = []string(keyword)
	return module.ReconstructModule(rec), nil
}

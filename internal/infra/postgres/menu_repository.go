package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/shared"
)

// MenuRepository reads the menu catalog.
type MenuRepository struct {
	db *DB
}

var _ menu.Repository = (*MenuRepository)(nil)

// NewMenuRepository creates a new MenuRepository.
func NewMenuRepository(db *DB) *MenuRepository {
	return &MenuRepository{db: db}
}

const menuColumns = `
	menu_id, menu_key, menu_name, menu_type, parent_id, account_type, module_id,
	path, icon, sort, is_required, status, created_at`

// ListByAccountType returns the menus of an account class.
func (r *MenuRepository) ListByAccountType(ctx context.Context, accountType shared.AccountType, enabledOnly bool) ([]*menu.Menu, error) {
	query := `SELECT` + menuColumns + ` FROM menus WHERE account_type = $1`
	if enabledOnly {
		query += ` AND status = 'enabled'`
	}
	query += ` ORDER BY sort ASC, menu_id ASC`
	return r.list(ctx, query, string(accountType))
}

// ListByIDs returns the menus with the given ids. Unknown ids are skipped.
func (r *MenuRepository) ListByIDs(ctx context.Context, ids []shared.ID) ([]*menu.Menu, error) {
	if len(ids) == 0 {
		return []*menu.Menu{}, nil
	}
	query := `SELECT` + menuColumns + ` FROM menus WHERE menu_id = ANY($1) ORDER BY sort ASC, menu_id ASC`
	return r.list(ctx, query, idArray(ids))
}

// ListByModule returns every menu owned by a module.
func (r *MenuRepository) ListByModule(ctx context.Context, moduleID shared.ID) ([]*menu.Menu, error) {
	query := `SELECT` + menuColumns + ` FROM menus WHERE module_id = $1 ORDER BY sort ASC, menu_id ASC`
	return r.list(ctx, query, moduleID.Int64())
}

func (r *MenuRepository) list(ctx context.Context, query string, args ...any) ([]*menu.Menu, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list menus: %w", err)
	}
	defer rows.Close()

	menus := make([]*menu.Menu, 0)
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu: %w", err)
		}
		menus = append(menus, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate menus: %w", err)
	}
	return menus, nil
}

func scanMenu(row rowScanner) (*menu.Menu, error) {
	var (
		rec                           menu.Record
		menuType, accountType, status string
		moduleID                      sql.NullInt64
	)
	if err := row.Scan(
		&rec.ID, &rec.Key, &rec.Name, &menuType, &rec.ParentID, &accountType, &moduleID,
		&rec.Path, &rec.Icon, &rec.Sort, &rec.IsRequired, &status, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Type = menu.Type(menuType)
	rec.AccountType = shared.AccountType(accountType)
	rec.ModuleID = nullIDValue(moduleID)
	rec.Status = menu.Status(status)
	return menu.ReconstructMenu(rec), nil
}

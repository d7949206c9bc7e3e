package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/role"
	"github.com/openctemio/console/pkg/domain/shared"
)

// RoleMenuRepository owns the role_menu and menu_move_map tables.
type RoleMenuRepository struct {
	db *DB
}

var _ role.GrantRepository = (*RoleMenuRepository)(nil)

// NewRoleMenuRepository creates a new RoleMenuRepository.
func NewRoleMenuRepository(db *DB) *RoleMenuRepository {
	return &RoleMenuRepository{db: db}
}

// =============================================================================
// Grants
// =============================================================================

// ListMenuIDs returns the menu ids granted to a role, ascending.
func (r *RoleMenuRepository) ListMenuIDs(ctx context.Context, roleID shared.ID) ([]shared.ID, error) {
	return listGrantedMenus(ctx, r.db, roleID)
}

// UpdateMenus applies the planner's diff to the grants read under the role
// lock and, when relocations is non-nil, replaces the role's relocation map.
func (r *RoleMenuRepository) UpdateMenus(
	ctx context.Context,
	roleID shared.ID,
	plan role.GrantPlanner,
	relocations role.RelocationMap,
) (role.GrantDiff, error) {
	var diff role.GrantDiff

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := lockRole(ctx, tx, roleID); err != nil {
			return err
		}

		current, err := listGrantedMenus(ctx, tx, roleID)
		if err != nil {
			return err
		}
		diff = plan(current)

		if len(diff.ToRemove) > 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM role_menu WHERE role_id = $1 AND menu_id = ANY($2)`,
				roleID.Int64(), idArray(diff.ToRemove),
			); err != nil {
				return fmt.Errorf("failed to revoke menus: %w", err)
			}
		}
		if len(diff.ToAdd) > 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO role_menu (role_id, menu_id)
				SELECT $1, unnest($2::bigint[])
				ON CONFLICT DO NOTHING`,
				roleID.Int64(), idArray(diff.ToAdd),
			); err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("%w: granted menu no longer exists", menu.ErrMenuNotFound)
				}
				return fmt.Errorf("failed to grant menus: %w", err)
			}
		}

		if relocations == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM menu_move_map WHERE role_id = $1`, roleID.Int64()); err != nil {
			return fmt.Errorf("failed to clear menu move map: %w", err)
		}
		_, err = upsertRelocations(ctx, tx, roleID, relocations)
		return err
	})
	if err != nil {
		return role.GrantDiff{}, err
	}
	return diff, nil
}

// =============================================================================
// Relocation map
// =============================================================================

// GetRelocations returns the role's relocation map.
func (r *RoleMenuRepository) GetRelocations(ctx context.Context, roleID shared.ID) (role.RelocationMap, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT menu_id, target_module_id FROM menu_move_map WHERE role_id = $1`,
		roleID.Int64(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get menu move map: %w", err)
	}
	defer rows.Close()

	out := make(role.RelocationMap)
	for rows.Next() {
		var menuID, target shared.ID
		if err := rows.Scan(&menuID, &target); err != nil {
			return nil, fmt.Errorf("failed to scan menu move map: %w", err)
		}
		out[menuID] = target
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate menu move map: %w", err)
	}
	return out, nil
}

// ApplyRelocations upserts and deletes entries under the role lock. Upserts
// that leave an entry unchanged are not counted.
func (r *RoleMenuRepository) ApplyRelocations(
	ctx context.Context,
	roleID shared.ID,
	upserts role.RelocationMap,
	deletes []shared.ID,
) (int, error) {
	changed := 0

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := lockRole(ctx, tx, roleID); err != nil {
			return err
		}

		n, err := upsertRelocations(ctx, tx, roleID, upserts)
		if err != nil {
			return err
		}
		changed += n

		if len(deletes) == 0 {
			return nil
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM menu_move_map WHERE role_id = $1 AND menu_id = ANY($2)`,
			roleID.Int64(), idArray(deletes),
		)
		if err != nil {
			return fmt.Errorf("failed to delete menu move map entries: %w", err)
		}
		changed += rowsAffected(res)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// DeleteRelocationsByTarget removes entries targeting a module.
func (r *RoleMenuRepository) DeleteRelocationsByTarget(ctx context.Context, roleID, moduleID shared.ID) (int, error) {
	removed := 0

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := lockRole(ctx, tx, roleID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM menu_move_map WHERE role_id = $1 AND target_module_id = $2`,
			roleID.Int64(), moduleID.Int64(),
		)
		if err != nil {
			return fmt.Errorf("failed to delete menu move map entries: %w", err)
		}
		removed = rowsAffected(res)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func listGrantedMenus(ctx context.Context, q queryer, roleID shared.ID) ([]shared.ID, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT menu_id FROM role_menu WHERE role_id = $1 ORDER BY menu_id ASC`,
		roleID.Int64(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list role menus: %w", err)
	}
	defer rows.Close()

	ids := make([]shared.ID, 0)
	for rows.Next() {
		var id shared.ID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role menu: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role menus: %w", err)
	}
	return ids, nil
}

// upsertRelocations writes entries in one statement. Rows whose target is
// already the requested one are left untouched and not counted.
func upsertRelocations(ctx context.Context, tx *sql.Tx, roleID shared.ID, entries role.RelocationMap) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	menuIDs := entries.MenuIDs()
	targets := make([]shared.ID, len(menuIDs))
	for i, id := range menuIDs {
		targets[i] = entries[id]
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO menu_move_map (role_id, menu_id, target_module_id)
		SELECT $1, u.menu_id, u.target_module_id
		FROM unnest($2::bigint[], $3::bigint[]) AS u(menu_id, target_module_id)
		ON CONFLICT (role_id, menu_id) DO UPDATE
			SET target_module_id = EXCLUDED.target_module_id
			WHERE menu_move_map.target_module_id <> EXCLUDED.target_module_id`,
		roleID.Int64(), idArray(menuIDs), idArray(targets),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%w: relocation references an unknown menu or module", shared.ErrValidation)
		}
		return 0, fmt.Errorf("failed to upsert menu move map: %w", err)
	}
	return rowsAffected(res), nil
}

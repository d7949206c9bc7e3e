package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openctemio/console/pkg/domain/entitlement"
	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
)

// accountLockNamespace is the first key of the per-account advisory lock.
const accountLockNamespace = 7201

// EntitlementRepository handles account_module rows and the install and
// uninstall transactions around them.
type EntitlementRepository struct {
	db *DB
}

var _ entitlement.Repository = (*EntitlementRepository)(nil)

// NewEntitlementRepository creates a new EntitlementRepository.
func NewEntitlementRepository(db *DB) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

// ListByAccount returns an account's entitlements ordered by sort.
func (r *EntitlementRepository) ListByAccount(ctx context.Context, accountID shared.ID) ([]*entitlement.Entitlement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT module_id, sort, created_at
		FROM account_module
		WHERE account_id = $1
		ORDER BY sort ASC, module_id ASC`,
		accountID.Int64(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}
	defer rows.Close()

	out := make([]*entitlement.Entitlement, 0)
	for rows.Next() {
		var (
			moduleID  shared.ID
			sort      int
			createdAt time.Time
		)
		if err := rows.Scan(&moduleID, &sort, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entitlement: %w", err)
		}
		out = append(out, entitlement.Reconstruct(accountID, moduleID, sort, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entitlements: %w", err)
	}
	return out, nil
}

// CountByModule returns how many accounts are entitled to a module.
func (r *EntitlementRepository) CountByModule(ctx context.Context, moduleID shared.ID) (int, error) {
	return countEntitled(ctx, r.db, moduleID)
}

// Reorder sets each listed module's sort to its 1-based position.
func (r *EntitlementRepository) Reorder(ctx context.Context, accountID shared.ID, moduleIDs []shared.ID) (int, error) {
	if len(moduleIDs) == 0 {
		return 0, nil
	}
	updated := 0
	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := lockAccount(ctx, tx, accountID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE account_module am
			SET sort = u.position
			FROM unnest($2::bigint[]) WITH ORDINALITY AS u(module_id, position)
			WHERE am.account_id = $1 AND am.module_id = u.module_id`,
			accountID.Int64(), idArray(moduleIDs),
		)
		if err != nil {
			return fmt.Errorf("failed to reorder entitlements: %w", err)
		}
		updated = rowsAffected(res)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// Install entitles the account, flags the module installed and imports the
// module's menus. Runs under the account's advisory lock and the module row
// lock, so the dependency check sees the account's entitlements as committed.
func (r *EntitlementRepository) Install(ctx context.Context, req entitlement.InstallRequest) (*entitlement.InstallResult, error) {
	result := &entitlement.InstallResult{}

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := lockAccount(ctx, tx, req.AccountID); err != nil {
			return err
		}
		if err := lockModule(ctx, tx, req.ModuleID); err != nil {
			return err
		}

		var sort int
		err := tx.QueryRowContext(ctx,
			`SELECT sort FROM account_module WHERE account_id = $1 AND module_id = $2`,
			req.AccountID.Int64(), req.ModuleID.Int64(),
		).Scan(&sort)
		switch {
		case err == nil:
			result.AlreadyInstalled = true
			result.Sort = sort
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to check entitlement: %w", err)
		}

		if err := checkDependencies(ctx, tx, req); err != nil {
			return err
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sort), 0) + 1 FROM account_module WHERE account_id = $1`,
			req.AccountID.Int64(),
		).Scan(&sort); err != nil {
			return fmt.Errorf("failed to compute entitlement sort: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO account_module (account_id, module_id, sort, created_at) VALUES ($1, $2, $3, NOW())`,
			req.AccountID.Int64(), req.ModuleID.Int64(), sort,
		); err != nil {
			return fmt.Errorf("failed to create entitlement: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE modules SET is_installed = TRUE, updated_at = NOW() WHERE id = $1`,
			req.ModuleID.Int64(),
		); err != nil {
			return fmt.Errorf("failed to mark module installed: %w", err)
		}

		imported, err := importMenus(ctx, tx, req.AccountType, req.ModuleID, req.Menus)
		if err != nil {
			return err
		}
		result.Sort = sort
		result.ImportedMenus = imported
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Uninstall removes the account's entitlement and the module's non-required
// menus, together with every grant and relocation that references them or
// targets the module. The module stays flagged installed while other accounts
// hold it.
func (r *EntitlementRepository) Uninstall(ctx context.Context, req entitlement.UninstallRequest) (*entitlement.UninstallResult, error) {
	result := &entitlement.UninstallResult{}

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := lockAccount(ctx, tx, req.AccountID); err != nil {
			return err
		}
		if err := lockModule(ctx, tx, req.ModuleID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM account_module WHERE account_id = $1 AND module_id = $2`,
			req.AccountID.Int64(), req.ModuleID.Int64(),
		)
		if err != nil {
			return fmt.Errorf("failed to delete entitlement: %w", err)
		}
		result.RemovedEntitlements = rowsAffected(res)

		remaining, err := countEntitled(ctx, tx, req.ModuleID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE modules SET is_installed = $2, updated_at = NOW() WHERE id = $1`,
			req.ModuleID.Int64(), remaining > 0,
		); err != nil {
			return fmt.Errorf("failed to update module install flag: %w", err)
		}
		return cleanupModuleMenus(ctx, tx, req.ModuleID, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkDependencies(ctx context.Context, tx *sql.Tx, req entitlement.InstallRequest) error {
	if len(req.Dependencies) == 0 {
		return nil
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT m.module_name
		FROM account_module am
		JOIN modules m ON m.id = am.module_id
		WHERE am.account_id = $1 AND m.module_name = ANY($2)`,
		req.AccountID.Int64(), stringArray(req.Dependencies),
	)
	if err != nil {
		return fmt.Errorf("failed to check dependencies: %w", err)
	}
	defer rows.Close()

	entitled := make(map[string]bool, len(req.Dependencies))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan dependency: %w", err)
		}
		entitled[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate dependencies: %w", err)
	}
	return req.CheckDependencies(func(name string) bool { return entitled[name] })
}

func cleanupModuleMenus(ctx context.Context, tx *sql.Tx, moduleID shared.ID, result *entitlement.UninstallResult) error {
	menuIDs, err := listIDs(ctx, tx,
		`SELECT menu_id FROM menus WHERE module_id = $1 AND NOT is_required`,
		moduleID.Int64(),
	)
	if err != nil {
		return fmt.Errorf("failed to list module menus: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM role_menu WHERE menu_id = ANY($1)`,
		idArray(menuIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to delete role menus: %w", err)
	}
	result.RemovedGrants = rowsAffected(res)

	res, err = tx.ExecContext(ctx,
		`DELETE FROM menu_move_map WHERE menu_id = ANY($1) OR target_module_id = $2`,
		idArray(menuIDs), moduleID.Int64(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete menu move map entries: %w", err)
	}
	result.RemovedRelocations = rowsAffected(res)

	res, err = tx.ExecContext(ctx,
		`DELETE FROM menus WHERE menu_id = ANY($1)`,
		idArray(menuIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to delete module menus: %w", err)
	}
	result.RemovedMenus = rowsAffected(res)
	return nil
}

// importMenus inserts seeds whose key is new for the account type, parents
// first. A seed's parent key resolves against both existing and freshly
// imported menus; an unresolvable parent yields a root menu.
func importMenus(ctx context.Context, tx *sql.Tx, accountType shared.AccountType, moduleID shared.ID, seeds []menu.Seed) (int, error) {
	byKey := make(map[string]shared.ID, len(seeds))
	resolve := func(key string) (shared.ID, error) {
		if key == "" {
			return menu.RootParentID, nil
		}
		if id, ok := byKey[key]; ok {
			return id, nil
		}
		var id shared.ID
		err := tx.QueryRowContext(ctx,
			`SELECT menu_id FROM menus WHERE account_type = $1 AND menu_key = $2`,
			string(accountType), key,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return menu.RootParentID, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to resolve menu %s: %w", key, err)
		}
		byKey[key] = id
		return id, nil
	}

	imported := 0
	for _, seed := range seeds {
		parentID, err := resolve(seed.ParentKey)
		if err != nil {
			return 0, err
		}

		var id shared.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO menus (
				menu_key, menu_name, menu_type, parent_id, account_type, module_id,
				path, icon, sort, is_required, status, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'enabled', NOW())
			ON CONFLICT (account_type, menu_key) DO NOTHING
			RETURNING menu_id`,
			seed.Key, seed.Name, string(seed.Type), parentID.Int64(), string(accountType), nullID(moduleID),
			seed.Path, seed.Icon, seed.Sort, seed.Required,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			// Key already taken; later seeds may still hang below it.
			if _, err := resolve(seed.Key); err != nil {
				return 0, err
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to import menu %s: %w", seed.Key, err)
		}
		byKey[seed.Key] = id
		imported++
	}
	return imported, nil
}

// lockAccount serializes lifecycle writes of one account until commit.
func lockAccount(ctx context.Context, tx *sql.Tx, accountID shared.ID) error {
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock($1, hashint8($2))`,
		accountLockNamespace, accountID.Int64(),
	); err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}
	return nil
}

// lockModule locks the registry row so entitlement counts stay stable.
func lockModule(ctx context.Context, tx *sql.Tx, moduleID shared.ID) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM modules WHERE id = $1 FOR UPDATE`, moduleID.Int64()).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", module.ErrModuleNotFound, moduleID)
		}
		return fmt.Errorf("failed to lock module: %w", err)
	}
	return nil
}

func countEntitled(ctx context.Context, q queryer, moduleID shared.ID) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_module WHERE module_id = $1`,
		moduleID.Int64(),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entitlements: %w", err)
	}
	return n, nil
}

func listIDs(ctx context.Context, q queryer, query string, args ...any) ([]shared.ID, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]shared.ID, 0)
	for rows.Next() {
		var id shared.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

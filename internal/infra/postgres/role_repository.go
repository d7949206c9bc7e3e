package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openctemio/console/pkg/domain/role"
	"github.com/openctemio/console/pkg/domain/shared"
)

// RoleRepository handles read access to roles.
type RoleRepository struct {
	db *DB
}

var _ role.Repository = (*RoleRepository)(nil)

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleColumns = `role_id, account_type, role_code, role_name, status, sort, created_at, updated_at`

// GetByID retrieves a role by its ID.
func (r *RoleRepository) GetByID(ctx context.Context, id shared.ID) (*role.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE role_id = $1`

	rl, err := scanRole(r.db.QueryRowContext(ctx, query, id.Int64()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", role.ErrRoleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return rl, nil
}

// ListByAccountType lists roles of one account class ordered by sort.
func (r *RoleRepository) ListByAccountType(ctx context.Context, accountType shared.AccountType) ([]*role.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE account_type = $1 ORDER BY sort ASC, role_id ASC`

	rows, err := r.db.QueryContext(ctx, query, string(accountType))
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]*role.Role, 0)
	for rows.Next() {
		rl, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

func scanRole(row rowScanner) (*role.Role, error) {
	var (
		id                 shared.ID
		accountType        string
		code, name, status string
		sort               int
		createdAt, updated sql.NullTime
	)
	if err := row.Scan(&id, &accountType, &code, &name, &status, &sort, &createdAt, &updated); err != nil {
		return nil, err
	}
	return role.Reconstruct(
		id,
		shared.AccountType(accountType),
		code,
		name,
		role.Status(status),
		sort,
		createdAt.Time,
		updated.Time,
	), nil
}

// lockRole takes the row lock that serializes every grant and relocation
// write of a role. Fails with ErrRoleNotFound for unknown roles.
func lockRole(ctx context.Context, tx *sql.Tx, roleID shared.ID) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT role_id FROM roles WHERE role_id = $1 FOR UPDATE`, roleID.Int64()).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", role.ErrRoleNotFound, roleID)
		}
		return fmt.Errorf("failed to lock role: %w", err)
	}
	return nil
}

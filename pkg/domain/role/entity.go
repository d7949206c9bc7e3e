// Package role provides roles and the two role-scoped tables derived from
// them: menu grants and the menu relocation map.
package role

import (
	"fmt"
	"time"

	"github.com/openctemio/console/pkg/domain/shared"
)

// Domain errors.
var (
	ErrRoleNotFound        = fmt.Errorf("%w: role not found", shared.ErrNotFound)
	ErrAccountTypeMismatch = fmt.Errorf("%w: role belongs to another account type", shared.ErrValidation)
)

// Status of a role.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// Role groups menu grants for one account class.
type Role struct {
	id          shared.ID
	accountType shared.AccountType
	code        string
	name        string
	status      Status
	sort        int
	createdAt   time.Time
	updatedAt   time.Time
}

// Reconstruct creates a role from persistence data.
func Reconstruct(
	id shared.ID,
	accountType shared.AccountType,
	code string,
	name string,
	status Status,
	sort int,
	createdAt time.Time,
	updatedAt time.Time,
) *Role {
	return &Role{
		id:          id,
		accountType: accountType,
		code:        code,
		name:        name,
		status:      status,
		sort:        sort,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// Getters

// ID returns the role ID.
func (r *Role) ID() shared.ID { return r.id }

// AccountType returns the account class the role applies to.
func (r *Role) AccountType() shared.AccountType { return r.accountType }

// Code returns the role code, unique per account type.
func (r *Role) Code() string { return r.code }

// Name returns the display name.
func (r *Role) Name() string { return r.name }

// Status returns the role status.
func (r *Role) Status() Status { return r.status }

// Sort returns the display order.
func (r *Role) Sort() int { return r.sort }

// CreatedAt returns the creation time.
func (r *Role) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last update time.
func (r *Role) UpdatedAt() time.Time { return r.updatedAt }

// CheckAccountType fails when the role does not belong to accountType.
func (r *Role) CheckAccountType(accountType shared.AccountType) error {
	if r.accountType != accountType {
		return fmt.Errorf("%w: role %d is %s, not %s", ErrAccountTypeMismatch, r.id, r.accountType, accountType)
	}
	return nil
}

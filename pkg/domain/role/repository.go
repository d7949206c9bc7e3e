package role

import (
	"context"

	"github.com/openctemio/console/pkg/domain/shared"
)

// Repository reads roles. Role records themselves are maintained elsewhere.
type Repository interface {
	// GetByID retrieves a role by its ID.
	GetByID(ctx context.Context, id shared.ID) (*Role, error)

	// ListByAccountType lists roles of one account class ordered by sort.
	ListByAccountType(ctx context.Context, accountType shared.AccountType) ([]*Role, error)
}

// GrantRepository owns the role-menu grants and the menu relocation map.
// Every write locks the role so that concurrent writers are serialized.
type GrantRepository interface {
	// === Grants ===

	// ListMenuIDs returns the menu ids granted to a role, ascending.
	ListMenuIDs(ctx context.Context, roleID shared.ID) ([]shared.ID, error)

	// UpdateMenus reads the current grants under the role lock, applies the
	// planner's diff and, when relocations is non-nil, replaces the whole
	// relocation map. One transaction. Returns the applied diff.
	UpdateMenus(ctx context.Context, roleID shared.ID, plan GrantPlanner, relocations RelocationMap) (GrantDiff, error)

	// === Relocation map ===

	// GetRelocations returns the role's relocation map.
	GetRelocations(ctx context.Context, roleID shared.ID) (RelocationMap, error)

	// ApplyRelocations upserts entries and removes the listed menus from the
	// map under the role lock, in one transaction. Returns rows changed.
	ApplyRelocations(ctx context.Context, roleID shared.ID, upserts RelocationMap, deletes []shared.ID) (int, error)

	// DeleteRelocationsByTarget removes entries targeting a module. Returns rows removed.
	DeleteRelocationsByTarget(ctx context.Context, roleID, moduleID shared.ID) (int, error)
}

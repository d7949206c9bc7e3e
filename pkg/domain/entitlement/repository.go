package entitlement

import (
	"context"

	"github.com/openctemio/console/pkg/domain/shared"
)

// Repository persists entitlements and runs the lifecycle units of work that
// span the registry, the menu catalog and role grants.
type Repository interface {
	// ListByAccount returns an account's entitlements ordered by sort.
	ListByAccount(ctx context.Context, accountID shared.ID) ([]*Entitlement, error)

	// CountByModule returns how many accounts are entitled to a module.
	CountByModule(ctx context.Context, moduleID shared.ID) (int, error)

	// Reorder rewrites the sort of the listed modules to their position (1-based).
	// Modules the account is not entitled to are skipped. Returns rows updated.
	Reorder(ctx context.Context, accountID shared.ID, moduleIDs []shared.ID) (int, error)

	// Install creates the entitlement with the next sort, marks the module
	// installed and imports its menus, atomically and serialized per account.
	// An existing entitlement makes it a no-op reported as AlreadyInstalled.
	// A declared dependency the account is not entitled to fails the install
	// with a *module.DependencyError and no change.
	Install(ctx context.Context, req InstallRequest) (*InstallResult, error)

	// Uninstall deletes the entitlement, the module's non-required menus, every
	// grant and relocation referencing them and relocations targeting the
	// module, then recomputes the module's installed flag. The cascade runs on
	// every uninstall, whether or not other accounts still hold the module. Atomic.
	Uninstall(ctx context.Context, req UninstallRequest) (*UninstallResult, error)
}

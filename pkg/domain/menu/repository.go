package menu

import (
	"context"

	"github.com/openctemio/console/pkg/domain/shared"
)

// Repository reads the menu catalog. Writes happen through module lifecycle
// transactions only.
type Repository interface {
	// ListByAccountType returns the menus of an account class, optionally only enabled ones.
	ListByAccountType(ctx context.Context, accountType shared.AccountType, enabledOnly bool) ([]*Menu, error)

	// ListByIDs returns the menus with the given ids. Unknown ids are skipped.
	ListByIDs(ctx context.Context, ids []shared.ID) ([]*Menu, error)

	// ListByModule returns every menu owned by a module.
	ListByModule(ctx context.Context, moduleID shared.ID) ([]*Menu, error)
}

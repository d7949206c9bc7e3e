package main

import (
	"github.com/openctemio/console/internal/infra/memstore"
	"github.com/openctemio/console/internal/infra/postgres"
	"github.com/openctemio/console/pkg/domain/entitlement"
	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/role"
	"github.com/openctemio/console/pkg/domain/shared"
)

// Repositories holds all repository instances.
type Repositories struct {
	Modules      module.Repository
	Menus        menu.Repository
	Roles        role.Repository
	Grants       role.GrantRepository
	Entitlements entitlement.Repository
}

// NewPostgresRepositories creates the repositories backed by Postgres.
func NewPostgresRepositories(db *postgres.DB) *Repositories {
	return &Repositories{
		Modules:      postgres.NewModuleRepository(db),
		Menus:        postgres.NewMenuRepository(db),
		Roles:        postgres.NewRoleRepository(db),
		Grants:       postgres.NewRoleMenuRepository(db),
		Entitlements: postgres.NewEntitlementRepository(db),
	}
}

// NewMemoryRepositories creates the in-memory repositories, seeded with the
// same default roles the migrations insert.
func NewMemoryRepositories() *Repositories {
	store := memstore.New()
	store.PutRole(shared.AccountTypeOperator, "admin", "Administrator", 1)
	store.PutRole(shared.AccountTypeMember, "owner", "Owner", 1)

	return &Repositories{
		Modules:      store.Modules(),
		Menus:        store.Menus(),
		Roles:        store.Roles(),
		Grants:       store.Grants(),
		Entitlements: store.Entitlements(),
	}
}

package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/console/internal/infra/memstore"
	"github.com/openctemio/console/pkg/domain/entitlement"
	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/role"
	"github.com/openctemio/console/pkg/domain/shared"
)

const operator = shared.AccountType("operator")

func seeds() []menu.Seed {
	return []menu.Seed{
		{Key: "crm", Name: "CRM", Type: menu.TypeDir},
		{Key: "crm.customers", ParentKey: "crm", Name: "Customers", Type: menu.TypeMenu},
		{Key: "crm.home", ParentKey: "crm", Name: "Home", Type: menu.TypeMenu, Required: true},
	}
}

func TestModuleRepository_UpsertPreservesLifecycleState(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New().Modules()

	first, err := repo.Upsert(ctx, module.NewFromManifest(&module.Manifest{Name: "crm", Version: "1.0.0", Sort: 3}, "crm"))
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, first.ID(), module.StatusDisabled))

	second, err := repo.Upsert(ctx, module.NewFromManifest(&module.Manifest{Name: "crm", Version: "2.0.0", Sort: 9}, "crm-v2"))
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, "2.0.0", second.Version())
	assert.Equal(t, "crm-v2", second.Path())
	assert.Equal(t, module.StatusDisabled, second.Status())
	assert.Equal(t, 3, second.Sort())
}

func TestEntitlementRepository_InstallIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	mod := store.PutModule(module.Record{Name: "crm"})
	repo := store.Entitlements()

	req := entitlement.InstallRequest{AccountID: 7, ModuleID: mod.ID(), AccountType: operator, Menus: seeds()}

	res, err := repo.Install(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.AlreadyInstalled)
	assert.Equal(t, 1, res.Sort)
	assert.Equal(t, 3, res.ImportedMenus)

	res, err = repo.Install(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.AlreadyInstalled)
	assert.Equal(t, 3, store.Snapshot().Menus)

	// Another account shares the catalog of the account type.
	res, err = repo.Install(ctx, entitlement.InstallRequest{AccountID: 8, ModuleID: mod.ID(), AccountType: operator, Menus: seeds()})
	require.NoError(t, err)
	assert.Zero(t, res.ImportedMenus)
	assert.Equal(t, 3, store.Snapshot().Menus)

	menus, err := store.Menus().ListByModule(ctx, mod.ID())
	require.NoError(t, err)
	byKey := map[string]*menu.Menu{}
	for _, m := range menus {
		byKey[m.Key()] = m
	}
	assert.Equal(t, byKey["crm"].ID(), byKey["crm.customers"].ParentID())
	assert.True(t, byKey["crm.home"].IsRequired())

	installed, err := store.Modules().GetByID(ctx, mod.ID())
	require.NoError(t, err)
	assert.True(t, installed.IsInstalled())
}

func TestEntitlementRepository_InstallAssignsNextSort(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	a := store.PutModule(module.Record{Name: "a"})
	b := store.PutModule(module.Record{Name: "b"})
	store.PutEntitlement(1, a.ID(), 5)

	res, err := store.Entitlements().Install(ctx, entitlement.InstallRequest{AccountID: 1, ModuleID: b.ID(), AccountType: operator})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Sort)

	n, err := store.Entitlements().Reorder(ctx, 1, []shared.ID{b.ID(), a.ID(), 99})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := store.Entitlements().ListByAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []shared.ID{b.ID(), a.ID()}, entitlement.ModuleIDs(list))
}

func TestEntitlementRepository_UninstallCascades(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	crm := store.PutModule(module.Record{Name: "crm"})
	other := store.PutModule(module.Record{Name: "other"})
	foreign := store.PutMenu(menu.Record{Key: "other.page", AccountType: operator, ModuleID: other.ID()})

	_, err := store.Entitlements().Install(ctx, entitlement.InstallRequest{AccountID: 1, ModuleID: crm.ID(), AccountType: operator, Menus: seeds()})
	require.NoError(t, err)

	menus, err := store.Menus().ListByModule(ctx, crm.ID())
	require.NoError(t, err)
	ids := make([]shared.ID, 0, len(menus))
	for _, m := range menus {
		ids = append(ids, m.ID())
	}

	r := store.PutRole(operator, "admin", "Admin", 1)
	store.PutGrants(r.ID(), append(ids, foreign.ID())...)
	moves := role.RelocationMap{ids[0]: other.ID(), foreign.ID(): crm.ID()}
	_, err = store.Grants().ApplyRelocations(ctx, r.ID(), moves, nil)
	require.NoError(t, err)

	res, err := store.Entitlements().Uninstall(ctx, entitlement.UninstallRequest{AccountID: 1, ModuleID: crm.ID()})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemovedEntitlements)
	assert.Equal(t, 2, res.RemovedMenus)
	assert.Equal(t, 2, res.RemovedGrants)
	assert.Equal(t, 2, res.RemovedRelocations)

	granted, err := store.Grants().ListMenuIDs(ctx, r.ID())
	require.NoError(t, err)
	remaining, err := store.Menus().ListByIDs(ctx, granted)
	require.NoError(t, err)
	assert.Len(t, remaining, len(granted), "no grant may reference a deleted menu")

	relocs, err := store.Grants().GetRelocations(ctx, r.ID())
	require.NoError(t, err)
	assert.Empty(t, relocs)

	mod, err := store.Modules().GetByID(ctx, crm.ID())
	require.NoError(t, err)
	assert.False(t, mod.IsInstalled())
}

func TestEntitlementRepository_UninstallCascadesWhileOthersEntitled(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	crm := store.PutModule(module.Record{Name: "crm"})
	other := store.PutModule(module.Record{Name: "other"})
	foreign := store.PutMenu(menu.Record{Key: "other.page", AccountType: operator, ModuleID: other.ID()})
	for _, account := range []shared.ID{100, 200} {
		_, err := store.Entitlements().Install(ctx, entitlement.InstallRequest{AccountID: account, ModuleID: crm.ID(), AccountType: operator, Menus: seeds()})
		require.NoError(t, err)
	}

	menus, err := store.Menus().ListByModule(ctx, crm.ID())
	require.NoError(t, err)
	require.Len(t, menus, 3)
	var movable shared.ID
	r := store.PutRole(operator, "admin", "Admin", 1)
	for _, m := range menus {
		store.PutGrants(r.ID(), m.ID())
		if !m.IsRequired() {
			movable = m.ID()
		}
	}
	_, err = store.Grants().ApplyRelocations(ctx, r.ID(), role.RelocationMap{movable: other.ID(), foreign.ID(): crm.ID()}, nil)
	require.NoError(t, err)

	res, err := store.Entitlements().Uninstall(ctx, entitlement.UninstallRequest{AccountID: 100, ModuleID: crm.ID()})
	require.NoError(t, err)
	assert.Equal(t, entitlement.UninstallResult{
		RemovedEntitlements: 1,
		RemovedMenus:        2,
		RemovedGrants:       2,
		RemovedRelocations:  2,
	}, *res)

	granted, err := store.Grants().ListMenuIDs(ctx, r.ID())
	require.NoError(t, err)
	existing, err := store.Menus().ListByIDs(ctx, granted)
	require.NoError(t, err)
	assert.Len(t, existing, len(granted), "no grant may reference a deleted menu")
	assert.Len(t, granted, 1)

	relocs, err := store.Grants().GetRelocations(ctx, r.ID())
	require.NoError(t, err)
	assert.Empty(t, relocs, "no relocation may reference a deleted menu or target the module")

	left, err := store.Menus().ListByModule(ctx, crm.ID())
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.True(t, left[0].IsRequired())

	mod, err := store.Modules().GetByID(ctx, crm.ID())
	require.NoError(t, err)
	assert.True(t, mod.IsInstalled(), "account 200 still holds the module")
}

func TestEntitlementRepository_InstallChecksDependencies(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	accounts := store.PutModule(module.Record{Name: "accounts"})
	billing := store.PutModule(module.Record{Name: "billing"})
	req := entitlement.InstallRequest{
		AccountID:    1,
		ModuleID:     billing.ID(),
		AccountType:  operator,
		ModuleName:   "billing",
		Dependencies: []string{"ledger", "accounts"},
	}

	_, err := store.Entitlements().Install(ctx, req)
	require.ErrorIs(t, err, module.ErrDependencyUnsatisfied)
	var depErr *module.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, []string{"ledger", "accounts"}, depErr.Missing)
	assert.Zero(t, store.Snapshot().Entitlements)

	store.PutEntitlement(2, accounts.ID(), 1)
	_, err = store.Entitlements().Install(ctx, req)
	require.ErrorAs(t, err, &depErr, "another account's entitlement does not count")

	store.PutEntitlement(1, accounts.ID(), 1)
	req.Dependencies = []string{"accounts"}
	res, err := store.Entitlements().Install(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sort)
}

func TestGrantRepository_Relocations(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	r := store.PutRole(operator, "admin", "Admin", 1)
	grants := store.Grants()

	n, err := grants.ApplyRelocations(ctx, r.ID(), role.RelocationMap{10: 2, 11: 2, 12: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = grants.ApplyRelocations(ctx, r.ID(), role.RelocationMap{10: 2}, []shared.ID{12, 99})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "unchanged upsert and unknown delete do not count")

	n, err = grants.DeleteRelocationsByTarget(ctx, r.ID(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = grants.ApplyRelocations(ctx, 404, role.RelocationMap{1: 2}, nil)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

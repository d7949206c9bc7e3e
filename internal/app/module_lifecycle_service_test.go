package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
)

var acme = Account{ID: 100, Type: operator}

func TestModuleLifecycleService_ScanIsolatesFailures(t *testing.T) {
	f := newLifecycleFixture()
	f.reader.manifests["crm"] = manifest("crm")
	f.reader.manifests["bad"] = &module.Manifest{Name: "Bad Name", Version: "1"}
	f.reader.manifests["dup-a"] = manifest("dup")
	f.reader.manifests["dup-b"] = manifest("dup")
	f.reader.errs["broken"] = errors.New("module.yaml: permission denied")

	report, err := f.svc.Scan(context.Background(), ScanInput{})
	require.NoError(t, err)

	require.Len(t, report.Success, 1)
	assert.Equal(t, module.ScanSuccess{ModuleName: "crm", Path: "crm"}, report.Success[0])

	var failed []string
	for _, fl := range report.Failed {
		failed = append(failed, fl.Path)
		assert.NotEmpty(t, fl.Message)
	}
	assert.Equal(t, []string{"bad", "broken", "dup-a", "dup-b"}, failed)

	_, err = f.store.Modules().GetByName(context.Background(), "dup")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestModuleLifecycleService_ScanDropsCachedTrees(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	f.reader.errs["broken"] = errors.New("module.yaml: permission denied")

	_, err := f.svc.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	assert.Zero(t, f.trees.all, "a scan that registers nothing keeps cached trees")

	f.reader.manifests["crm"] = manifest("crm")
	_, err = f.svc.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.trees.all)

	renamed := manifest("crm")
	renamed.Alias = "Customers"
	f.reader.manifests["crm"] = renamed
	_, err = f.svc.Update(ctx, acme, UpdateInput{Path: "crm"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.trees.all)
}

func TestModuleLifecycleService_ScanSinglePath(t *testing.T) {
	f := newLifecycleFixture()
	f.reader.manifests["crm"] = manifest("crm")
	f.reader.manifests["erp"] = manifest("erp")

	report, err := f.svc.Scan(context.Background(), ScanInput{Path: "crm/"})
	require.NoError(t, err)
	require.Len(t, report.Success, 1)
	assert.Equal(t, "crm", report.Success[0].Path)

	_, err = f.svc.Scan(context.Background(), ScanInput{Path: "../etc"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestModuleLifecycleService_RescanKeepsInstallState(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	ids := f.register(map[string]*module.Manifest{"crm": manifest("crm")})

	_, err := f.svc.Install(ctx, acme, ids["crm"])
	require.NoError(t, err)

	upgraded := manifest("crm")
	upgraded.Version = "2.0.0"
	f.reader.manifests["crm"] = upgraded
	_, err = f.svc.Scan(ctx, ScanInput{Path: ScanAll})
	require.NoError(t, err)

	mod, err := f.store.Modules().GetByID(ctx, ids["crm"])
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", mod.Version())
	assert.True(t, mod.IsInstalled())
	assert.True(t, mod.IsEnabled())
}

func TestModuleLifecycleService_InstallDependencyGate(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	ids := f.register(map[string]*module.Manifest{
		"accounts": manifest("accounts"),
		"billing":  manifest("billing", "accounts"),
	})

	_, err := f.svc.Install(ctx, acme, ids["billing"])
	require.ErrorIs(t, err, module.ErrDependencyUnsatisfied)
	depErr, ok := IsDependencyError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"accounts"}, depErr.Missing)
	assert.Zero(t, f.store.Snapshot().Entitlements)

	_, err = f.svc.Install(ctx, acme, ids["accounts"])
	require.NoError(t, err)
	out, err := f.svc.Install(ctx, acme, ids["billing"])
	require.NoError(t, err)
	assert.Equal(t, "billing", out.Module.Name())

	installed, err := f.svc.ListInstalled(ctx, acme)
	require.NoError(t, err)
	require.Len(t, installed, 2)
	assert.Equal(t, "accounts", installed[0].Name())
	assert.Equal(t, "billing", installed[1].Name())
}

func TestModuleLifecycleService_InstallIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	ids := f.register(map[string]*module.Manifest{"crm": manifest("crm")})

	scanned := f.trees.all
	first, err := f.svc.Install(ctx, acme, ids["crm"])
	require.NoError(t, err)
	assert.False(t, first.AlreadyInstalled)
	assert.Equal(t, 3, first.ImportedMenus)
	before := f.store.Snapshot()

	second, err := f.svc.Install(ctx, acme, ids["crm"])
	require.NoError(t, err)
	assert.True(t, second.AlreadyInstalled)
	assert.Equal(t, before, f.store.Snapshot())
	assert.Equal(t, scanned+1, f.trees.all, "only the first install drops cached trees")
}

func TestModuleLifecycleService_InstallRefusals(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	ids := f.register(map[string]*module.Manifest{"crm": manifest("crm")})

	_, err := f.svc.Install(ctx, acme, 999)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.SetStatus(ctx, SetStatusInput{ModuleID: ids["crm"], Status: string(module.StatusDisabled)})
	require.NoError(t, err)
	_, err = f.svc.Install(ctx, acme, ids["crm"])
	assert.ErrorIs(t, err, module.ErrModuleDisabled)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestModuleLifecycleService_UninstallCoreModuleIsRefused(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	ids := f.register(map[string]*module.Manifest{"system": coreManifest("system")})
	_, err := f.svc.Install(ctx, acme, ids["system"])
	require.NoError(t, err)
	before := f.store.Snapshot()

	_, err = f.svc.Uninstall(ctx, acme, UninstallInput{ModuleID: ids["system"]})
	require.ErrorIs(t, err, module.ErrCoreModuleProtected)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, before, f.store.Snapshot())
}

func TestModuleLifecycleService_UninstallCascade(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	ids := f.register(map[string]*module.Manifest{"crm": manifest("crm"), "erp": manifest("erp")})
	for _, name := range []string{"crm", "erp"} {
		_, err := f.svc.Install(ctx, acme, ids[name])
		require.NoError(t, err)
	}

	crmMenus, err := f.store.Menus().ListByModule(ctx, ids["crm"])
	require.NoError(t, err)
	erpMenus, err := f.store.Menus().ListByModule(ctx, ids["erp"])
	require.NoError(t, err)

	r := f.store.PutRole(operator, "admin", "Admin", 1)
	for _, m := range append(crmMenus, erpMenus...) {
		f.store.PutGrants(r.ID(), m.ID())
	}
	_, err = f.store.Grants().ApplyRelocations(ctx, r.ID(), map[shared.ID]shared.ID{
		crmMenus[0].ID(): ids["erp"],
		erpMenus[0].ID(): ids["crm"],
	}, nil)
	require.NoError(t, err)

	out, err := f.svc.Uninstall(ctx, acme, UninstallInput{ModuleID: ids["crm"]})
	require.NoError(t, err)
	assert.Equal(t, "crm", out.Module.Name())
	assert.Equal(t, 1, out.Removed.RemovedEntitlements)
	assert.Equal(t, 2, out.Removed.RemovedMenus)
	assert.Equal(t, 2, out.Removed.RemovedGrants)
	assert.Equal(t, 2, out.Removed.RemovedRelocations)

	granted, err := f.store.Grants().ListMenuIDs(ctx, r.ID())
	require.NoError(t, err)
	existing, err := f.store.Menus().ListByIDs(ctx, granted)
	require.NoError(t, err)
	assert.Len(t, existing, len(granted))

	left, err := f.store.Menus().ListByModule(ctx, ids["crm"])
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.True(t, left[0].IsRequired())
}

func TestModuleLifecycleService_UpdateFlagsBrokenDependencies(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	ids := f.register(map[string]*module.Manifest{
		"accounts": manifest("accounts"),
		"billing":  manifest("billing", "accounts"),
	})
	for _, name := range []string{"accounts", "billing"} {
		_, err := f.svc.Install(ctx, acme, ids[name])
		require.NoError(t, err)
	}
	_, err := f.svc.Uninstall(ctx, acme, UninstallInput{ModuleID: ids["accounts"]})
	require.NoError(t, err)

	report, err := f.svc.Update(ctx, acme, UpdateInput{Path: ScanAll})
	require.NoError(t, err)
	assert.Len(t, report.Success, 2)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "billing", report.Warnings[0].ModuleName)
	assert.Equal(t, []string{"accounts"}, report.Warnings[0].Missing)

	installed, err := f.svc.ListInstalled(ctx, acme)
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, "billing", installed[0].Name())
}

func TestModuleLifecycleService_UpdateFlagsCycles(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	ids := f.register(map[string]*module.Manifest{"a": manifest("aa")})
	_, err := f.svc.Install(ctx, acme, ids["aa"])
	require.NoError(t, err)

	f.reader.manifests["a"] = manifest("aa", "bb")
	f.reader.manifests["b"] = manifest("bb", "aa")
	report, err := f.svc.Update(ctx, acme, UpdateInput{})
	require.NoError(t, err)

	var messages []string
	for _, w := range report.Warnings {
		assert.Equal(t, "aa", w.ModuleName)
		messages = append(messages, w.Message)
	}
	assert.Contains(t, messages, "dependency cycle: aa -> bb -> aa")
}

func TestModuleLifecycleService_Purge(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled by default", func(t *testing.T) {
		f := newLifecycleFixture()
		ids := f.register(map[string]*module.Manifest{"crm": manifest("crm")})
		_, err := f.svc.Uninstall(ctx, acme, UninstallInput{ModuleID: ids["crm"], Purge: true})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("refused while other accounts hold it", func(t *testing.T) {
		f := newLifecycleFixture(WithPurge(true))
		ids := f.register(map[string]*module.Manifest{"crm": manifest("crm")})
		for _, acc := range []Account{acme, {ID: 200, Type: operator}} {
			_, err := f.svc.Install(ctx, acc, ids["crm"])
			require.NoError(t, err)
		}
		_, err := f.svc.Uninstall(ctx, acme, UninstallInput{ModuleID: ids["crm"], Purge: true})
		assert.ErrorIs(t, err, module.ErrModuleStillEntitled)
		assert.Empty(t, f.remover.removed)
	})

	t.Run("removes source and registry row", func(t *testing.T) {
		f := newLifecycleFixture(WithPurge(true))
		ids := f.register(map[string]*module.Manifest{"crm": manifest("crm")})
		_, err := f.svc.Install(ctx, acme, ids["crm"])
		require.NoError(t, err)

		before := f.trees.all
		out, err := f.svc.Uninstall(ctx, acme, UninstallInput{ModuleID: ids["crm"], Purge: true})
		require.NoError(t, err)
		assert.True(t, out.Purged)
		assert.Equal(t, before+2, f.trees.all, "trees drop again once the registry row is gone")
		assert.Equal(t, []string{"crm"}, f.remover.removed)

		_, err = f.store.Modules().GetByID(ctx, ids["crm"])
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestModuleLifecycleService_Reorder(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	ids := f.register(map[string]*module.Manifest{"crm": manifest("crm"), "erp": manifest("erp")})
	for _, name := range []string{"crm", "erp"} {
		_, err := f.svc.Install(ctx, acme, ids[name])
		require.NoError(t, err)
	}

	n, err := f.svc.Reorder(ctx, acme, ReorderInput{ModuleIDs: []shared.ID{ids["erp"], ids["crm"]}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	installed, err := f.svc.ListInstalled(ctx, acme)
	require.NoError(t, err)
	assert.Equal(t, "erp", installed[0].Name())

	_, err = f.svc.Reorder(ctx, acme, ReorderInput{ModuleIDs: []shared.ID{ids["erp"], ids["erp"]}})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestModuleLifecycleService_ConcurrentInstallSameModule(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	ids := f.register(map[string]*module.Manifest{"crm": manifest("crm")})

	const n = 16
	var (
		wg    sync.WaitGroup
		fresh atomic.Int32
		errs  = make(chan error, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.svc.Install(ctx, acme, ids["crm"])
			if err != nil {
				errs <- err
				return
			}
			if !out.AlreadyInstalled {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), fresh.Load())
	ents, err := f.store.Entitlements().ListByAccount(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, 1, ents[0].Sort())
	assert.Equal(t, 3, f.store.Snapshot().Menus)
}

func TestModuleLifecycleService_ConcurrentInstallDistinctModules(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	const n = 12
	manifests := make(map[string]*module.Manifest, n)
	for i := range n {
		name := fmt.Sprintf("mod%02d", i)
		manifests[name] = manifest(name)
	}
	ids := f.register(manifests)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Install(ctx, acme, id); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	ents, err := f.store.Entitlements().ListByAccount(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, ents, n)
	sorts := make([]int, 0, n)
	for _, e := range ents {
		sorts = append(sorts, e.Sort())
	}
	slices.Sort(sorts)
	for i, sort := range sorts {
		assert.Equal(t, i+1, sort, "sorts must be unique and contiguous: %v", sorts)
	}
}

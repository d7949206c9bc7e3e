// Package entitlement provides account-module entitlements and the install
// and uninstall units of work that maintain them.
package entitlement

import (
	"time"

	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
)

// Entitlement grants an account the use of a module.
type Entitlement struct {
	accountID shared.ID
	moduleID  shared.ID
	sort      int
	createdAt time.Time
}

// Reconstruct rebuilds an entitlement from persistence.
func Reconstruct(accountID, moduleID shared.ID, sort int, createdAt time.Time) *Entitlement {
	return &Entitlement{
		accountID: accountID,
		moduleID:  moduleID,
		sort:      sort,
		createdAt: createdAt,
	}
}

func (e *Entitlement) AccountID() shared.ID { return e.accountID }
func (e *Entitlement) ModuleID() shared.ID  { return e.moduleID }
func (e *Entitlement) Sort() int            { return e.sort }
func (e *Entitlement) CreatedAt() time.Time { return e.createdAt }

// NextSort returns the sort a new entitlement gets: one past the largest
// existing value, or 1 for an account without modules.
func NextSort(existing []*Entitlement) int {
	maxSort := 0
	for _, e := range existing {
		maxSort = max(maxSort, e.sort)
	}
	return maxSort + 1
}

// ModuleIDs returns the module ids of entitlements, in order.
func ModuleIDs(list []*Entitlement) []shared.ID {
	out := make([]shared.ID, len(list))
	for i, e := range list {
		out[i] = e.moduleID
	}
	return out
}

// InstallRequest is one install unit of work.
type InstallRequest struct {
	AccountID   shared.ID
	ModuleID    shared.ID
	AccountType shared.AccountType
	// ModuleName and Dependencies are checked against the account's
	// entitlements inside the unit of work.
	ModuleName   string
	Dependencies []string
	// Menus are imported parents first by (account type, key); existing keys are left alone.
	Menus []menu.Seed
}

// CheckDependencies returns a *module.DependencyError naming every declared
// dependency that entitled rejects, in declaration order.
func (r InstallRequest) CheckDependencies(entitled func(name string) bool) error {
	var missing []string
	for _, dep := range r.Dependencies {
		if !entitled(dep) {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return &module.DependencyError{Module: r.ModuleName, Missing: missing}
	}
	return nil
}

// InstallResult reports what an install changed.
type InstallResult struct {
	AlreadyInstalled bool
	Sort             int
	ImportedMenus    int
}

// UninstallRequest is one uninstall unit of work.
type UninstallRequest struct {
	AccountID shared.ID
	ModuleID  shared.ID
}

// UninstallResult counts the rows an uninstall removed.
type UninstallResult struct {
	RemovedEntitlements int
	RemovedMenus        int
	RemovedGrants       int
	RemovedRelocations  int
}

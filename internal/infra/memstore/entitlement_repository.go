package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/openctemio/console/pkg/domain/entitlement"
	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
)

// EntitlementRepository implements entitlement.Repository.
type EntitlementRepository struct{ s *Store }

var _ entitlement.Repository = (*EntitlementRepository)(nil)

// ListByAccount returns an account's entitlements ordered by sort then module id.
func (r *EntitlementRepository) ListByAccount(_ context.Context, accountID shared.ID) ([]*entitlement.Entitlement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.listEntitlements(accountID), nil
}

// CountByModule returns how many accounts are entitled to a module.
func (r *EntitlementRepository) CountByModule(_ context.Context, moduleID shared.ID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.countEntitled(moduleID), nil
}

// Reorder assigns position-based sorts to the listed modules.
func (r *EntitlementRepository) Reorder(_ context.Context, accountID shared.ID, moduleIDs []shared.ID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rows := r.s.entitlements[accountID]
	updated := 0
	for i, id := range moduleIDs {
		row, ok := rows[id]
		if !ok {
			continue
		}
		row.sort = i + 1
		rows[id] = row
		updated++
	}
	return updated, nil
}

// Install entitles the account and imports menu seeds by natural key.
func (r *EntitlementRepository) Install(_ context.Context, req entitlement.InstallRequest) (*entitlement.InstallResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.modules[req.ModuleID]; !ok {
		return nil, fmt.Errorf("%w: %d", module.ErrModuleNotFound, req.ModuleID)
	}
	if row, ok := r.s.entitlements[req.AccountID][req.ModuleID]; ok {
		return &entitlement.InstallResult{AlreadyInstalled: true, Sort: row.sort}, nil
	}
	if err := req.CheckDependencies(r.s.entitledByName(req.AccountID)); err != nil {
		return nil, err
	}

	sort := entitlement.NextSort(r.s.listEntitlements(req.AccountID))
	r.s.entitle(req.AccountID, req.ModuleID, sort)
	imported := r.s.importMenus(req.AccountType, req.ModuleID, req.Menus)

	return &entitlement.InstallResult{Sort: sort, ImportedMenus: imported}, nil
}

// Uninstall removes the entitlement and the module's non-required menus with
// every grant and relocation that references them.
func (r *EntitlementRepository) Uninstall(_ context.Context, req entitlement.UninstallRequest) (*entitlement.UninstallResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.modules[req.ModuleID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", module.ErrModuleNotFound, req.ModuleID)
	}

	res := &entitlement.UninstallResult{}
	if rows := r.s.entitlements[req.AccountID]; rows != nil {
		if _, ok := rows[req.ModuleID]; ok {
			delete(rows, req.ModuleID)
			res.RemovedEntitlements = 1
		}
	}

	remaining := r.s.countEntitled(req.ModuleID)
	rec.IsInstalled = remaining > 0
	r.s.modules[req.ModuleID] = rec

	removed := shared.NewIDSet()
	for id, m := range r.s.menus {
		if m.ModuleID == req.ModuleID && !m.IsRequired {
			removed.Add(id)
			delete(r.s.menus, id)
		}
	}
	res.RemovedMenus = len(removed)

	for _, set := range r.s.grants {
		for id := range set {
			if removed.Has(id) {
				delete(set, id)
				res.RemovedGrants++
			}
		}
	}
	for _, m := range r.s.relocations {
		for menuID, target := range m {
			if removed.Has(menuID) || target == req.ModuleID {
				delete(m, menuID)
				res.RemovedRelocations++
			}
		}
	}
	return res, nil
}

func (s *Store) entitledByName(accountID shared.ID) func(string) bool {
	names := make(map[string]bool, len(s.entitlements[accountID]))
	for id := range s.entitlements[accountID] {
		names[s.modules[id].Name] = true
	}
	return func(name string) bool { return names[name] }
}

func (s *Store) listEntitlements(accountID shared.ID) []*entitlement.Entitlement {
	rows := s.entitlements[accountID]
	out := make([]*entitlement.Entitlement, 0, len(rows))
	for moduleID, row := range rows {
		out = append(out, entitlement.Reconstruct(accountID, moduleID, row.sort, row.createdAt))
	}
	slices.SortFunc(out, func(a, b *entitlement.Entitlement) int {
		if c := cmp.Compare(a.Sort(), b.Sort()); c != 0 {
			return c
		}
		return cmp.Compare(a.ModuleID(), b.ModuleID())
	})
	return out
}

func (s *Store) countEntitled(moduleID shared.ID) int {
	n := 0
	for _, rows := range s.entitlements {
		if _, ok := rows[moduleID]; ok {
			n++
		}
	}
	return n
}

// importMenus inserts seeds whose key is new for the account type. Seeds
// arrive parents first; a parent key that resolves nowhere yields a root.
func (s *Store) importMenus(accountType shared.AccountType, moduleID shared.ID, seeds []menu.Seed) int {
	byKey := make(map[string]shared.ID)
	for id, m := range s.menus {
		if m.AccountType == accountType {
			byKey[m.Key] = id
		}
	}

	imported := 0
	for _, seed := range seeds {
		if _, exists := byKey[seed.Key]; exists {
			continue
		}
		id := s.nextMenuID
		s.nextMenuID++
		s.menus[id] = menu.Record{
			ID:          id,
			Key:         seed.Key,
			Name:        seed.Name,
			Type:        seed.Type,
			ParentID:    byKey[seed.ParentKey],
			AccountType: accountType,
			ModuleID:    moduleID,
			Path:        seed.Path,
			Icon:        seed.Icon,
			Sort:        seed.Sort,
			IsRequired:  seed.Required,
			Status:      menu.StatusEnabled,
			CreatedAt:   s.now(),
		}
		byKey[seed.Key] = id
		imported++
	}
	return imported
}

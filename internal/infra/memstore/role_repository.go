package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/openctemio/console/pkg/domain/role"
	"github.com/openctemio/console/pkg/domain/shared"
)

// RoleRepository implements role.Repository.
type RoleRepository struct{ s *Store }

var _ role.Repository = (*RoleRepository)(nil)

// GetByID retrieves a role by its ID.
func (r *RoleRepository) GetByID(_ context.Context, id shared.ID) (*role.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rl, ok := r.s.roles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", role.ErrRoleNotFound, id)
	}
	return rl, nil
}

// ListByAccountType lists roles of one account class ordered by sort then id.
func (r *RoleRepository) ListByAccountType(_ context.Context, accountType shared.AccountType) ([]*role.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*role.Role
	for _, rl := range r.s.roles {
		if rl.AccountType() == accountType {
			out = append(out, rl)
		}
	}
	slices.SortFunc(out, func(a, b *role.Role) int {
		if c := cmp.Compare(a.Sort(), b.Sort()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return out, nil
}

// GrantRepository implements role.GrantRepository.
type GrantRepository struct{ s *Store }

var _ role.GrantRepository = (*GrantRepository)(nil)

// ListMenuIDs returns the menu ids granted to a role, ascending.
func (r *GrantRepository) ListMenuIDs(_ context.Context, roleID shared.ID) ([]shared.ID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.grants[roleID].Sorted(), nil
}

// UpdateMenus applies the planned diff and optionally replaces the relocation map.
func (r *GrantRepository) UpdateMenus(_ context.Context, roleID shared.ID, plan role.GrantPlanner, relocations role.RelocationMap) (role.GrantDiff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.roles[roleID]; !ok {
		return role.GrantDiff{}, fmt.Errorf("%w: %d", role.ErrRoleNotFound, roleID)
	}

	current := r.s.grants[roleID].Sorted()
	diff := plan(current)
	r.s.grants[roleID] = shared.NewIDSet(diff.Apply(current)...)

	if relocations != nil {
		r.s.relocations[roleID] = relocations.Clone()
	}
	return diff, nil
}

// GetRelocations returns a copy of the role's relocation map.
func (r *GrantRepository) GetRelocations(_ context.Context, roleID shared.ID) (role.RelocationMap, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.relocations[roleID].Clone(), nil
}

// ApplyRelocations upserts and deletes entries in one step.
func (r *GrantRepository) ApplyRelocations(_ context.Context, roleID shared.ID, upserts role.RelocationMap, deletes []shared.ID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.roles[roleID]; !ok {
		return 0, fmt.Errorf("%w: %d", role.ErrRoleNotFound, roleID)
	}

	m, ok := r.s.relocations[roleID]
	if !ok {
		m = make(role.RelocationMap)
		r.s.relocations[roleID] = m
	}

	changed := 0
	for menuID, target := range upserts {
		if cur, ok := m[menuID]; ok && cur == target {
			continue
		}
		m[menuID] = target
		changed++
	}
	for _, menuID := range deletes {
		if _, ok := m[menuID]; ok {
			delete(m, menuID)
			changed++
		}
	}
	return changed, nil
}

// DeleteRelocationsByTarget removes the role's entries targeting a module.
func (r *GrantRepository) DeleteRelocationsByTarget(_ context.Context, roleID, moduleID shared.ID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m := r.s.relocations[roleID]
	ids := m.TargetingModule(moduleID)
	for _, id := range ids {
		delete(m, id)
	}
	return len(ids), nil
}

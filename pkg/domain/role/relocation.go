package role

import (
	"slices"

	"github.com/openctemio/console/pkg/domain/shared"
)

// RelocationMap maps a menu id to the module it is displayed under for a role.
type RelocationMap map[shared.ID]shared.ID

// Clone returns a copy of the map.
func (m RelocationMap) Clone() RelocationMap {
	out := make(RelocationMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MenuIDs returns the relocated menu ids in ascending order.
func (m RelocationMap) MenuIDs() []shared.ID {
	out := make([]shared.ID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// TargetingModule returns the menus relocated into moduleID, ascending.
func (m RelocationMap) TargetingModule(moduleID shared.ID) []shared.ID {
	var out []shared.ID
	for menuID, target := range m {
		if target == moduleID {
			out = append(out, menuID)
		}
	}
	slices.Sort(out)
	return out
}

// Without returns a copy of the map minus the given menus.
func (m RelocationMap) Without(menuIDs []shared.ID) RelocationMap {
	out := m.Clone()
	for _, id := range menuIDs {
		delete(out, id)
	}
	return out
}

package menu

import "github.com/openctemio/console/pkg/domain/shared"

// Bucket is the forest of menus displayed under one module.
type Bucket struct {
	ModuleID shared.ID
	Menus    []*Node
}

// GroupByModule places every menu under its display module: the override
// target when one exists, the owning module otherwise. Menus keep their
// relative order from the input.
func GroupByModule(menus []*Menu, overrides map[shared.ID]shared.ID) map[shared.ID][]*Menu {
	groups := make(map[shared.ID][]*Menu)
	for _, m := range menus {
		moduleID := m.ModuleID()
		if target, ok := overrides[m.ID()]; ok {
			moduleID = target
		}
		groups[moduleID] = append(groups[moduleID], m)
	}
	return groups
}

// BuildBuckets groups menus by display module and arranges each group into a
// forest. The returned map is keyed by module id; ordering of buckets is left
// to the caller since it depends on module metadata.
func BuildBuckets(menus []*Menu, overrides map[shared.ID]shared.ID) map[shared.ID]*Bucket {
	groups := GroupByModule(menus, overrides)
	out := make(map[shared.ID]*Bucket, len(groups))
	for moduleID, group := range groups {
		out[moduleID] = &Bucket{
			ModuleID: moduleID,
			Menus:    BuildForest(group),
		}
	}
	return out
}

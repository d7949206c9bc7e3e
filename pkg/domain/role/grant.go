package role

import (
	"slices"

	"github.com/openctemio/console/pkg/domain/shared"
)

// GrantDiff is the change a menu update applies to a role's grant set.
type GrantDiff struct {
	ToAdd    []shared.ID
	ToRemove []shared.ID
	// ForcedKept are required menus the caller omitted; they stay granted.
	ForcedKept []shared.ID
}

// IsEmpty reports whether the diff changes nothing.
func (d GrantDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// Apply returns the grant set after the diff, sorted.
func (d GrantDiff) Apply(current []shared.ID) []shared.ID {
	set := shared.NewIDSet(current...)
	for _, id := range d.ToRemove {
		delete(set, id)
	}
	for _, id := range d.ToAdd {
		set.Add(id)
	}
	return set.Sorted()
}

// PlanGrants computes the diff that turns current into requested, except that
// a currently granted required menu is never removed.
func PlanGrants(current, requested []shared.ID, required shared.IDSet) GrantDiff {
	want := shared.NewIDSet(shared.UniqueIDs(requested)...)
	have := shared.NewIDSet(current...)

	diff := GrantDiff{}
	for id := range want {
		if !have.Has(id) {
			diff.ToAdd = append(diff.ToAdd, id)
		}
	}
	for id := range have {
		if want.Has(id) {
			continue
		}
		if required.Has(id) {
			diff.ForcedKept = append(diff.ForcedKept, id)
			continue
		}
		diff.ToRemove = append(diff.ToRemove, id)
	}
	slices.Sort(diff.ToAdd)
	slices.Sort(diff.ToRemove)
	slices.Sort(diff.ForcedKept)
	return diff
}

// GrantPlanner computes a diff from the grant set read inside the write
// transaction.
type GrantPlanner func(current []shared.ID) GrantDiff

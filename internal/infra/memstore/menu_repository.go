package memstore

import (
	"cmp"
	"context"
	"slices"

	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/shared"
)

// MenuRepository implements menu.Repository.
type MenuRepository struct{ s *Store }

var _ menu.Repository = (*MenuRepository)(nil)

// ListByAccountType returns the menus of an account class ordered by sort then id.
func (r *MenuRepository) ListByAccountType(_ context.Context, accountType shared.AccountType, enabledOnly bool) ([]*menu.Menu, error) {
	return r.list(func(rec menu.Record) bool {
		if rec.AccountType != accountType {
			return false
		}
		return !enabledOnly || rec.Status == menu.StatusEnabled
	}), nil
}

// ListByIDs returns the menus with the given ids.
func (r *MenuRepository) ListByIDs(_ context.Context, ids []shared.ID) ([]*menu.Menu, error) {
	want := shared.NewIDSet(ids...)
	return r.list(func(rec menu.Record) bool { return want.Has(rec.ID) }), nil
}

// ListByModule returns every menu owned by a module.
func (r *MenuRepository) ListByModule(_ context.Context, moduleID shared.ID) ([]*menu.Menu, error) {
	return r.list(func(rec menu.Record) bool { return rec.ModuleID == moduleID }), nil
}

func (r *MenuRepository) list(keep func(menu.Record) bool) []*menu.Menu {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var recs []menu.Record
	for _, rec := range r.s.menus {
		if keep(rec) {
			recs = append(recs, rec)
		}
	}
	slices.SortFunc(recs, func(a, b menu.Record) int {
		if c := cmp.Compare(a.Sort, b.Sort); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	out := make([]*menu.Menu, len(recs))
	for i, rec := range recs {
		out[i] = menu.ReconstructMenu(rec)
	}
	return out
}

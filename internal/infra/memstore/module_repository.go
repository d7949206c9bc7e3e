package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
)

// ModuleRepository implements module.Repository.
type ModuleRepository struct{ s *Store }

var _ module.Repository = (*ModuleRepository)(nil)

// GetByID retrieves a module by its ID.
func (r *ModuleRepository) GetByID(_ context.Context, id shared.ID) (*module.Module, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.modules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", module.ErrModuleNotFound, id)
	}
	return module.ReconstructModule(rec), nil
}

// GetByName retrieves a module by its unique name.
func (r *ModuleRepository) GetByName(_ context.Context, name string) (*module.Module, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if rec, ok := r.s.moduleByName(name); ok {
		return module.ReconstructModule(rec), nil
	}
	return nil, fmt.Errorf("%w: %s", module.ErrModuleNotFound, name)
}

// List returns all modules ordered by sort then id.
func (r *ModuleRepository) List(_ context.Context) ([]*module.Module, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	recs := make([]module.Record, 0, len(r.s.modules))
	for _, rec := range r.s.modules {
		recs = append(recs, rec)
	}
	slices.SortFunc(recs, func(a, b module.Record) int {
		if c := cmp.Compare(a.Sort, b.Sort); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	out := make([]*module.Module, len(recs))
	for i, rec := range recs {
		out[i] = module.ReconstructModule(rec)
	}
	return out, nil
}

// Upsert inserts or refreshes a module by name, keeping lifecycle state.
func (r *ModuleRepository) Upsert(_ context.Context, m *module.Module) (*module.Module, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec := m.Record()
	now := r.s.now()
	if existing, ok := r.s.moduleByName(rec.Name); ok {
		rec.ID = existing.ID
		rec.IsInstalled = existing.IsInstalled
		rec.Status = existing.Status
		rec.Sort = existing.Sort
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.ID = r.s.nextModuleID
		r.s.nextModuleID++
		rec.IsInstalled = false
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.s.modules[rec.ID] = rec
	return module.ReconstructModule(rec), nil
}

// UpdateStatus enables or disables a module.
func (r *ModuleRepository) UpdateStatus(_ context.Context, id shared.ID, status module.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.modules[id]
	if !ok {
		return fmt.Errorf("%w: %d", module.ErrModuleNotFound, id)
	}
	rec.Status = status
	rec.UpdatedAt = r.s.now()
	r.s.modules[id] = rec
	return nil
}

// Delete removes a registry row.
func (r *ModuleRepository) Delete(_ context.Context, id shared.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.modules[id]; !ok {
		return fmt.Errorf("%w: %d", module.ErrModuleNotFound, id)
	}
	delete(r.s.modules, id)
	return nil
}

func (s *Store) moduleByName(name string) (module.Record, bool) {
	for _, rec := range s.modules {
		if rec.Name == name {
			return rec, true
		}
	}
	return module.Record{}, false
}

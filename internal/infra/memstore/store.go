// Package memstore implements every repository of the console in memory.
// All writes go through one mutex, which gives the same serialization the
// Postgres advisory and row locks provide.
package memstore

import (
	"sync"
	"time"

	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/role"
	"github.com/openctemio/console/pkg/domain/shared"
)

type entitlementRow struct {
	sort      int
	createdAt time.Time
}

// Store holds every table. Use the accessor methods to obtain repositories.
type Store struct {
	mu sync.RWMutex

	modules      map[shared.ID]module.Record
	menus        map[shared.ID]menu.Record
	entitlements map[shared.ID]map[shared.ID]entitlementRow // account -> module
	roles        map[shared.ID]*role.Role
	grants       map[shared.ID]shared.IDSet
	relocations  map[shared.ID]role.RelocationMap

	nextModuleID shared.ID
	nextMenuID   shared.ID
	nextRoleID   shared.ID
	now          func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		modules:      make(map[shared.ID]module.Record),
		menus:        make(map[shared.ID]menu.Record),
		entitlements: make(map[shared.ID]map[shared.ID]entitlementRow),
		roles:        make(map[shared.ID]*role.Role),
		grants:       make(map[shared.ID]shared.IDSet),
		relocations:  make(map[shared.ID]role.RelocationMap),
		nextModuleID: 1,
		nextMenuID:   1,
		nextRoleID:   1,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Modules returns the module registry repository.
func (s *Store) Modules() *ModuleRepository { return &ModuleRepository{s: s} }

// Menus returns the menu catalog repository.
func (s *Store) Menus() *MenuRepository { return &MenuRepository{s: s} }

// Entitlements returns the entitlement repository.
func (s *Store) Entitlements() *EntitlementRepository { return &EntitlementRepository{s: s} }

// Roles returns the role repository.
func (s *Store) Roles() *RoleRepository { return &RoleRepository{s: s} }

// Grants returns the role grant and relocation repository.
func (s *Store) Grants() *GrantRepository { return &GrantRepository{s: s} }

// =============================================================================
// Seeding
// =============================================================================

// PutRole stores a new enabled role under the next free id.
func (s *Store) PutRole(accountType shared.AccountType, code, name string, sort int) *role.Role {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextRoleID
	s.nextRoleID++
	now := s.now()
	r := role.Reconstruct(id, accountType, code, name, role.StatusEnabled, sort, now, now)
	s.roles[id] = r
	return r
}

// PutModule stores a registry record as is. A zero id is assigned the next free id.
func (s *Store) PutModule(rec module.Record) *module.Module {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID.IsZero() {
		rec.ID = s.nextModuleID
	}
	s.nextModuleID = max(s.nextModuleID, rec.ID+1)
	if rec.Status == "" {
		rec.Status = module.StatusEnabled
	}
	s.modules[rec.ID] = rec
	return module.ReconstructModule(rec)
}

// PutMenu stores a catalog record as is. A zero id is assigned the next free id.
func (s *Store) PutMenu(rec menu.Record) *menu.Menu {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID.IsZero() {
		rec.ID = s.nextMenuID
	}
	s.nextMenuID = max(s.nextMenuID, rec.ID+1)
	if rec.Status == "" {
		rec.Status = menu.StatusEnabled
	}
	if rec.Type == "" {
		rec.Type = menu.TypeMenu
	}
	s.menus[rec.ID] = rec
	return menu.ReconstructMenu(rec)
}

// PutGrants grants menus to a role.
func (s *Store) PutGrants(roleID shared.ID, menuIDs ...shared.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.grants[roleID]
	if !ok {
		set = shared.NewIDSet()
		s.grants[roleID] = set
	}
	for _, id := range menuIDs {
		set.Add(id)
	}
}

// PutEntitlement entitles an account to a module without importing menus.
func (s *Store) PutEntitlement(accountID, moduleID shared.ID, sort int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entitle(accountID, moduleID, sort)
}

func (s *Store) entitle(accountID, moduleID shared.ID, sort int) {
	rows, ok := s.entitlements[accountID]
	if !ok {
		rows = make(map[shared.ID]entitlementRow)
		s.entitlements[accountID] = rows
	}
	rows[moduleID] = entitlementRow{sort: sort, createdAt: s.now()}
	if rec, ok := s.modules[moduleID]; ok {
		rec.IsInstalled = true
		s.modules[moduleID] = rec
	}
}

// Snapshot counts rows per table, for tests and diagnostics.
type Snapshot struct {
	Modules      int
	Menus        int
	Entitlements int
	Grants       int
	Relocations  int
}

// Snapshot returns the current row counts.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{Modules: len(s.modules), Menus: len(s.menus)}
	for _, rows := range s.entitlements {
		snap.Entitlements += len(rows)
	}
	for _, set := range s.grants {
		snap.Grants += len(set)
	}
	for _, m := range s.relocations {
		snap.Relocations += len(m)
	}
	return snap
}

// Package menu provides the menu catalog domain: navigable and permissionable
// nodes owned by a module and scoped to an account class.
package menu

import (
	"time"

	"github.com/openctemio/console/pkg/domain/shared"
)

// Type is the kind of a menu node.
type Type string

const (
	TypeDir    Type = "dir"
	TypeMenu   Type = "menu"
	TypeButton Type = "button"
	TypeLink   Type = "link"
)

// IsValid reports whether t is a known menu type.
func (t Type) IsValid() bool {
	switch t {
	case TypeDir, TypeMenu, TypeButton, TypeLink:
		return true
	}
	return false
}

// Status of a menu.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// RootParentID is the parent id of top level menus.
const RootParentID shared.ID = 0

// Menu is a catalog entry.
type Menu struct {
	id          shared.ID
	key         string
	name        string
	menuType    Type
	parentID    shared.ID
	accountType shared.AccountType
	moduleID    shared.ID
	path        string
	icon        string
	sort        int
	isRequired  bool
	status      Status
	createdAt   time.Time
}

// Record is the persisted shape of a menu.
type Record struct {
	ID          shared.ID
	Key         string
	Name        string
	Type        Type
	ParentID    shared.ID
	AccountType shared.AccountType
	ModuleID    shared.ID // zero for cross-cutting menus
	Path        string
	Icon        string
	Sort        int
	IsRequired  bool
	Status      Status
	CreatedAt   time.Time
}

// ReconstructMenu rebuilds a menu from persistence.
func ReconstructMenu(r Record) *Menu {
	return &Menu{
		id:          r.ID,
		key:         r.Key,
		name:        r.Name,
		menuType:    r.Type,
		parentID:    r.ParentID,
		accountType: r.AccountType,
		moduleID:    r.ModuleID,
		path:        r.Path,
		icon:        r.Icon,
		sort:        r.Sort,
		isRequired:  r.IsRequired,
		status:      r.Status,
		createdAt:   r.CreatedAt,
	}
}

func (m *Menu) ID() shared.ID                   { return m.id }
func (m *Menu) Key() string                     { return m.key }
func (m *Menu) Name() string                    { return m.name }
func (m *Menu) Type() Type                      { return m.menuType }
func (m *Menu) ParentID() shared.ID             { return m.parentID }
func (m *Menu) AccountType() shared.AccountType { return m.accountType }
func (m *Menu) ModuleID() shared.ID             { return m.moduleID }
func (m *Menu) Path() string                    { return m.path }
func (m *Menu) Icon() string                    { return m.icon }
func (m *Menu) Sort() int                       { return m.sort }
func (m *Menu) IsRequired() bool                { return m.isRequired }
func (m *Menu) Status() Status                  { return m.status }
func (m *Menu) CreatedAt() time.Time            { return m.createdAt }

// IsRoot returns true for top level menus.
func (m *Menu) IsRoot() bool { return m.parentID == RootParentID }

// IsEnabled returns true if the menu should be shown.
func (m *Menu) IsEnabled() bool { return m.status == StatusEnabled }

// Seed is one menu definition shipped by a module, flattened with its parent
// referenced by natural key.
type Seed struct {
	Key       string
	ParentKey string
	Name      string
	Type      Type
	Path      string
	Icon      string
	Sort      int
	Required  bool
}

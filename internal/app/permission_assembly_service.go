package app

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/openctemio/console/internal/metrics"
	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/role"
	"github.com/openctemio/console/pkg/domain/shared"
	"github.com/openctemio/console/pkg/logger"
)

// GroupMoveMode decides what a relocation of a menu carries along.
type GroupMoveMode string

const (
	// GroupMoveSubtree relocates a menu together with all of its descendants.
	GroupMoveSubtree GroupMoveMode = "subtree"
	// GroupMoveExplicit relocates exactly the menus named by the caller.
	GroupMoveExplicit GroupMoveMode = "explicit"
)

// MenuView is one node of an assembled role menu tree.
type MenuView struct {
	MenuID     shared.ID   `json:"menu_id"`
	MenuKey    string      `json:"menu_key"`
	MenuName   string      `json:"menu_name"`
	MenuType   string      `json:"menu_type"`
	ParentID   shared.ID   `json:"parent_id"`
	ModuleID   shared.ID   `json:"module_id"`
	Path       string      `json:"path,omitempty"`
	Icon       string      `json:"icon,omitempty"`
	Sort       int         `json:"sort"`
	IsRequired bool        `json:"is_required"`
	Depth      int         `json:"depth"`
	Relocated  bool        `json:"relocated"`
	Children   []*MenuView `json:"children,omitempty"`
}

// ModuleMenus is the menu forest displayed under one module.
type ModuleMenus struct {
	ModuleID    shared.ID   `json:"module_id"`
	ModuleName  string      `json:"module_name"`
	ModuleAlias string      `json:"module_alias"`
	Menus       []*MenuView `json:"menus"`
}

// RoleMenus is the assembled menu tree of a role.
type RoleMenus struct {
	ModulesWithMenus []ModuleMenus           `json:"modules_with_menus"`
	CheckedMenuIDs   []shared.ID             `json:"checked_menu_ids"`
	MenuMoveMap      map[shared.ID]shared.ID `json:"menu_move_map"`
}

// RoleMenusCache stores assembled trees per role and account type.
type RoleMenusCache interface {
	Get(ctx context.Context, roleID shared.ID, accountType shared.AccountType) (*RoleMenus, bool)
	Set(ctx context.Context, roleID shared.ID, accountType shared.AccountType, tree *RoleMenus)
	MenuTreeInvalidator
}

type noopRoleMenusCache struct{ noopInvalidator }

func (noopRoleMenusCache) Get(context.Context, shared.ID, shared.AccountType) (*RoleMenus, bool) {
	return nil, false
}
func (noopRoleMenusCache) Set(context.Context, shared.ID, shared.AccountType, *RoleMenus) {}

// PermissionAssemblyService builds role menu trees and is the only writer of
// role grants and the menu relocation map.
type PermissionAssemblyService struct {
	roles   role.Repository
	grants  role.GrantRepository
	menus   menu.Repository
	modules module.Repository
	cache   RoleMenusCache
	mode    GroupMoveMode
	logger  *logger.Logger
}

// AssemblyOption configures a PermissionAssemblyService.
type AssemblyOption func(*PermissionAssemblyService)

// WithGroupMoveMode selects how relocations treat descendants.
func WithGroupMoveMode(mode GroupMoveMode) AssemblyOption {
	return func(s *PermissionAssemblyService) {
		if mode == GroupMoveSubtree || mode == GroupMoveExplicit {
			s.mode = mode
		}
	}
}

// WithRoleMenusCache caches assembled trees.
func WithRoleMenusCache(cache RoleMenusCache) AssemblyOption {
	return func(s *PermissionAssemblyService) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// NewPermissionAssemblyService creates a new PermissionAssemblyService.
func NewPermissionAssemblyService(
	roles role.Repository,
	grants role.GrantRepository,
	menus menu.Repository,
	modules module.Repository,
	log *logger.Logger,
	opts ...AssemblyOption,
) *PermissionAssemblyService {
	s := &PermissionAssemblyService{
		roles:   roles,
		grants:  grants,
		menus:   menus,
		modules: modules,
		cache:   noopRoleMenusCache{},
		mode:    GroupMoveSubtree,
		logger:  log.With("service", "permission_assembly"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GroupMoveMode returns the configured group move mode.
func (s *PermissionAssemblyService) GroupMoveMode() GroupMoveMode { return s.mode }

// =============================================================================
// Tree assembly
// =============================================================================

// GetMenusInput represents the input for GetMenus.
type GetMenusInput struct {
	RoleID      shared.ID `json:"role_id" validate:"required,gt=0"`
	AccountType string    `json:"account_type" validate:"required,account_type"`
}

// GetMenus assembles the role's menu tree: enabled menus of the account type
// grouped into module buckets with the role's relocations applied, plus the
// granted menu ids and the stored relocation map.
func (s *PermissionAssemblyService) GetMenus(ctx context.Context, input GetMenusInput) (*RoleMenus, error) {
	accountType := shared.AccountType(input.AccountType)
	if !accountType.IsValid() {
		return nil, fmt.Errorf("%w: invalid account type %q", shared.ErrValidation, input.AccountType)
	}
	r, err := s.roles.GetByID(ctx, input.RoleID)
	if err != nil {
		return nil, err
	}
	if err := r.CheckAccountType(accountType); err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(ctx, r.ID(), accountType); ok {
		metrics.MenuTreeBuilds.WithLabelValues("cache").Inc()
		return cached, nil
	}

	start := time.Now()
	tree, err := s.assemble(ctx, r.ID(), accountType)
	if err != nil {
		return nil, err
	}
	metrics.MenuTreeBuildDuration.Observe(time.Since(start).Seconds())
	metrics.MenuTreeBuilds.WithLabelValues("store").Inc()

	s.cache.Set(ctx, r.ID(), accountType, tree)
	return tree, nil
}

func (s *PermissionAssemblyService) assemble(ctx context.Context, roleID shared.ID, accountType shared.AccountType) (*RoleMenus, error) {
	menus, err := s.menus.ListByAccountType(ctx, accountType, true)
	if err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}
	modules, err := s.modules.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	relocations, err := s.grants.GetRelocations(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("get relocations: %w", err)
	}
	checked, err := s.grants.ListMenuIDs(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	byID := make(map[shared.ID]*module.Module, len(modules))
	for _, m := range modules {
		byID[m.ID()] = m
	}

	// Targets removed from the registry fall back to the native module.
	overrides := make(map[shared.ID]shared.ID, len(relocations))
	for menuID, target := range relocations {
		if _, ok := byID[target]; ok {
			overrides[menuID] = target
		}
	}

	buckets := menu.BuildBuckets(menus, overrides)
	out := &RoleMenus{
		ModulesWithMenus: make([]ModuleMenus, 0, len(buckets)),
		CheckedMenuIDs:   checked,
		MenuMoveMap:      relocations,
	}
	if out.CheckedMenuIDs == nil {
		out.CheckedMenuIDs = []shared.ID{}
	}
	if out.MenuMoveMap == nil {
		out.MenuMoveMap = role.RelocationMap{}
	}

	for _, moduleID := range orderBuckets(buckets, byID) {
		b := buckets[moduleID]
		mm := ModuleMenus{ModuleID: moduleID, Menus: toViews(b.Menus, overrides)}
		if m, ok := byID[moduleID]; ok {
			mm.ModuleName = m.Name()
			mm.ModuleAlias = m.DisplayName()
		}
		out.ModulesWithMenus = append(out.ModulesWithMenus, mm)
	}
	return out, nil
}

// orderBuckets orders registered modules by sort then id, then modules that
// are not registered by id, then the cross-cutting bucket.
func orderBuckets(buckets map[shared.ID]*menu.Bucket, modules map[shared.ID]*module.Module) []shared.ID {
	ids := make([]shared.ID, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	rank := func(id shared.ID) int {
		switch {
		case id == 0:
			return 2
		case modules[id] == nil:
			return 1
		}
		return 0
	}
	slices.SortFunc(ids, func(a, b shared.ID) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		if ma, mb := modules[a], modules[b]; ma != nil && mb != nil {
			if c := cmp.Compare(ma.Sort(), mb.Sort()); c != 0 {
				return c
			}
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func toViews(nodes []*menu.Node, overrides map[shared.ID]shared.ID) []*MenuView {
	out := make([]*MenuView, 0, len(nodes))
	for _, n := range nodes {
		m := n.Menu
		_, relocated := overrides[m.ID()]
		out = append(out, &MenuView{
			MenuID:     m.ID(),
			MenuKey:    m.Key(),
			MenuName:   m.Name(),
			MenuType:   string(m.Type()),
			ParentID:   m.ParentID(),
			ModuleID:   m.ModuleID(),
			Path:       m.Path(),
			Icon:       m.Icon(),
			Sort:       m.Sort(),
			IsRequired: m.IsRequired(),
			Depth:      n.Depth,
			Relocated:  relocated,
			Children:   toViews(n.Children, overrides),
		})
	}
	return out
}

// =============================================================================
// Relocation map
// =============================================================================

// MoveMenusInput represents the input for MoveMenuToModule.
type MoveMenusInput struct {
	RoleID         shared.ID   `json:"role_id" validate:"required,gt=0"`
	MenuIDs        []shared.ID `json:"menu_ids" validate:"required,min=1,dive,gt=0"`
	TargetModuleID shared.ID   `json:"target_module_id" validate:"required,gt=0"`
}

// MoveMenuToModule displays the given menus under the target module for the
// role. In subtree mode every descendant moves along, except descendants the
// target already owns, whose relocations are dropped. Re-issuing the same move
// changes nothing. Returns the number of relocation rows changed.
func (s *PermissionAssemblyService) MoveMenuToModule(ctx context.Context, input MoveMenusInput) (int, error) {
	r, err := s.roles.GetByID(ctx, input.RoleID)
	if err != nil {
		return 0, err
	}
	if _, err := s.modules.GetByID(ctx, input.TargetModuleID); err != nil {
		if shared.IsNotFound(err) {
			return 0, fmt.Errorf("%w: unknown target_module_id %d", shared.ErrValidation, input.TargetModuleID)
		}
		return 0, err
	}

	ids := shared.UniqueIDs(input.MenuIDs)
	selected, err := s.loadMenus(ctx, r, ids)
	if err != nil {
		return 0, err
	}
	for _, m := range selected {
		if m.ModuleID() == input.TargetModuleID {
			return 0, fmt.Errorf("%w: menu %d already belongs to module %d",
				shared.ErrValidation, m.ID(), input.TargetModuleID)
		}
	}

	upserts := make(role.RelocationMap, len(ids))
	var deletes []shared.ID
	for _, id := range ids {
		upserts[id] = input.TargetModuleID
	}

	if s.mode == GroupMoveSubtree {
		index, err := s.catalogIndex(ctx, r.AccountType())
		if err != nil {
			return 0, err
		}
		for _, id := range index.WithDescendants(ids) {
			if _, explicit := upserts[id]; explicit {
				continue
			}
			m, _ := index.Get(id)
			if m.ModuleID() == input.TargetModuleID {
				deletes = append(deletes, id)
				continue
			}
			upserts[id] = input.TargetModuleID
		}
	}

	n, err := s.grants.ApplyRelocations(ctx, r.ID(), upserts, deletes)
	if err != nil {
		return 0, fmt.Errorf("apply relocations: %w", err)
	}
	metrics.MenuRelocationsTotal.WithLabelValues("move").Add(float64(n))
	s.invalidateRole(ctx, r)

	s.logger.Info("menus relocated",
		"role_id", r.ID(),
		"target_module_id", input.TargetModuleID,
		"menus", len(ids),
		"changed", n,
		"mode", s.mode,
	)
	return n, nil
}

// MoveBackInput represents the input for MoveMenuBackToOriginal.
type MoveBackInput struct {
	RoleID  shared.ID   `json:"role_id" validate:"required,gt=0"`
	MenuIDs []shared.ID `json:"menu_ids" validate:"required,min=1,dive,gt=0"`
}

// MoveMenuBackToOriginal drops the role's relocations of the given menus, and
// of their descendants in subtree mode. Unmapped ids are ignored. Returns the
// number of rows removed.
func (s *PermissionAssemblyService) MoveMenuBackToOriginal(ctx context.Context, input MoveBackInput) (int, error) {
	r, err := s.roles.GetByID(ctx, input.RoleID)
	if err != nil {
		return 0, err
	}

	ids := shared.UniqueIDs(input.MenuIDs)
	if s.mode == GroupMoveSubtree {
		index, err := s.catalogIndex(ctx, r.AccountType())
		if err != nil {
			return 0, err
		}
		ids = index.WithDescendants(ids)
	}

	n, err := s.grants.ApplyRelocations(ctx, r.ID(), nil, ids)
	if err != nil {
		return 0, fmt.Errorf("apply relocations: %w", err)
	}
	metrics.MenuRelocationsTotal.WithLabelValues("move_back").Add(float64(n))
	s.invalidateRole(ctx, r)
	return n, nil
}

// MoveAllBackInput represents the input for MoveAllBackByModule.
type MoveAllBackInput struct {
	RoleID   shared.ID `json:"role_id" validate:"required,gt=0"`
	ModuleID shared.ID `json:"module_id" validate:"required,gt=0"`
}

// MoveAllBackByModule drops every relocation of the role that targets the
// module and returns how many were removed.
func (s *PermissionAssemblyService) MoveAllBackByModule(ctx context.Context, input MoveAllBackInput) (int, error) {
	r, err := s.roles.GetByID(ctx, input.RoleID)
	if err != nil {
		return 0, err
	}
	if _, err := s.modules.GetByID(ctx, input.ModuleID); err != nil {
		return 0, err
	}

	n, err := s.grants.DeleteRelocationsByTarget(ctx, r.ID(), input.ModuleID)
	if err != nil {
		return 0, fmt.Errorf("delete relocations: %w", err)
	}
	metrics.MenuRelocationsTotal.WithLabelValues("move_all_back").Add(float64(n))
	s.invalidateRole(ctx, r)
	return n, nil
}

// =============================================================================
// Grants
// =============================================================================

// UpdateMenusInput represents the input for UpdateMenus.
type UpdateMenusInput struct {
	RoleID  shared.ID   `json:"role_id" validate:"required,gt=0"`
	MenuIDs []shared.ID `json:"menu_ids" validate:"dive,gt=0"`
	// MenuMoveMap replaces the whole relocation map when present. An empty
	// map clears it; nil leaves it untouched.
	MenuMoveMap *map[shared.ID]shared.ID `json:"menu_move_map"`
}

// UpdateMenusOutput reports the applied grant diff.
type UpdateMenusOutput struct {
	Added      []shared.ID `json:"added"`
	Removed    []shared.ID `json:"removed"`
	ForcedKept []shared.ID `json:"forced_kept"`
}

// UpdateMenus makes the role's grant set equal to the requested menus, except
// that granted required menus are kept, and optionally overwrites the
// relocation map. Both changes commit together.
func (s *PermissionAssemblyService) UpdateMenus(ctx context.Context, input UpdateMenusInput) (*UpdateMenusOutput, error) {
	r, err := s.roles.GetByID(ctx, input.RoleID)
	if err != nil {
		return nil, err
	}

	requested := shared.UniqueIDs(input.MenuIDs)
	if _, err := s.loadMenus(ctx, r, requested); err != nil {
		return nil, err
	}

	catalog, err := s.menus.ListByAccountType(ctx, r.AccountType(), false)
	if err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}
	required := shared.NewIDSet()
	for _, m := range catalog {
		if m.IsRequired() {
			required.Add(m.ID())
		}
	}

	var relocations role.RelocationMap
	if input.MenuMoveMap != nil {
		relocations, err = s.relocationsFromInput(ctx, r, *input.MenuMoveMap)
		if err != nil {
			return nil, err
		}
	}

	diff, err := s.grants.UpdateMenus(ctx, r.ID(), func(current []shared.ID) role.GrantDiff {
		return role.PlanGrants(current, requested, required)
	}, relocations)
	if err != nil {
		return nil, fmt.Errorf("update role menus: %w", err)
	}

	metrics.RoleGrantChanges.WithLabelValues("added").Add(float64(len(diff.ToAdd)))
	metrics.RoleGrantChanges.WithLabelValues("removed").Add(float64(len(diff.ToRemove)))
	metrics.RoleGrantChanges.WithLabelValues("forced_kept").Add(float64(len(diff.ForcedKept)))
	s.invalidateRole(ctx, r)

	if len(diff.ForcedKept) > 0 {
		s.logger.Info("required menus kept on role", "role_id", r.ID(), "menu_ids", diff.ForcedKept)
	}

	return &UpdateMenusOutput{
		Added:      nonNilIDs(diff.ToAdd),
		Removed:    nonNilIDs(diff.ToRemove),
		ForcedKept: nonNilIDs(diff.ForcedKept),
	}, nil
}

// relocationsFromInput validates a full relocation map. Entries pointing a
// menu at its own module are dropped.
func (s *PermissionAssemblyService) relocationsFromInput(ctx context.Context, r *role.Role, in map[shared.ID]shared.ID) (role.RelocationMap, error) {
	out := make(role.RelocationMap, len(in))
	if len(in) == 0 {
		return out, nil
	}

	menuIDs := make([]shared.ID, 0, len(in))
	for id := range in {
		menuIDs = append(menuIDs, id)
	}
	slices.Sort(menuIDs)
	menus, err := s.loadMenus(ctx, r, menuIDs)
	if err != nil {
		return nil, err
	}

	modules, err := s.modules.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	known := shared.NewIDSet()
	for _, m := range modules {
		known.Add(m.ID())
	}

	for _, m := range menus {
		target := in[m.ID()]
		if !known.Has(target) {
			return nil, fmt.Errorf("%w: unknown target_module_id %d for menu %d", shared.ErrValidation, target, m.ID())
		}
		if target == m.ModuleID() {
			continue
		}
		out[m.ID()] = target
	}
	return out, nil
}

// loadMenus fetches the given menus in order and checks that all of them
// exist and belong to the role's account type.
func (s *PermissionAssemblyService) loadMenus(ctx context.Context, r *role.Role, ids []shared.ID) ([]*menu.Menu, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := s.menus.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}
	byID := make(map[shared.ID]*menu.Menu, len(found))
	for _, m := range found {
		byID[m.ID()] = m
	}

	out := make([]*menu.Menu, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", menu.ErrMenuNotFound, id)
		}
		if m.AccountType() != r.AccountType() {
			return nil, fmt.Errorf("%w: menu %d is %s, role %d is %s",
				menu.ErrAccountTypeMismatch, id, m.AccountType(), r.ID(), r.AccountType())
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *PermissionAssemblyService) catalogIndex(ctx context.Context, accountType shared.AccountType) (*menu.Index, error) {
	catalog, err := s.menus.ListByAccountType(ctx, accountType, false)
	if err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}
	return menu.NewIndex(catalog), nil
}

func (s *PermissionAssemblyService) invalidateRole(ctx context.Context, r *role.Role) {
	if err := s.cache.InvalidateRole(ctx, r.ID(), r.AccountType()); err != nil {
		s.logger.Warn("failed to invalidate role menu tree", "role_id", r.ID(), "error", err)
	}
}

func nonNilIDs(ids []shared.ID) []shared.ID {
	if ids == nil {
		return []shared.ID{}
	}
	return ids
}

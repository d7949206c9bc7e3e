package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openctemio/console/internal/metrics"
	"github.com/openctemio/console/pkg/domain/entitlement"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
	"github.com/openctemio/console/pkg/logger"
)

// ScanAll selects every module directory under the module root.
const ScanAll = "all"

const defaultScanConcurrency = 4

// Account is the caller as supplied by the authentication layer.
type Account struct {
	ID   shared.ID
	Type shared.AccountType
}

// MenuTreeInvalidator drops assembled role menu trees after a change.
type MenuTreeInvalidator interface {
	InvalidateAll(ctx context.Context) error
	InvalidateRole(ctx context.Context, roleID shared.ID, accountType shared.AccountType) error
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateAll(context.Context) error { return nil }
func (noopInvalidator) InvalidateRole(context.Context, shared.ID, shared.AccountType) error {
	return nil
}

// ModuleLifecycleService scans, installs, uninstalls and updates modules.
// It is the only writer of the module registry and the menu catalog.
type ModuleLifecycleService struct {
	modules      module.Repository
	entitlements entitlement.Repository
	reader       module.ManifestReader
	remover      module.SourceRemover
	trees        MenuTreeInvalidator
	concurrency  int
	allowPurge   bool
	logger       *logger.Logger
}

// LifecycleOption configures a ModuleLifecycleService.
type LifecycleOption func(*ModuleLifecycleService)

// WithScanConcurrency bounds the number of manifests read in parallel.
func WithScanConcurrency(n int) LifecycleOption {
	return func(s *ModuleLifecycleService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithSourceRemover enables purge uninstalls through remover.
func WithSourceRemover(remover module.SourceRemover) LifecycleOption {
	return func(s *ModuleLifecycleService) { s.remover = remover }
}

// WithPurge allows uninstall requests to remove the module source.
func WithPurge(allowed bool) LifecycleOption {
	return func(s *ModuleLifecycleService) { s.allowPurge = allowed }
}

// WithTreeInvalidator sets the cache dropped after lifecycle changes.
func WithTreeInvalidator(inv MenuTreeInvalidator) LifecycleOption {
	return func(s *ModuleLifecycleService) {
		if inv != nil {
			s.trees = inv
		}
	}
}

// NewModuleLifecycleService creates a new ModuleLifecycleService.
func NewModuleLifecycleService(
	modules module.Repository,
	entitlements entitlement.Repository,
	reader module.ManifestReader,
	log *logger.Logger,
	opts ...LifecycleOption,
) *ModuleLifecycleService {
	s := &ModuleLifecycleService{
		modules:      modules,
		entitlements: entitlements,
		reader:       reader,
		trees:        noopInvalidator{},
		concurrency:  defaultScanConcurrency,
		logger:       log.With("service", "module_lifecycle"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Scan / Update
// =============================================================================

// ScanInput represents the input for Scan.
type ScanInput struct {
	// Path is a module directory relative to the module root. Empty or "all"
	// scans every directory.
	Path string `json:"module_path" validate:"omitempty,module_path"`
}

// UpdateInput represents the input for Update.
type UpdateInput struct {
	Path string `json:"module_path" validate:"omitempty,module_path"`
}

type scanCandidate struct {
	path     string
	manifest *module.Manifest
	err      error
}

// Scan registers or refreshes every module in scope. A candidate that fails
// lands in the report and never aborts the batch; only a failure to list the
// candidates is returned as an error.
func (s *ModuleLifecycleService) Scan(ctx context.Context, input ScanInput) (report *module.BatchReport, err error) {
	defer func(start time.Time) { observeModuleOperation("scan", start, err) }(time.Now())

	paths, err := s.candidates(ctx, input.Path)
	if err != nil {
		return nil, err
	}

	report = s.register(ctx, s.readManifests(ctx, paths))
	report.Sort()
	if len(report.Success) > 0 {
		// Titles and aliases are rendered into cached trees.
		s.invalidateAll(ctx)
	}

	metrics.ModuleScanCandidates.WithLabelValues(metrics.ResultSuccess).Add(float64(len(report.Success)))
	metrics.ModuleScanCandidates.WithLabelValues(metrics.ResultFailure).Add(float64(len(report.Failed)))
	s.logger.Info("modules scanned",
		"scope", scopeLabel(input.Path),
		"success", len(report.Success),
		"failed", len(report.Failed),
	)
	return report, nil
}

// Update re-scans the scope and then checks the dependency graph of every
// module installed for the account. Broken dependencies are reported as
// warnings; nothing is uninstalled.
func (s *ModuleLifecycleService) Update(ctx context.Context, account Account, input UpdateInput) (report *module.BatchReport, err error) {
	defer func(start time.Time) { observeModuleOperation("update", start, err) }(time.Now())

	report, err = s.Scan(ctx, ScanInput(input))
	if err != nil {
		return nil, err
	}

	warnings, err := s.dependencyWarnings(ctx, account)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		report.AddWarning(w)
	}
	report.Sort()

	if len(report.Warnings) > 0 {
		s.logger.Warn("installed modules have broken dependencies",
			"account_id", account.ID,
			"warnings", len(report.Warnings),
		)
	}
	return report, nil
}

func (s *ModuleLifecycleService) candidates(ctx context.Context, scope string) ([]string, error) {
	if scope == "" || scope == ScanAll {
		paths, err := s.reader.Discover(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover modules: %w", err)
		}
		return paths, nil
	}
	clean := path.Clean(scope)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return nil, fmt.Errorf("%w: module path %q is outside the module root", shared.ErrValidation, scope)
	}
	return []string{clean}, nil
}

// readManifests reads and validates every candidate concurrently. Results
// keep the order of paths.
func (s *ModuleLifecycleService) readManifests(ctx context.Context, paths []string) []scanCandidate {
	out := make([]scanCandidate, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, p := range paths {
		out[i].path = p
		g.Go(func() error {
			man, err := s.reader.Read(gctx, p)
			if err == nil {
				err = man.Validate()
			}
			out[i].manifest, out[i].err = man, err
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// register persists the valid candidates one by one. Names declared by more
// than one directory in the same batch are rejected for every claimant.
func (s *ModuleLifecycleService) register(ctx context.Context, candidates []scanCandidate) *module.BatchReport {
	report := &module.BatchReport{}

	claims := make(map[string][]string)
	for _, c := range candidates {
		if c.err == nil {
			claims[c.manifest.Name] = append(claims[c.manifest.Name], c.path)
		}
	}

	for _, c := range candidates {
		if c.err != nil {
			report.AddFailure(c.path, c.err)
			continue
		}
		if owners := claims[c.manifest.Name]; len(owners) > 1 {
			report.AddFailure(c.path, fmt.Errorf("%w: module name %q is declared by %s",
				shared.ErrConflict, c.manifest.Name, strings.Join(owners, ", ")))
			continue
		}

		stored, err := s.modules.Upsert(ctx, module.NewFromManifest(c.manifest, c.path))
		if err != nil {
			s.logger.Error("failed to register module", "path", c.path, "error", err)
			report.AddFailure(c.path, err)
			continue
		}
		report.AddSuccess(stored.Name(), c.path)
	}
	return report
}

func (s *ModuleLifecycleService) dependencyWarnings(ctx context.Context, account Account) ([]module.DependencyWarning, error) {
	all, err := s.modules.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	installed, err := s.installedModules(ctx, account.ID, all)
	if err != nil {
		return nil, err
	}

	entitled := make(map[string]bool, len(installed))
	for _, m := range installed {
		entitled[m.Name()] = true
	}

	graph := module.NewGraph(all)
	var warnings []module.DependencyWarning
	for _, m := range installed {
		missing := graph.Missing(m.Name(), func(dep string) bool { return entitled[dep] })
		if len(missing) > 0 {
			unregistered := graph.Unregistered(m.Name())
			msg := fmt.Sprintf("dependencies not installed: %s", strings.Join(missing, ", "))
			if len(unregistered) > 0 {
				msg += fmt.Sprintf(" (not registered: %s)", strings.Join(unregistered, ", "))
			}
			warnings = append(warnings, module.DependencyWarning{
				ModuleName: m.Name(),
				Missing:    missing,
				Message:    msg,
			})
		}
		if cycle := graph.Cycle(m.Name()); cycle != nil {
			warnings = append(warnings, module.DependencyWarning{
				ModuleName: m.Name(),
				Message:    "dependency cycle: " + strings.Join(cycle, " -> "),
			})
		}
	}
	return warnings, nil
}

// installedModules resolves an account's entitlements against the registry,
// in entitlement order.
func (s *ModuleLifecycleService) installedModules(ctx context.Context, accountID shared.ID, all []*module.Module) ([]*module.Module, error) {
	ents, err := s.entitlements.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	byID := make(map[shared.ID]*module.Module, len(all))
	for _, m := range all {
		byID[m.ID()] = m
	}
	out := make([]*module.Module, 0, len(ents))
	for _, e := range ents {
		if m, ok := byID[e.ModuleID()]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// =============================================================================
// Install / Uninstall
// =============================================================================

// InstallOutput is the result of Install.
type InstallOutput struct {
	Module           *module.Module
	AlreadyInstalled bool
	ImportedMenus    int
}

// Install entitles the account to a module and imports its menus for the
// account's type. Installing twice is a no-op success.
func (s *ModuleLifecycleService) Install(ctx context.Context, account Account, moduleID shared.ID) (out *InstallOutput, err error) {
	defer func(start time.Time) { observeModuleOperation("install", start, err) }(time.Now())

	mod, err := s.modules.GetByID(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if !mod.IsEnabled() {
		return nil, fmt.Errorf("%w: %s", module.ErrModuleDisabled, mod.Name())
	}

	manifest, err := s.reader.Read(ctx, mod.Path())
	if err != nil {
		return nil, fmt.Errorf("read manifest of %s: %w", mod.Name(), err)
	}

	result, err := s.entitlements.Install(ctx, entitlement.InstallRequest{
		AccountID:    account.ID,
		ModuleID:     mod.ID(),
		AccountType:  account.Type,
		ModuleName:   mod.Name(),
		Dependencies: mod.Dependencies(),
		Menus:        manifest.MenuSeeds(),
	})
	if err != nil {
		return nil, fmt.Errorf("install %s: %w", mod.Name(), err)
	}

	if !result.AlreadyInstalled {
		s.invalidateAll(ctx)
		s.logger.Info("module installed",
			"account_id", account.ID,
			"module", mod.Name(),
			"sort", result.Sort,
			"imported_menus", result.ImportedMenus,
		)
	}

	return &InstallOutput{
		Module:           mod,
		AlreadyInstalled: result.AlreadyInstalled,
		ImportedMenus:    result.ImportedMenus,
	}, nil
}

// UninstallInput represents the input for Uninstall.
type UninstallInput struct {
	ModuleID shared.ID `json:"module_id" validate:"required,gt=0"`
	// Purge also removes the module source and its registry row.
	Purge bool `json:"purge"`
}

// UninstallOutput is the result of Uninstall.
type UninstallOutput struct {
	Module  *module.Module
	Purged  bool
	Removed entitlement.UninstallResult
}

// Uninstall removes the account's entitlement and cascades through the menu
// catalog, role grants and relocations in one unit of work. Core modules are
// refused without any change.
func (s *ModuleLifecycleService) Uninstall(ctx context.Context, account Account, input UninstallInput) (out *UninstallOutput, err error) {
	defer func(start time.Time) { observeModuleOperation("uninstall", start, err) }(time.Now())

	mod, err := s.modules.GetByID(ctx, input.ModuleID)
	if err != nil {
		return nil, err
	}
	if mod.IsCore() {
		return nil, fmt.Errorf("%w: %s", module.ErrCoreModuleProtected, mod.Name())
	}
	if input.Purge {
		if err := s.checkPurge(ctx, account, mod); err != nil {
			return nil, err
		}
	}

	result, err := s.entitlements.Uninstall(ctx, entitlement.UninstallRequest{
		AccountID: account.ID,
		ModuleID:  mod.ID(),
	})
	if err != nil {
		return nil, fmt.Errorf("uninstall %s: %w", mod.Name(), err)
	}
	s.invalidateAll(ctx)
	recordCascade(result)

	s.logger.Info("module uninstalled",
		"account_id", account.ID,
		"module", mod.Name(),
		"removed_entitlements", result.RemovedEntitlements,
		"removed_menus", result.RemovedMenus,
		"removed_grants", result.RemovedGrants,
		"removed_relocations", result.RemovedRelocations,
	)

	out = &UninstallOutput{Module: mod, Removed: *result}
	if input.Purge {
		if err := s.purge(ctx, mod); err != nil {
			return nil, err
		}
		out.Purged = true
	}
	return out, nil
}

func (s *ModuleLifecycleService) checkPurge(ctx context.Context, account Account, mod *module.Module) error {
	if !s.allowPurge || s.remover == nil {
		return fmt.Errorf("%w: purging module sources is disabled", shared.ErrValidation)
	}
	count, err := s.entitlements.CountByModule(ctx, mod.ID())
	if err != nil {
		return fmt.Errorf("count entitlements: %w", err)
	}
	ents, err := s.entitlements.ListByAccount(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("list entitlements: %w", err)
	}
	if slices.Contains(entitlement.ModuleIDs(ents), mod.ID()) {
		count--
	}
	if count > 0 {
		return fmt.Errorf("%w: %s has %d other installs", module.ErrModuleStillEntitled, mod.Name(), count)
	}
	return nil
}

func (s *ModuleLifecycleService) purge(ctx context.Context, mod *module.Module) error {
	if err := s.remover.Remove(ctx, mod.Path()); err != nil {
		return fmt.Errorf("remove source of %s: %w", mod.Name(), err)
	}
	if err := s.modules.Delete(ctx, mod.ID()); err != nil {
		return fmt.Errorf("delete %s from registry: %w", mod.Name(), err)
	}
	s.invalidateAll(ctx)
	s.logger.Info("module purged", "module", mod.Name(), "path", mod.Path())
	return nil
}

func recordCascade(r *entitlement.UninstallResult) {
	metrics.ModuleCascadeRowsRemoved.WithLabelValues("account_module").Add(float64(r.RemovedEntitlements))
	metrics.ModuleCascadeRowsRemoved.WithLabelValues("menus").Add(float64(r.RemovedMenus))
	metrics.ModuleCascadeRowsRemoved.WithLabelValues("role_menu").Add(float64(r.RemovedGrants))
	metrics.ModuleCascadeRowsRemoved.WithLabelValues("menu_move_map").Add(float64(r.RemovedRelocations))
}

// =============================================================================
// Listing and administration
// =============================================================================

// ListInstalled returns the modules installed for the account in the
// account's order.
func (s *ModuleLifecycleService) ListInstalled(ctx context.Context, account Account) ([]*module.Module, error) {
	all, err := s.modules.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return s.installedModules(ctx, account.ID, all)
}

// ListRegistry returns every registered module.
func (s *ModuleLifecycleService) ListRegistry(ctx context.Context) ([]*module.Module, error) {
	return s.modules.List(ctx)
}

// SetStatusInput represents the input for SetStatus.
type SetStatusInput struct {
	ModuleID shared.ID `json:"module_id" validate:"required,gt=0"`
	Status   string    `json:"status" validate:"required,module_status"`
}

// SetStatus enables or disables a module. Disabled modules cannot be
// installed; existing installs are left alone.
func (s *ModuleLifecycleService) SetStatus(ctx context.Context, input SetStatusInput) (*module.Module, error) {
	status := module.Status(input.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, input.Status)
	}
	if err := s.modules.UpdateStatus(ctx, input.ModuleID, status); err != nil {
		return nil, err
	}
	s.logger.Info("module status changed", "module_id", input.ModuleID, "status", status)
	return s.modules.GetByID(ctx, input.ModuleID)
}

// ReorderInput represents the input for Reorder.
type ReorderInput struct {
	ModuleIDs []shared.ID `json:"module_ids" validate:"required,min=1,dive,gt=0"`
}

// Reorder rewrites the order of the account's installed modules.
func (s *ModuleLifecycleService) Reorder(ctx context.Context, account Account, input ReorderInput) (int, error) {
	ids := shared.UniqueIDs(input.ModuleIDs)
	if len(ids) != len(input.ModuleIDs) {
		return 0, fmt.Errorf("%w: module_ids contains duplicates", shared.ErrValidation)
	}
	n, err := s.entitlements.Reorder(ctx, account.ID, ids)
	if err != nil {
		return 0, fmt.Errorf("reorder modules: %w", err)
	}
	return n, nil
}

func (s *ModuleLifecycleService) invalidateAll(ctx context.Context) {
	if err := s.trees.InvalidateAll(ctx); err != nil {
		s.logger.Warn("failed to invalidate menu trees", "error", err)
	}
}

func scopeLabel(p string) string {
	if p == "" {
		return ScanAll
	}
	return p
}

// IsDependencyError extracts the dependency details of an install refusal.
func IsDependencyError(err error) (*module.DependencyError, bool) {
	var depErr *module.DependencyError
	if errors.As(err, &depErr) {
		return depErr, true
	}
	return nil, false
}

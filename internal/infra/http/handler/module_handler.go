package handler

import (
	"net/http"
	"time"

	"github.com/openctemio/console/internal/app"
	"github.com/openctemio/console/pkg/apierror"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
	"github.com/openctemio/console/pkg/logger"
	"github.com/openctemio/console/pkg/validator"
)

// ModuleHandler handles module lifecycle requests.
type ModuleHandler struct {
	service   *app.ModuleLifecycleService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewModuleHandler creates a new module handler.
func NewModuleHandler(svc *app.ModuleLifecycleService, v *validator.Validator, log *logger.Logger) *ModuleHandler {
	return &ModuleHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// =============================================================================
// Request / Response Types
// =============================================================================

// ModuleIDRequest identifies one module.
type ModuleIDRequest struct {
	ModuleID shared.ID `json:"module_id" validate:"required,gt=0"`
}

// ScanSuccessResponse is one registered module of a batch.
type ScanSuccessResponse struct {
	ModuleName string `json:"module_name"`
	Path       string `json:"path"`
}

// ScanFailureResponse is one rejected candidate of a batch.
type ScanFailureResponse struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// DependencyWarningResponse flags an installed module with broken dependencies.
type DependencyWarningResponse struct {
	ModuleName string   `json:"module_name"`
	Missing    []string `json:"missing"`
	Message    string   `json:"message"`
}

// BatchReportResponse is the outcome of scan and update.
type BatchReportResponse struct {
	Success  []ScanSuccessResponse       `json:"success"`
	Failed   []ScanFailureResponse       `json:"failed"`
	Warnings []DependencyWarningResponse `json:"warnings,omitempty"`
}

// InstallResponse is returned by install.
type InstallResponse struct {
	ModuleID         shared.ID `json:"module_id"`
	ModuleName       string    `json:"module_name"`
	AlreadyInstalled bool      `json:"already_installed"`
	ImportedMenus    int       `json:"imported_menus"`
}

// UninstallResponse is returned by uninstall.
type UninstallResponse struct {
	ModuleID            shared.ID `json:"module_id"`
	ModuleName          string    `json:"module_name"`
	ModulePath          string    `json:"module_path"`
	Purged              bool      `json:"purged"`
	RemovedEntitlements int       `json:"removed_entitlements"`
	RemovedMenus        int       `json:"removed_menus"`
	RemovedGrants       int       `json:"removed_grants"`
	RemovedRelocations  int       `json:"removed_relocations"`
}

// InstalledModuleResponse is one entry of the caller's module list.
type InstalledModuleResponse struct {
	ModuleID    shared.ID `json:"module_id"`
	ModuleName  string    `json:"module_name"`
	ModuleAlias string    `json:"module_alias"`
}

// ModuleResponse is a registry entry.
type ModuleResponse struct {
	ModuleID     shared.ID `json:"module_id"`
	ModuleName   string    `json:"module_name"`
	Title        string    `json:"title"`
	Alias        string    `json:"alias,omitempty"`
	Description  string    `json:"description,omitempty"`
	Version      string    `json:"version"`
	Source       string    `json:"source"`
	IsCore       bool      `json:"is_core"`
	IsInstalled  bool      `json:"is_installed"`
	Status       string    `json:"status"`
	Priority     int       `json:"priority"`
	Sort         int       `json:"sort"`
	Dependencies []string  `json:"dependencies"`
	Providers    []string  `json:"providers"`
	Keywords     []string  `json:"keywords"`
	Path         string    `json:"module_path"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toModuleResponse(m *module.Module) ModuleResponse {
	return ModuleResponse{
		ModuleID:     m.ID(),
		ModuleName:   m.Name(),
		Title:        m.Title(),
		Alias:        m.Alias(),
		Description:  m.Description(),
		Version:      m.Version(),
		Source:       string(m.Source()),
		IsCore:       m.IsCore(),
		IsInstalled:  m.IsInstalled(),
		Status:       string(m.Status()),
		Priority:     m.Priority(),
		Sort:         m.Sort(),
		Dependencies: nonNilStrings(m.Dependencies()),
		Providers:    nonNilStrings(m.Providers()),
		Keywords:     nonNilStrings(m.Keywords()),
		Path:         m.Path(),
		CreatedAt:    m.CreatedAt(),
		UpdatedAt:    m.UpdatedAt(),
	}
}

func toBatchReportResponse(report *module.BatchReport) BatchReportResponse {
	resp := BatchReportResponse{
		Success: make([]ScanSuccessResponse, 0, len(report.Success)),
		Failed:  make([]ScanFailureResponse, 0, len(report.Failed)),
	}
	for _, s := range report.Success {
		resp.Success = append(resp.Success, ScanSuccessResponse{ModuleName: s.ModuleName, Path: s.Path})
	}
	for _, f := range report.Failed {
		resp.Failed = append(resp.Failed, ScanFailureResponse{Path: f.Path, Message: f.Message})
	}
	for _, w := range report.Warnings {
		resp.Warnings = append(resp.Warnings, DependencyWarningResponse{
			ModuleName: w.ModuleName,
			Missing:    nonNilStrings(w.Missing),
			Message:    w.Message,
		})
	}
	return resp
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// =============================================================================
// Handlers
// =============================================================================

// Scan registers every module found under the requested path.
// POST /api/v1/modules/scan
func (h *ModuleHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var input app.ScanInput
	if err := decodeJSON(r, &input); err != nil {
		handleDecodeError(w, err)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	report, err := h.service.Scan(r.Context(), input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	apierror.WriteSuccess(w, toBatchReportResponse(report))
}

// Update re-scans and reports broken dependencies of the caller's modules.
// POST /api/v1/modules/update
func (h *ModuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input app.UpdateInput
	if err := decodeJSON(r, &input); err != nil {
		handleDecodeError(w, err)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	report, err := h.service.Update(r.Context(), accountFrom(r), input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	resp := toBatchReportResponse(report)
	if resp.Warnings == nil {
		resp.Warnings = []DependencyWarningResponse{}
	}
	apierror.WriteSuccess(w, resp)
}

// Install entitles the caller to a module.
// POST /api/v1/modules/install
func (h *ModuleHandler) Install(w http.ResponseWriter, r *http.Request) {
	var req ModuleIDRequest
	if err := decodeJSON(r, &req); err != nil {
		handleDecodeError(w, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	out, err := h.service.Install(r.Context(), accountFrom(r), req.ModuleID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	apierror.WriteSuccess(w, InstallResponse{
		ModuleID:         out.Module.ID(),
		ModuleName:       out.Module.Name(),
		AlreadyInstalled: out.AlreadyInstalled,
		ImportedMenus:    out.ImportedMenus,
	})
}

// Uninstall removes the caller's entitlement and everything hanging off it.
// POST /api/v1/modules/uninstall
func (h *ModuleHandler) Uninstall(w http.ResponseWriter, r *http.Request) {
	var input app.UninstallInput
	if err := decodeJSON(r, &input); err != nil {
		handleDecodeError(w, err)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	out, err := h.service.Uninstall(r.Context(), accountFrom(r), input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	apierror.WriteSuccess(w, UninstallResponse{
		ModuleID:            out.Module.ID(),
		ModuleName:          out.Module.Name(),
		ModulePath:          out.Module.Path(),
		Purged:              out.Purged,
		RemovedEntitlements: out.Removed.RemovedEntitlements,
		RemovedMenus:        out.Removed.RemovedMenus,
		RemovedGrants:       out.Removed.RemovedGrants,
		RemovedRelocations:  out.Removed.RemovedRelocations,
	})
}

// List returns the caller's installed modules in entitlement order.
// POST /api/v1/modules/list
func (h *ModuleHandler) List(w http.ResponseWriter, r *http.Request) {
	modules, err := h.service.ListInstalled(r.Context(), accountFrom(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	resp := make([]InstalledModuleResponse, 0, len(modules))
	for _, m := range modules {
		resp = append(resp, InstalledModuleResponse{
			ModuleID:    m.ID(),
			ModuleName:  m.Name(),
			ModuleAlias: m.DisplayName(),
		})
	}
	apierror.WriteSuccess(w, resp)
}

// Registry returns every registered module.
// POST /api/v1/modules/registry
func (h *ModuleHandler) Registry(w http.ResponseWriter, r *http.Request) {
	modules, err := h.service.ListRegistry(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	resp := make([]ModuleResponse, 0, len(modules))
	for _, m := range modules {
		resp = append(resp, toModuleResponse(m))
	}
	apierror.WriteSuccess(w, resp)
}

// SetStatus enables or disables a module.
// POST /api/v1/modules/status
func (h *ModuleHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var input app.SetStatusInput
	if err := decodeJSON(r, &input); err != nil {
		handleDecodeError(w, err)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	m, err := h.service.SetStatus(r.Context(), input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	apierror.WriteSuccess(w, toModuleResponse(m))
}

// Sort reorders the caller's installed modules.
// POST /api/v1/modules/sort
func (h *ModuleHandler) Sort(w http.ResponseWriter, r *http.Request) {
	var input app.ReorderInput
	if err := decodeJSON(r, &input); err != nil {
		handleDecodeError(w, err)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	count, err := h.service.Reorder(r.Context(), accountFrom(r), input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	apierror.WriteSuccess(w, CountResponse{Count: count})
}

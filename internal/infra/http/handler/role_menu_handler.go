package handler

import (
	"net/http"

	"github.com/openctemio/console/internal/app"
	"github.com/openctemio/console/pkg/apierror"
	"github.com/openctemio/console/pkg/logger"
	"github.com/openctemio/console/pkg/validator"
)

// RoleMenuHandler handles role menu trees, grants and relocations.
type RoleMenuHandler struct {
	service   *app.PermissionAssemblyService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewRoleMenuHandler creates a new role menu handler.
func NewRoleMenuHandler(svc *app.PermissionAssemblyService, v *validator.Validator, log *logger.Logger) *RoleMenuHandler {
	return &RoleMenuHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// Menus returns the role's menu tree grouped into module buckets.
// The account type defaults to the caller's when omitted.
// POST /api/v1/roles/menus
func (h *RoleMenuHandler) Menus(w http.ResponseWriter, r *http.Request) {
	var input app.GetMenusInput
	if err := decodeJSON(r, &input); err != nil {
		handleDecodeError(w, err)
		return
	}
	if input.AccountType == "" {
		input.AccountType = string(accountFrom(r).Type)
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	tree, err := h.service.GetMenus(r.Context(), input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	apierror.WriteSuccess(w, tree)
}

// UpdateMenus replaces the role's grants, keeping required menus.
// POST /api/v1/roles/menus/update
func (h *RoleMenuHandler) UpdateMenus(w http.ResponseWriter, r *http.Request) {
	var input app.UpdateMenusInput
	if err := decodeJSON(r, &input); err != nil {
		handleDecodeError(w, err)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	out, err := h.service.UpdateMenus(r.Context(), input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	apierror.WriteSuccess(w, out)
}

// Move relocates menus to another module for the role.
// POST /api/v1/roles/menus/move
func (h *RoleMenuHandler) Move(w http.ResponseWriter, r *http.Request) {
	var input app.MoveMenusInput
	if err := decodeJSON(r, &input); err != nil {
		handleDecodeError(w, err)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	count, err := h.service.MoveMenuToModule(r.Context(), input)
	h.writeCount(w, r, count, err)
}

// MoveBack returns menus to their owning module.
// POST /api/v1/roles/menus/move-back
func (h *RoleMenuHandler) MoveBack(w http.ResponseWriter, r *http.Request) {
	var input app.MoveBackInput
	if err := decodeJSON(r, &input); err != nil {
		handleDecodeError(w, err)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	count, err := h.service.MoveMenuBackToOriginal(r.Context(), input)
	h.writeCount(w, r, count, err)
}

// MoveAllBack clears every relocation targeting a module.
// POST /api/v1/roles/menus/move-all-back
func (h *RoleMenuHandler) MoveAllBack(w http.ResponseWriter, r *http.Request) {
	var input app.MoveAllBackInput
	if err := decodeJSON(r, &input); err != nil {
		handleDecodeError(w, err)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	count, err := h.service.MoveAllBackByModule(r.Context(), input)
	h.writeCount(w, r, count, err)
}

func (h *RoleMenuHandler) writeCount(w http.ResponseWriter, r *http.Request, count int, err error) {
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	apierror.WriteSuccess(w, CountResponse{Count: count})
}

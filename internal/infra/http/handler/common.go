package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/openctemio/console/internal/app"
	"github.com/openctemio/console/internal/infra/http/middleware"
	"github.com/openctemio/console/pkg/apierror"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
	"github.com/openctemio/console/pkg/logger"
	"github.com/openctemio/console/pkg/validator"
)

// CountResponse is returned by operations that report how many rows changed.
type CountResponse struct {
	Count int `json:"count"`
}

// decodeJSON reads the request body into dst. Every route is a POST, and
// operations without required fields accept an empty body.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// handleDecodeError writes the response for a body that could not be read.
func handleDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		apierror.RequestTooLarge().WriteJSON(w)
		return
	}
	apierror.BadRequest("Invalid request body").WriteJSON(w)
}

// handleValidationError converts validator errors to the field list of a 400.
func handleValidationError(w http.ResponseWriter, err error) {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		apierror.ValidationFailed("Validation failed", fields).WriteJSON(w)
		return
	}
	apierror.BadRequest(err.Error()).WriteJSON(w)
}

// handleServiceError maps domain errors onto the response envelope. Errors
// without a domain meaning are logged and hidden behind a 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	if depErr, ok := app.IsDependencyError(err); ok {
		apierror.DependencyUnsatisfied(depErr.Module, depErr.Missing).WriteJSON(w)
		return
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		apierror.RequestTooLarge().WriteJSON(w)
	case errors.Is(err, module.ErrCoreModuleProtected):
		apierror.New(http.StatusForbidden, apierror.CodeCoreModuleProtected, "Core modules cannot be uninstalled").WriteJSON(w)
	case errors.Is(err, shared.ErrNotFound):
		apierror.New(http.StatusNotFound, apierror.CodeNotFound, err.Error()).WriteJSON(w)
	case shared.IsValidation(err):
		apierror.ValidationFailed(err.Error(), nil).WriteJSON(w)
	case errors.Is(err, shared.ErrConflict):
		apierror.Conflict(err.Error()).WriteJSON(w)
	case errors.Is(err, shared.ErrForbidden):
		apierror.Forbidden(err.Error()).WriteJSON(w)
	case errors.Is(err, shared.ErrUnauthorized):
		apierror.Unauthorized("").WriteJSON(w)
	default:
		log.WithContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}

// accountFrom returns the authenticated caller.
func accountFrom(r *http.Request) app.Account {
	return app.Account{
		ID:   middleware.GetAccountID(r.Context()),
		Type: middleware.GetAccountType(r.Context()),
	}
}

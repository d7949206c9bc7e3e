// Package apierror provides the response envelope shared by every endpoint
// and the standardized errors rendered into it.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine readable error code, carried in data.error.
type Code string

// Error codes.
const (
	CodeBadRequest            Code = "BAD_REQUEST"
	CodeUnauthorized          Code = "UNAUTHORIZED"
	CodeForbidden             Code = "FORBIDDEN"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeValidationFailed      Code = "VALIDATION_ERROR"
	CodeDependencyUnsatisfied Code = "DEPENDENCY_UNSATISFIED"
	CodeCoreModuleProtected   Code = "CORE_MODULE_PROTECTED"
	CodeRateLimitExceeded     Code = "RATE_LIMIT_EXCEEDED"
	CodeRequestTooLarge       Code = "REQUEST_TOO_LARGE"
	CodeTimeout               Code = "TIMEOUT"
	CodeInternalError         Code = "INTERNAL_ERROR"
)

// StatusFailedDependency is returned when an install is blocked by missing
// prerequisite modules.
const StatusFailedDependency = http.StatusFailedDependency

// Envelope is the body of every response. Code 200 means success; any other
// value is a failure described by Message, with optional diagnostics in Data.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error represents a failed request.
type Error struct {
	// HTTP status, mirrored into Envelope.Code
	Status int

	Code    Code
	Message string

	// Details are merged into data next to the error code
	Details map[string]any

	// Internal error (not exposed to client)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Envelope converts the error to its wire form.
func (e *Error) Envelope() Envelope {
	data := map[string]any{"error": e.Code}
	for k, v := range e.Details {
		data[k] = v
	}
	return Envelope{Code: e.Status, Message: e.Message, Data: data}
}

// WriteJSON writes the error envelope.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	writeEnvelope(w, e.Status, e.Envelope())
}

// WithDetail adds one diagnostic value to data.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WriteSuccess writes a code 200 envelope carrying data.
func WriteSuccess(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, Envelope{Code: http.StatusOK, Message: "success", Data: data})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// New creates a new API error.
func New(status int, code Code, message string) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// BadRequest creates a 400 error for malformed requests.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return New(http.StatusForbidden, CodeForbidden, message)
}

// NotFound creates a 404 error.
func NotFound(resource string) *Error {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s not found", resource)
	}
	return New(http.StatusNotFound, CodeNotFound, message)
}

// Conflict creates a 409 error.
func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

// ValidationFailed creates a 400 validation error. details may be nil.
func ValidationFailed(message string, details any) *Error {
	e := New(http.StatusBadRequest, CodeValidationFailed, message)
	if details != nil {
		e.WithDetail("fields", details)
	}
	return e
}

// DependencyUnsatisfied creates a 424 error naming the missing modules.
func DependencyUnsatisfied(module string, missing []string) *Error {
	return New(StatusFailedDependency, CodeDependencyUnsatisfied,
		fmt.Sprintf("Module %s requires modules that are not installed", module)).
		WithDetail("missing", missing)
}

// CoreModuleProtected creates a 403 error for uninstalling a core module.
func CoreModuleProtected(module string) *Error {
	return New(http.StatusForbidden, CodeCoreModuleProtected,
		fmt.Sprintf("Module %s is a core module and cannot be uninstalled", module))
}

// RateLimitExceeded creates a 429 error.
func RateLimitExceeded() *Error {
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Too many requests")
}

// RequestTooLarge creates a 413 error.
func RequestTooLarge() *Error {
	return New(http.StatusRequestEntityTooLarge, CodeRequestTooLarge, "Request body too large")
}

// Timeout creates a 504 error.
func Timeout() *Error {
	return New(http.StatusGatewayTimeout, CodeTimeout, "Request timeout")
}

// InternalError creates a 500 error. The cause is kept for logging only.
func InternalError(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternalError,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// IsAPIError reports whether err is, or wraps, an *Error.
func IsAPIError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr)
}

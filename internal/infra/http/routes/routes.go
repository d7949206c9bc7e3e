// Package routes registers all HTTP routes of the console.
// Routes are organized by domain:
//   - modules.go: module registry and lifecycle
//   - roles.go: role menu trees, grants and relocations
//   - misc.go: health, readiness and metrics
package routes

import (
	"net/http"

	infrahttp "github.com/openctemio/console/internal/infra/http"
	"github.com/openctemio/console/internal/infra/http/handler"
)

// Middleware is an alias to the http package's Middleware type.
type Middleware = infrahttp.Middleware

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// APIPrefix is the prefix of every business endpoint.
const APIPrefix = "/api/v1"

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health   *handler.HealthHandler
	Module   *handler.ModuleHandler
	RoleMenu *handler.RoleMenuHandler
}

// Middlewares holds the route-level middleware. Global middleware is
// installed by the server.
type Middlewares struct {
	// Auth resolves the calling account; required on every API route.
	Auth Middleware
	// Lifecycle throttles the expensive module operations per account. May be nil.
	Lifecycle Middleware
}

// Register registers all application routes.
func Register(router Router, h Handlers, mw Middlewares) {
	registerHealthRoutes(router, h.Health)

	lifecycle := mw.Lifecycle
	if lifecycle == nil {
		lifecycle = func(next http.Handler) http.Handler { return next }
	}
	router.Group(APIPrefix, func(api Router) {
		registerModuleRoutes(api, h.Module, lifecycle)
		registerRoleRoutes(api, h.RoleMenu)
	}, mw.Auth)
}

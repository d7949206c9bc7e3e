// Package http wires the console's HTTP server: router abstraction, global
// middleware chain, handlers and route registration.
package http

import (
	"net/http"
)

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router is the routing surface handlers are registered on. The console
// exposes command-style POST endpoints plus GET operational probes.
type Router interface {
	// GET and POST register a handler with optional route middleware; the
	// first middleware wraps outermost.
	GET(path string, handler http.HandlerFunc, middlewares ...Middleware)
	POST(path string, handler http.HandlerFunc, middlewares ...Middleware)

	// Group creates a route group under prefix; middlewares apply to every route inside.
	Group(prefix string, fn func(Router), middlewares ...Middleware)

	// Use adds middleware to the router.
	Use(middlewares ...Middleware)

	// With returns a Router whose routes are wrapped by middlewares.
	With(middlewares ...Middleware) Router

	// Handler returns the http.Handler for use with http.Server.
	Handler() http.Handler

	// Walk iterates over all registered routes.
	Walk(fn func(method, path string, handler http.Handler) error) error
}

// Chain applies middlewares to a handler, first middleware outermost.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

package routes

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openctemio/console/internal/infra/http/handler"
)

// registerHealthRoutes registers the unauthenticated operational endpoints.
func registerHealthRoutes(router Router, h *handler.HealthHandler) {
	if h == nil {
		h = handler.NewHealthHandler()
	}
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", promhttp.Handler().ServeHTTP)
}

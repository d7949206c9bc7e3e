package routes

import "github.com/openctemio/console/internal/infra/http/handler"

// registerModuleRoutes registers module lifecycle endpoints.
// Scan, install, uninstall and update touch the filesystem or rewrite the
// menu catalog and are throttled per account.
func registerModuleRoutes(router Router, h *handler.ModuleHandler, lifecycle Middleware) {
	if h == nil {
		return
	}
	router.Group("/modules", func(r Router) {
		r.POST("/scan", h.Scan, lifecycle)
		r.POST("/install", h.Install, lifecycle)
		r.POST("/uninstall", h.Uninstall, lifecycle)
		r.POST("/update", h.Update, lifecycle)

		r.POST("/list", h.List)
		r.POST("/registry", h.Registry)
		r.POST("/status", h.SetStatus)
		r.POST("/sort", h.Sort)
	})
}

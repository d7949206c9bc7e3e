package routes

import "github.com/openctemio/console/internal/infra/http/handler"

// registerRoleRoutes registers role menu endpoints.
func registerRoleRoutes(router Router, h *handler.RoleMenuHandler) {
	if h == nil {
		return
	}
	router.Group("/roles", func(r Router) {
		r.POST("/menus", h.Menus)
		r.POST("/menus/update", h.UpdateMenus)
		r.POST("/menus/move", h.Move)
		r.POST("/menus/move-back", h.MoveBack)
		r.POST("/menus/move-all-back", h.MoveAllBack)
	})
}

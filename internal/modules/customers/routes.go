package customers

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up customer routes on the given authenticated group.
// The posture gallery route under /customers is owned by the postures module.
func RegisterRoutes(g *echo.Group, h *Handler) {
	g.GET("/customers", h.List)
	g.GET("/customers/options", h.Options)
	g.POST("/customers", h.Create)
	g.GET("/customers/:customerID", h.Get)
	g.PATCH("/customers/:customerID", h.Update)
	g.DELETE("/customers/:customerID", h.Delete)
}

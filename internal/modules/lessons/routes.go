package lessons

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up lesson routes on the given authenticated group.
// The posture-group link route under /lessons is owned by the postures module.
func RegisterRoutes(g *echo.Group, h *Handler) {
	g.POST("/lessons", h.Create)
	g.GET("/lessons/:lessonID", h.Get)
	g.PATCH("/lessons/:lessonID", h.Update)
	g.DELETE("/lessons/:lessonID", h.Delete)
	g.GET("/customers/:customerID/lessons", h.ListByCustomer)
}

package connections

import (
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/auth"
)

// RegisterRoutes registers connection routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/connections")
	g.Use(authMiddleware.RequireAuth())

	g.POST("", h.Connect)
	g.POST("/reorder", h.Reorder)
	g.GET("/from/:thingId", h.ListFrom)
	g.GET("/to/:thingId", h.ListTo)
	g.POST("/:id/disconnect", h.Disconnect)
}

package events

import (
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/auth"
)

// RegisterRoutes registers event log routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/events")
	g.Use(authMiddleware.RequireAuth())

	g.GET("/by-actor/:actorId", h.ByActor)
	g.GET("/by-target/:targetId", h.ByTarget)
	g.GET("/by-type/:type", h.ByType)
}

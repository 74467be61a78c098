package authz

import (
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/auth"
)

// RegisterRoutes registers membership administration routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/memberships")
	g.Use(authMiddleware.RequireAuth())

	g.POST("", h.Grant)
	g.DELETE("/:id", h.Revoke)
	g.GET("/by-actor/:actorId", h.ListByActor)
}

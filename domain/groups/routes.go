package groups

import (
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/auth"
)

// RegisterRoutes registers group routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/groups")
	g.Use(authMiddleware.RequireAuth())

	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/by-slug/:slug", h.GetBySlug)
	g.GET("/:id", h.Get)
	g.POST("/:id/status", h.SetStatus)
	g.POST("/:id/parent", h.SetParent)
	g.GET("/:id/effective-settings", h.EffectiveSettings)
}

package queries

import (
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/auth"
)

// RegisterRoutes registers the query router routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/query")
	g.Use(authMiddleware.RequireAuth())

	g.POST("", h.Query)
	g.GET("/operations", h.Operations)
}

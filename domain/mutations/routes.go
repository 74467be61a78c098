package mutations

import (
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/auth"
)

// RegisterRoutes registers the mutation router routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/mutate")
	g.Use(authMiddleware.RequireAuth())

	g.POST("", h.Mutate)
	g.GET("/operations", h.Operations)
}

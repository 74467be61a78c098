package webhooks

import (
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/auth"
)

// RegisterRoutes registers webhook ingestion routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/ingest")
	g.Use(authMiddleware.RequireAuth())

	g.POST("/:source", h.Ingest)
}

package knowledge

import (
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/auth"
)

// RegisterRoutes registers knowledge index routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/knowledge")
	g.Use(authMiddleware.RequireAuth())

	g.POST("/labels", h.AttachLabels)
	g.PUT("/embeddings", h.UpsertEmbedding)
	g.POST("/search", h.Search)
	g.POST("/search-by-label", h.SearchByLabel)
}

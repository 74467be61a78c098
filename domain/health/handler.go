package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// Handler exposes liveness and readiness checks.
type Handler struct {
	db bun.IDB
}

// NewHandler creates a new health handler.
func NewHandler(db bun.IDB) *Handler {
	return &Handler{db: db}
}

// Live reports process liveness.
// GET /healthz
func (h *Handler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness including a database round trip.
// GET /health
func (h *Handler) Ready(c echo.Context) error {
	var one int
	err := h.db.NewSelect().ColumnExpr("1").Scan(c.Request().Context(), &one)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"database": "unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "ok",
	})
}

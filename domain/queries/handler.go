package queries

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

// Handler handles the routed query endpoint.
type Handler struct {
	router *Router
}

// NewHandler creates a new query handler.
func NewHandler(router *Router) *Handler {
	return &Handler{router: router}
}

// Query routes one query.
// POST /api/query
func (h *Handler) Query(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var req Request
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if req.Operation == "" {
		return apperror.NewValidation("operation", "operation is required")
	}

	resp, err := h.router.Dispatch(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Operations lists the registered query names.
// GET /api/query/operations
func (h *Handler) Operations(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"operations": h.router.Operations()})
}

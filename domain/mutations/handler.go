package mutations

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

// Handler handles the routed mutation endpoint.
type Handler struct {
	router *Router
}

// NewHandler creates a new mutation handler.
func NewHandler(router *Router) *Handler {
	return &Handler{router: router}
}

// Mutate routes one mutation.
// POST /api/mutate
func (h *Handler) Mutate(c echo.Context) error {
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

// Operations lists the registered mutation names.
// GET /api/mutate/operations
func (h *Handler) Operations(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"operations": h.router.Operations()})
}

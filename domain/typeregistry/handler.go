package typeregistry

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

// Handler handles HTTP requests for type definitions.
type Handler struct {
	svc *Service
}

// NewHandler creates a new type registry handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List returns registered type definitions.
// GET /api/types?dimension=thing
func (h *Handler) List(c echo.Context) error {
	var dimension *string
	if dim := c.QueryParam("dimension"); dim != "" {
		if !ValidDimension(dim) {
			return apperror.ErrBadRequest.WithMessage("dimension must be thing or connection")
		}
		dimension = &dim
	}
	list, err := h.svc.List(c.Request().Context(), dimension)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"types": list})
}

// Register stores a type definition.
// POST /api/types
func (h *Handler) Register(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	def, err := h.svc.Register(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, def)
}

// Disable switches off validation for a type.
// POST /api/types/:dimension/:typeName/disable
func (h *Handler) Disable(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	dimension := c.Param("dimension")
	typeName := c.Param("typeName")
	if err := h.svc.Disable(c.Request().Context(), actor, typeName, dimension); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

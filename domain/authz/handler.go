package authz

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

// Handler handles HTTP requests for membership administration.
type Handler struct {
	svc *Service
}

// NewHandler creates a new authz handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Grant creates a membership.
// POST /api/memberships
func (h *Handler) Grant(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var req GrantRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if req.ActorID == uuid.Nil {
		return apperror.NewValidation("actorId", "actorId is required")
	}

	m, err := h.svc.Grant(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

// Revoke removes a membership.
// DELETE /api/memberships/:id
func (h *Handler) Revoke(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid membership id")
	}
	if err := h.svc.Revoke(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListByActor returns the memberships an actor holds.
// GET /api/memberships/by-actor/:actorId
func (h *Handler) ListByActor(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	actorID, err := uuid.Parse(c.Param("actorId"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid actorId")
	}
	list, err := h.svc.ListByActor(c.Request().Context(), actor, actorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"memberships": list})
}

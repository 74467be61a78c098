package groups

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

// Handler handles HTTP requests for groups.
type Handler struct {
	svc *Service
}

// NewHandler creates a new group handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create registers a new group.
// POST /api/groups
func (h *Handler) Create(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var req CreateGroupRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	group, _, err := h.svc.Create(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, group)
}

// Get returns a group by ID.
// GET /api/groups/:id
func (h *Handler) Get(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid group id")
	}
	group, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, group)
}

// GetBySlug returns a group by slug.
// GET /api/groups/by-slug/:slug
func (h *Handler) GetBySlug(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	group, err := h.svc.GetBySlug(c.Request().Context(), actor, c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, group)
}

// List returns child groups.
// GET /api/groups?parentId=...&includeArchived=true
func (h *Handler) List(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var parentID *uuid.UUID
	if p := c.QueryParam("parentId"); p != "" {
		id, err := uuid.Parse(p)
		if err != nil {
			return apperror.ErrBadRequest.WithMessage("invalid parentId")
		}
		parentID = &id
	}
	includeArchived := c.QueryParam("includeArchived") == "true"

	list, err := h.svc.List(c.Request().Context(), actor, parentID, includeArchived)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"groups": list})
}

// SetStatus changes a group's status.
// POST /api/groups/:id/status
func (h *Handler) SetStatus(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid group id")
	}
	var req SetStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	group, _, err := h.svc.SetStatus(c.Request().Context(), actor, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, group)
}

// SetParent moves a group under a new parent.
// POST /api/groups/:id/parent
func (h *Handler) SetParent(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid group id")
	}
	var req SetParentRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	group, _, err := h.svc.SetParent(c.Request().Context(), actor, id, req.ParentGroupID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, group)
}

// EffectiveSettings returns merged settings down the ancestor chain.
// GET /api/groups/:id/effective-settings
func (h *Handler) EffectiveSettings(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid group id")
	}
	settings, err := h.svc.EffectiveSettings(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"settings": settings})
}

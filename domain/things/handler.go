package things

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

// Handler handles HTTP requests for things.
type Handler struct {
	svc *Service
}

// NewHandler creates a new thing handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create stores a new thing.
// POST /api/things
func (h *Handler) Create(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var req CreateThingRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	thing, _, err := h.svc.Create(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, thing)
}

// Get returns a thing by ID.
// GET /api/things/:id
func (h *Handler) Get(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid thing id")
	}
	thing, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, thing)
}

// listBody is the search request body. Listing goes through POST so
// attribute filters arrive as structured JSON rather than query-string
// encoding.
type listBody struct {
	GroupID    *uuid.UUID        `json:"groupId,omitempty"`
	Scope      string            `json:"scope,omitempty"`
	Types      []string          `json:"types,omitempty"`
	Status     *string           `json:"status,omitempty"`
	NameSearch *string           `json:"nameSearch,omitempty"`
	Filters    []AttributeFilter `json:"filters,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Cursor     *string           `json:"cursor,omitempty"`
}

// List returns things matching filters within a group scope.
// POST /api/things/search
func (h *Handler) List(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var body listBody
	if err := c.Bind(&body); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	params := ListParams{
		GroupID:       body.GroupID,
		PlatformScope: body.Scope == "platform",
		Types:         body.Types,
		Status:        body.Status,
		NameSearch:    body.NameSearch,
		Filters:       body.Filters,
		Limit:         body.Limit,
		Cursor:        body.Cursor,
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			params.Limit = n
		}
	}

	list, next, err := h.svc.List(c.Request().Context(), actor, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"things": list, "nextCursor": next})
}

// Update patches a thing.
// PATCH /api/things/:id
func (h *Handler) Update(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid thing id")
	}
	var req UpdateThingRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	thing, _, err := h.svc.Update(c.Request().Context(), actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, thing)
}

// SetStatus changes a thing's status.
// POST /api/things/:id/status
func (h *Handler) SetStatus(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid thing id")
	}
	var req SetStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	thing, _, err := h.svc.SetStatus(c.Request().Context(), actor, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, thing)
}

package connections

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

// Handler handles HTTP requests for connections.
type Handler struct {
	svc *Service
}

// NewHandler creates a new connection handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Connect creates a connection.
// POST /api/connections
func (h *Handler) Connect(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var req ConnectRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if req.FromThingID == uuid.Nil || req.ToThingID == uuid.Nil {
		return apperror.NewValidation("fromThingId", "both endpoints are required")
	}

	conn, _, err := h.svc.Connect(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, conn)
}

// Disconnect closes a connection's validity window.
// POST /api/connections/:id/disconnect
func (h *Handler) Disconnect(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid connection id")
	}
	conn, _, err := h.svc.Disconnect(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conn)
}

// ListFrom returns connections leaving a thing.
// GET /api/connections/from/:thingId
func (h *Handler) ListFrom(c echo.Context) error {
	return h.list(c, DirectionFrom)
}

// ListTo returns connections arriving at a thing.
// GET /api/connections/to/:thingId
func (h *Handler) ListTo(c echo.Context) error {
	return h.list(c, DirectionTo)
}

func (h *Handler) list(c echo.Context, direction Direction) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	thingID, err := uuid.Parse(c.Param("thingId"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid thingId")
	}

	params := ListParams{
		ThingID:        thingID,
		Direction:      direction,
		IncludeExpired: c.QueryParam("includeExpired") == "true",
	}
	if t := c.QueryParam("type"); t != "" {
		params.Type = &t
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			params.Limit = n
		}
	}

	result, err := h.svc.List(c.Request().Context(), actor, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Reorder rewrites an ordered family's sequence.
// POST /api/connections/reorder
func (h *Handler) Reorder(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var req ReorderRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if req.FromThingID == uuid.Nil {
		return apperror.NewValidation("fromThingId", "fromThingId is required")
	}

	ord, _, err := h.svc.Reorder(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ord)
}

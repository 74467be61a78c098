package events

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

// Handler handles HTTP requests for the event log.
type Handler struct {
	svc *Service
}

// NewHandler creates a new event handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func parseTimeRange(c echo.Context) (TimeRange, error) {
	var rng TimeRange
	if from := c.QueryParam("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return rng, apperror.ErrBadRequest.WithMessage("invalid from timestamp, expected RFC3339")
		}
		rng.From = t
	}
	if to := c.QueryParam("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return rng, apperror.ErrBadRequest.WithMessage("invalid to timestamp, expected RFC3339")
		}
		rng.To = t
	}
	return rng, nil
}

// parseScope reads the tenant scope of an event query: a groupId query
// param, or scope=platform for the cross-tenant view.
func parseScope(c echo.Context) (QueryScope, error) {
	var scope QueryScope
	if raw := c.QueryParam("groupId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return scope, apperror.ErrBadRequest.WithMessage("invalid groupId")
		}
		scope.GroupID = &id
	}
	scope.Platform = c.QueryParam("scope") == "platform"
	return scope, nil
}

func parseLimitCursor(c echo.Context) (int, *string) {
	limit := 50
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}
	var cursor *string
	if cur := c.QueryParam("cursor"); cur != "" {
		cursor = &cur
	}
	return limit, cursor
}

// ByActor returns events produced by an actor.
// GET /api/events/by-actor/:actorId
func (h *Handler) ByActor(c echo.Context) error {
	actorID, err := uuid.Parse(c.Param("actorId"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid actorId")
	}
	scope, err := parseScope(c)
	if err != nil {
		return err
	}
	rng, err := parseTimeRange(c)
	if err != nil {
		return err
	}
	limit, cursor := parseLimitCursor(c)

	list, next, err := h.svc.QueryByActor(c.Request().Context(), auth.GetActor(c), actorID, scope, rng, limit, cursor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse{Events: list, NextCursor: next})
}

// ByTarget returns events affecting a target entity.
// GET /api/events/by-target/:targetId
func (h *Handler) ByTarget(c echo.Context) error {
	targetID, err := uuid.Parse(c.Param("targetId"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid targetId")
	}
	scope, err := parseScope(c)
	if err != nil {
		return err
	}
	rng, err := parseTimeRange(c)
	if err != nil {
		return err
	}
	limit, cursor := parseLimitCursor(c)

	list, next, err := h.svc.QueryByTarget(c.Request().Context(), auth.GetActor(c), targetID, scope, rng, limit, cursor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse{Events: list, NextCursor: next})
}

// ByType returns events of a given type.
// GET /api/events/by-type/:type
func (h *Handler) ByType(c echo.Context) error {
	eventType := c.Param("type")
	if eventType == "" {
		return apperror.ErrBadRequest.WithMessage("type is required")
	}
	scope, err := parseScope(c)
	if err != nil {
		return err
	}
	rng, err := parseTimeRange(c)
	if err != nil {
		return err
	}
	limit, cursor := parseLimitCursor(c)

	list, next, err := h.svc.QueryByType(c.Request().Context(), auth.GetActor(c), eventType, scope, rng, limit, cursor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse{Events: list, NextCursor: next})
}

type listResponse struct {
	Events     []*Event `json:"events"`
	NextCursor *string  `json:"nextCursor,omitempty"`
}

package webhooks

import (
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

// sourcePattern restricts ingestion source names to a sane slug shape.
var sourcePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Handler accepts external facts and records them as events. Ingestion gives
// callers no write access to things or connections.
type Handler struct {
	events *events.Service
}

// NewHandler creates a new webhook handler.
func NewHandler(eventSvc *events.Service) *Handler {
	return &Handler{events: eventSvc}
}

// Ingest records one external event. Replays carrying the same
// Idempotency-Key return the original event with 200 instead of 201.
// POST /api/ingest/:source
func (h *Handler) Ingest(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	source := c.Param("source")
	if !sourcePattern.MatchString(source) {
		return apperror.NewValidation("source", "source must be a lowercase slug")
	}
	idempotencyKey := c.Request().Header.Get("Idempotency-Key")

	var req events.IngestRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	evt, err := h.events.IngestExternal(c.Request().Context(), actor, source, idempotencyKey, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, evt)
}

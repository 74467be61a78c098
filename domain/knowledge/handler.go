package knowledge

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

// Handler handles HTTP requests for the knowledge index.
type Handler struct {
	svc *Service
}

// NewHandler creates a new knowledge handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// AttachLabels merges labels into a thing's label record.
// POST /api/knowledge/labels
func (h *Handler) AttachLabels(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var req AttachLabelsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if req.SourceThingID == uuid.Nil {
		return apperror.NewValidation("sourceThingId", "sourceThingId is required")
	}

	rec, _, err := h.svc.AttachLabels(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// UpsertEmbedding stores or replaces one embedded chunk.
// PUT /api/knowledge/embeddings
func (h *Handler) UpsertEmbedding(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var req UpsertEmbeddingRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if req.SourceThingID == uuid.Nil {
		return apperror.NewValidation("sourceThingId", "sourceThingId is required")
	}

	rec, _, err := h.svc.UpsertEmbedding(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// Search runs cosine similarity over embedded chunks.
// POST /api/knowledge/search
func (h *Handler) Search(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	results, err := h.svc.Search(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"results": results})
}

// SearchByLabel finds labeled things.
// POST /api/knowledge/search-by-label
func (h *Handler) SearchByLabel(c echo.Context) error {
	actor := auth.GetActor(c)
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	var req SearchByLabelRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	records, err := h.svc.SearchByLabel(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"records": records})
}

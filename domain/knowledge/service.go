package knowledge

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/domain/things"
	"github.com/substrate-hq/substrate/internal/database"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
	"github.com/substrate-hq/substrate/pkg/logger"
)

// Service implements the knowledge index. Labels and embeddings attach to
// existing things and inherit their group scope.
type Service struct {
	db        bun.IDB
	repo      *Repository
	things    *things.Repository
	evaluator *authz.Evaluator
	recorder  *events.Repository
	log       *slog.Logger
}

// NewService creates a new knowledge service.
func NewService(
	db bun.IDB,
	repo *Repository,
	thingRepo *things.Repository,
	evaluator *authz.Evaluator,
	recorder *events.Repository,
	log *slog.Logger,
) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		things:    thingRepo,
		evaluator: evaluator,
		recorder:  recorder,
		log:       log.With(logger.Scope("knowledge.service")),
	}
}

// AttachLabels merges labels into a thing's label record, deduplicating and
// keeping the set sorted for stable reads.
func (s *Service) AttachLabels(ctx context.Context, actor *auth.Actor, req AttachLabelsRequest) (*Record, *events.Event, error) {
	if len(req.Labels) == 0 {
		return nil, nil, apperror.NewValidation("labels", "at least one label is required").WithOperation("knowledge.attachLabels")
	}
	for _, label := range req.Labels {
		if label == "" {
			return nil, nil, apperror.NewValidation("labels", "labels cannot be empty").WithOperation("knowledge.attachLabels")
		}
	}

	source, err := s.things.GetByID(ctx, req.SourceThingID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionUpdate, authz.Resource{
		Type:    "knowledge",
		GroupID: source.GroupID,
		ThingID: &source.ID,
	}); err != nil {
		return nil, nil, err
	}

	existing, err := s.repo.GetLabelRecord(ctx, req.SourceThingID)
	if err != nil {
		return nil, nil, err
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	var rec *Record
	if existing == nil {
		rec = &Record{
			GroupID:       source.GroupID,
			SourceThingID: req.SourceThingID,
			Labels:        mergeLabels(nil, req.Labels),
		}
		if err := s.repo.InsertLabelRecord(ctx, tx, rec); err != nil {
			return nil, nil, err
		}
	} else {
		rec = existing
		rec.Labels = mergeLabels(existing.Labels, req.Labels)
		if err := s.repo.UpdateLabels(ctx, tx, rec.ID, rec.Labels); err != nil {
			return nil, nil, err
		}
	}

	evt := &events.Event{
		Type:     events.TypeKnowledgeLabelsAttached,
		GroupID:  source.GroupID,
		ActorID:  actor.ID,
		TargetID: &source.ID,
		Metadata: map[string]any{"labels": req.Labels},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rec, evt, nil
}

// UpsertEmbedding stores or replaces one embedded chunk. All chunks for the
// same model within a group must share one dimension; the first write pins it.
func (s *Service) UpsertEmbedding(ctx context.Context, actor *auth.Actor, req UpsertEmbeddingRequest) (*Record, *events.Event, error) {
	if len(req.Embedding) == 0 {
		return nil, nil, apperror.NewValidation("embedding", "embedding is required").WithOperation("knowledge.upsertEmbedding")
	}
	if req.EmbeddingModel == "" {
		return nil, nil, apperror.NewValidation("embeddingModel", "embeddingModel is required").WithOperation("knowledge.upsertEmbedding")
	}
	if req.Text == "" {
		return nil, nil, apperror.NewValidation("text", "text is required").WithOperation("knowledge.upsertEmbedding")
	}

	source, err := s.things.GetByID(ctx, req.SourceThingID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionUpdate, authz.Resource{
		Type:    "knowledge",
		GroupID: source.GroupID,
		ThingID: &source.ID,
	}); err != nil {
		return nil, nil, err
	}

	dim := len(req.Embedding)
	rec := &Record{
		GroupID:        source.GroupID,
		SourceThingID:  req.SourceThingID,
		Kind:           KindChunk,
		Text:           req.Text,
		Embedding:      req.Embedding,
		EmbeddingModel: &req.EmbeddingModel,
		EmbeddingDim:   &dim,
		SourceField:    req.SourceField,
		ChunkIndex:     req.ChunkIndex,
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	// The dimension pin is checked under an advisory lock inside the
	// transaction, so two first writers for a model cannot race past it.
	if err := s.repo.LockModel(ctx, tx, source.GroupID, req.EmbeddingModel); err != nil {
		return nil, nil, err
	}
	pinned, err := s.repo.ModelDimension(ctx, tx, source.GroupID, req.EmbeddingModel)
	if err != nil {
		return nil, nil, err
	}
	if pinned > 0 && pinned != dim {
		return nil, nil, apperror.ErrValidation.
			WithMessage("embedding dimension does not match existing records for this model").
			WithDetails(map[string]any{
				"model":    req.EmbeddingModel,
				"expected": pinned,
				"got":      dim,
			}).
			WithOperation("knowledge.upsertEmbedding")
	}

	if err := s.repo.UpsertChunk(ctx, tx, rec); err != nil {
		return nil, nil, err
	}

	evt := &events.Event{
		Type:     events.TypeKnowledgeEmbeddingUpserted,
		GroupID:  source.GroupID,
		ActorID:  actor.ID,
		TargetID: &source.ID,
		Metadata: map[string]any{"model": req.EmbeddingModel, "dim": dim},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rec, evt, nil
}

// Search runs cosine similarity within a group scope. Missing group requires
// explicit platform scope, same as every other read.
func (s *Service) Search(ctx context.Context, actor *auth.Actor, req SearchRequest) ([]*SearchResult, error) {
	if err := s.checkScope(ctx, actor, req.GroupID, req.Scope); err != nil {
		return nil, err
	}
	if len(req.Embedding) == 0 {
		return nil, apperror.NewValidation("embedding", "embedding is required").WithOperation("knowledge.search")
	}
	if req.EmbeddingModel == "" {
		return nil, apperror.NewValidation("embeddingModel", "embeddingModel is required").WithOperation("knowledge.search")
	}
	return s.repo.Search(ctx, req)
}

// SearchByLabel finds labeled things within a group scope.
func (s *Service) SearchByLabel(ctx context.Context, actor *auth.Actor, req SearchByLabelRequest) ([]*Record, error) {
	if err := s.checkScope(ctx, actor, req.GroupID, req.Scope); err != nil {
		return nil, err
	}
	if req.Label == "" {
		return nil, apperror.NewValidation("label", "label is required").WithOperation("knowledge.searchByLabel")
	}
	return s.repo.SearchByLabel(ctx, req)
}

func (s *Service) checkScope(ctx context.Context, actor *auth.Actor, groupID *uuid.UUID, scope string) error {
	if groupID == nil {
		if scope != "platform" {
			return apperror.NewValidation("groupId", "groupId is required")
		}
		platform, err := s.evaluator.HasPlatformScope(ctx, actor)
		if err != nil {
			return err
		}
		if !platform {
			return apperror.NewForbidden("read", "knowledge")
		}
		return nil
	}
	return s.evaluator.CanPerform(ctx, actor, authz.ActionRead, authz.Resource{
		Type:    "knowledge",
		GroupID: groupID,
	})
}

// mergeLabels unions two label sets, dropping duplicates and sorting.
func mergeLabels(existing, added []string) []string {
	set := make(map[string]bool, len(existing)+len(added))
	for _, l := range existing {
		set[l] = true
	}
	for _, l := range added {
		set[l] = true
	}
	merged := make([]string, 0, len(set))
	for l := range set {
		merged = append(merged, l)
	}
	sort.Strings(merged)
	return merged
}

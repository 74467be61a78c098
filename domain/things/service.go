package things

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/domain/groups"
	"github.com/substrate-hq/substrate/domain/typeregistry"
	"github.com/substrate-hq/substrate/internal/database"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
	"github.com/substrate-hq/substrate/pkg/logger"
)

// Service implements thing lifecycle. Every mutation runs authorization,
// validation, the write, and the event append in one transaction.
type Service struct {
	db        bun.IDB
	repo      *Repository
	groups    *groups.Service
	registry  *typeregistry.Registry
	evaluator *authz.Evaluator
	recorder  *events.Repository
	log       *slog.Logger
}

// NewService creates a new thing service.
func NewService(
	db bun.IDB,
	repo *Repository,
	groupSvc *groups.Service,
	registry *typeregistry.Registry,
	evaluator *authz.Evaluator,
	recorder *events.Repository,
	log *slog.Logger,
) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		groups:    groupSvc,
		registry:  registry,
		evaluator: evaluator,
		recorder:  recorder,
		log:       log.With(logger.Scope("things.service")),
	}
}

// Create stores a new thing. The owning group must be active and under its
// maxThings quota; registered types validate the attribute bag.
func (s *Service) Create(ctx context.Context, actor *auth.Actor, req CreateThingRequest) (*Thing, *events.Event, error) {
	if req.Type == "" {
		return nil, nil, apperror.NewValidation("type", "type is required").WithOperation("thing.create")
	}
	if req.Name == "" {
		return nil, nil, apperror.NewValidation("name", "name is required").WithOperation("thing.create")
	}
	status := req.Status
	if status == "" {
		status = StatusDraft
	}
	if !ValidStatus(status) {
		return nil, nil, apperror.NewValidation("status", "unknown status").WithOperation("thing.create")
	}

	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionCreate, authz.Resource{
		Type:    "thing",
		GroupID: req.GroupID,
	}); err != nil {
		return nil, nil, err
	}

	if req.GroupID != nil {
		if _, err := s.groups.RequireActive(ctx, *req.GroupID); err != nil {
			return nil, nil, err
		}
		if err := s.checkQuota(ctx, *req.GroupID); err != nil {
			return nil, nil, err
		}
	} else {
		// Platform-global things are platform-owner territory.
		platform, err := s.evaluator.HasPlatformScope(ctx, actor)
		if err != nil {
			return nil, nil, err
		}
		if !platform {
			return nil, nil, apperror.NewForbidden("create", "thing")
		}
	}

	if err := s.registry.ValidateAttributes(ctx, req.Type, typeregistry.DimensionThing, req.Attributes); err != nil {
		return nil, nil, err
	}

	thing := &Thing{
		GroupID:    req.GroupID,
		Type:       req.Type,
		Name:       req.Name,
		Attributes: req.Attributes,
		Status:     status,
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if err := s.repo.Insert(ctx, tx, thing); err != nil {
		return nil, nil, err
	}

	evt := &events.Event{
		Type:     events.TypeThingCreated,
		GroupID:  thing.GroupID,
		ActorID:  actor.ID,
		TargetID: &thing.ID,
		Metadata: map[string]any{"type": thing.Type, "name": thing.Name},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}

	s.log.Info("thing created",
		slog.String("id", thing.ID.String()),
		slog.String("type", thing.Type),
	)
	return thing, evt, nil
}

// checkQuota admits a create against the group's thing quota, preferring the
// materialized usage row over a live count while the row is fresh.
func (s *Service) checkQuota(ctx context.Context, groupID uuid.UUID) error {
	quota, err := s.groups.QuotaFor(ctx, groupID, groups.SettingMaxThings)
	if err != nil {
		return err
	}
	if quota <= 0 {
		return nil
	}

	count := -1
	if usage, err := s.groups.Usage(ctx, groupID); err == nil && usage != nil && usage.Fresh(groups.UsageMaxAge) {
		count = usage.ThingCount
	}
	if count < 0 {
		count, err = s.repo.CountByGroup(ctx, groupID)
		if err != nil {
			return err
		}
	}

	if count >= quota {
		return apperror.ErrRateLimited.
			WithMessage("group thing quota exceeded").
			WithDetails(map[string]any{"groupId": groupID.String(), "quota": quota}).
			WithOperation("thing.create")
	}
	return nil
}

// Get returns a thing after a read check against its owning group.
func (s *Service) Get(ctx context.Context, actor *auth.Actor, id uuid.UUID) (*Thing, error) {
	thing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionRead, authz.Resource{
		Type:    "thing",
		GroupID: thing.GroupID,
		ThingID: &thing.ID,
	}); err != nil {
		return nil, err
	}
	return thing, nil
}

// List returns things within a group scope. A missing group requires
// explicit platform scope; cross-tenant reads never happen implicitly.
func (s *Service) List(ctx context.Context, actor *auth.Actor, params ListParams) ([]*Thing, *string, error) {
	if params.GroupID == nil {
		if !params.PlatformScope {
			return nil, nil, apperror.NewValidation("groupId", "groupId is required").WithOperation("thing.list")
		}
		platform, err := s.evaluator.HasPlatformScope(ctx, actor)
		if err != nil {
			return nil, nil, err
		}
		if !platform {
			return nil, nil, apperror.NewForbidden("read", "thing")
		}
	} else {
		if err := s.evaluator.CanPerform(ctx, actor, authz.ActionRead, authz.Resource{
			Type:    "thing",
			GroupID: params.GroupID,
		}); err != nil {
			return nil, nil, err
		}
	}
	return s.repo.List(ctx, params)
}

// Update patches a thing. Attributes shallow-merge per top-level key, null
// clears a key, and groupId is immutable.
func (s *Service) Update(ctx context.Context, actor *auth.Actor, id uuid.UUID, req UpdateThingRequest) (*Thing, *events.Event, error) {
	if req.GroupID != nil {
		return nil, nil, apperror.NewValidation("groupId", "groupId cannot be changed").WithOperation("thing.update")
	}

	thing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionUpdate, authz.Resource{
		Type:    "thing",
		GroupID: thing.GroupID,
		ThingID: &thing.ID,
	}); err != nil {
		return nil, nil, err
	}

	changed := make([]string, 0, 2)
	if req.Name != nil && *req.Name != thing.Name {
		if *req.Name == "" {
			return nil, nil, apperror.NewValidation("name", "name cannot be empty").WithOperation("thing.update")
		}
		thing.Name = *req.Name
		changed = append(changed, "name")
	}
	if req.Attributes != nil {
		thing.Attributes = mergeAttributes(thing.Attributes, req.Attributes)
		changed = append(changed, "attributes")
	}
	if len(changed) == 0 {
		return thing, nil, nil
	}

	if err := s.registry.ValidateAttributes(ctx, thing.Type, typeregistry.DimensionThing, thing.Attributes); err != nil {
		return nil, nil, err
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if err := s.repo.Update(ctx, tx, thing); err != nil {
		return nil, nil, err
	}

	evt := &events.Event{
		Type:     events.TypeThingUpdated,
		GroupID:  thing.GroupID,
		ActorID:  actor.ID,
		TargetID: &thing.ID,
		Metadata: map[string]any{"changed": changed},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	return thing, evt, nil
}

// SetStatus changes a thing's status. Archiving keeps the row addressable.
func (s *Service) SetStatus(ctx context.Context, actor *auth.Actor, id uuid.UUID, status string) (*Thing, *events.Event, error) {
	if !ValidStatus(status) {
		return nil, nil, apperror.NewValidation("status", "unknown status").WithOperation("thing.setStatus")
	}

	thing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionUpdate, authz.Resource{
		Type:    "thing",
		GroupID: thing.GroupID,
		ThingID: &thing.ID,
	}); err != nil {
		return nil, nil, err
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if err := s.repo.SetStatus(ctx, tx, id, status); err != nil {
		return nil, nil, err
	}

	evt := &events.Event{
		Type:     events.TypeThingStatusChanged,
		GroupID:  thing.GroupID,
		ActorID:  actor.ID,
		TargetID: &thing.ID,
		Metadata: map[string]any{"from": thing.Status, "to": status},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}

	thing.Status = status
	return thing, evt, nil
}

// mergeAttributes applies a shallow patch: each top-level key in patch
// replaces the existing key, and explicit nulls clear keys.
func mergeAttributes(existing, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(patch))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

package groups

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/internal/database"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
	"github.com/substrate-hq/substrate/pkg/logger"
)

// Service implements group lifecycle and settings resolution. Every mutation
// runs authorization, the write, and the event append in one transaction.
type Service struct {
	db        bun.IDB
	repo      *Repository
	evaluator *authz.Evaluator
	recorder  *events.Repository
	log       *slog.Logger
}

// NewService creates a new group service.
func NewService(db bun.IDB, repo *Repository, evaluator *authz.Evaluator, recorder *events.Repository, log *slog.Logger) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		evaluator: evaluator,
		recorder:  recorder,
		log:       log.With(logger.Scope("groups.service")),
	}
}

// Create registers a new group. Root groups require platform scope; child
// groups require admin rights on the parent.
func (s *Service) Create(ctx context.Context, actor *auth.Actor, req CreateGroupRequest) (*Group, *events.Event, error) {
	if req.Slug == "" {
		return nil, nil, apperror.NewValidation("slug", "slug is required").WithOperation("group.create")
	}
	if req.Name == "" {
		return nil, nil, apperror.NewValidation("name", "name is required").WithOperation("group.create")
	}

	if req.ParentGroupID == nil {
		platform, err := s.evaluator.HasPlatformScope(ctx, actor)
		if err != nil {
			return nil, nil, err
		}
		if !platform {
			return nil, nil, apperror.NewForbidden("create", "group")
		}
	} else {
		if _, err := s.repo.GetByID(ctx, *req.ParentGroupID); err != nil {
			return nil, nil, err
		}
		if err := s.evaluator.CanPerform(ctx, actor, authz.ActionAdmin, authz.Resource{
			Type:    "group",
			GroupID: req.ParentGroupID,
		}); err != nil {
			return nil, nil, err
		}
	}

	group := &Group{
		Slug:          req.Slug,
		Name:          req.Name,
		Type:          req.Type,
		ParentGroupID: req.ParentGroupID,
		Settings:      req.Settings,
		Status:        StatusActive,
	}
	if group.Type == "" {
		group.Type = "organization"
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if err := s.repo.Insert(ctx, tx, group); err != nil {
		return nil, nil, err
	}

	evt := &events.Event{
		Type:     events.TypeGroupCreated,
		GroupID:  &group.ID,
		ActorID:  actor.ID,
		TargetID: &group.ID,
		Metadata: map[string]any{"slug": group.Slug},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}

	s.log.Info("group created",
		slog.String("id", group.ID.String()),
		slog.String("slug", group.Slug),
	)
	return group, evt, nil
}

// Get returns a group by ID after a read check.
func (s *Service) Get(ctx context.Context, actor *auth.Actor, id uuid.UUID) (*Group, error) {
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionRead, authz.Resource{
		Type:    "group",
		GroupID: &id,
	}); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// GetBySlug returns a group by slug after a read check.
func (s *Service) GetBySlug(ctx context.Context, actor *auth.Actor, slug string) (*Group, error) {
	group, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionRead, authz.Resource{
		Type:    "group",
		GroupID: &group.ID,
	}); err != nil {
		return nil, err
	}
	return group, nil
}

// List returns child groups of a parent, or root groups when parentID is nil.
// Listing roots requires platform scope.
func (s *Service) List(ctx context.Context, actor *auth.Actor, parentID *uuid.UUID, includeArchived bool) ([]*Group, error) {
	if parentID == nil {
		platform, err := s.evaluator.HasPlatformScope(ctx, actor)
		if err != nil {
			return nil, err
		}
		if !platform {
			return nil, apperror.NewForbidden("read", "group")
		}
	} else {
		if err := s.evaluator.CanPerform(ctx, actor, authz.ActionRead, authz.Resource{
			Type:    "group",
			GroupID: parentID,
		}); err != nil {
			return nil, err
		}
	}
	return s.repo.List(ctx, parentID, includeArchived)
}

// SetStatus changes a group's lifecycle status. The new status is visible to
// all dependent checks as soon as this returns.
func (s *Service) SetStatus(ctx context.Context, actor *auth.Actor, id uuid.UUID, status string) (*Group, *events.Event, error) {
	if !ValidStatus(status) {
		return nil, nil, apperror.NewValidation("status", "unknown status").WithOperation("group.setStatus")
	}
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionAdmin, authz.Resource{
		Type:    "group",
		GroupID: &id,
	}); err != nil {
		return nil, nil, err
	}
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
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
		Type:     events.TypeGroupStatusChanged,
		GroupID:  &id,
		ActorID:  actor.ID,
		TargetID: &id,
		Metadata: map[string]any{"from": group.Status, "to": status},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}

	group.Status = status
	return group, evt, nil
}

// SetParent moves a group under a new parent. The move is rejected when it
// would make the group its own ancestor.
func (s *Service) SetParent(ctx context.Context, actor *auth.Actor, id uuid.UUID, parentID *uuid.UUID) (*Group, *events.Event, error) {
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionAdmin, authz.Resource{
		Type:    "group",
		GroupID: &id,
	}); err != nil {
		return nil, nil, err
	}
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if parentID != nil {
		if *parentID == id {
			return nil, nil, apperror.ErrCycleDetected.
				WithDetails(map[string]any{"groupId": id.String()})
		}
		if err := s.evaluator.CanPerform(ctx, actor, authz.ActionAdmin, authz.Resource{
			Type:    "group",
			GroupID: parentID,
		}); err != nil {
			return nil, nil, err
		}
		chain, err := s.repo.AncestorChain(ctx, *parentID)
		if err != nil {
			return nil, nil, err
		}
		for _, ancestor := range chain {
			if ancestor.ID == id {
				return nil, nil, apperror.ErrCycleDetected.
					WithDetails(map[string]any{"groupId": id.String(), "parentGroupId": parentID.String()})
			}
		}
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if err := s.repo.SetParent(ctx, tx, id, parentID); err != nil {
		return nil, nil, err
	}

	evt := &events.Event{
		Type:     events.TypeGroupParentChanged,
		GroupID:  &id,
		ActorID:  actor.ID,
		TargetID: &id,
		Metadata: map[string]any{"parentGroupId": parentID},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}

	group.ParentGroupID = parentID
	return group, evt, nil
}

// EffectiveSettings merges the group's ancestor chain root-first, so the
// closest ancestor wins per top-level key and the group itself wins overall.
func (s *Service) EffectiveSettings(ctx context.Context, actor *auth.Actor, id uuid.UUID) (map[string]any, error) {
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionRead, authz.Resource{
		Type:    "group",
		GroupID: &id,
	}); err != nil {
		return nil, err
	}
	return s.resolveEffectiveSettings(ctx, id)
}

// resolveEffectiveSettings is the unauthorized variant used internally by
// quota checks that already verified access.
func (s *Service) resolveEffectiveSettings(ctx context.Context, id uuid.UUID) (map[string]any, error) {
	chain, err := s.repo.AncestorChain(ctx, id)
	if err != nil {
		return nil, err
	}
	maps := make([]map[string]any, 0, len(chain))
	for _, g := range chain {
		maps = append(maps, g.Settings)
	}
	return MergeSettings(maps), nil
}

// QuotaFor returns the effective integer quota for a settings key, 0 meaning
// unlimited. Used by the thing and connection services for admission checks.
func (s *Service) QuotaFor(ctx context.Context, groupID uuid.UUID, key string) (int, error) {
	settings, err := s.resolveEffectiveSettings(ctx, groupID)
	if err != nil {
		return 0, err
	}
	return QuotaFromSettings(settings, key), nil
}

// Usage returns the materialized usage counters for a group, nil when no
// refresh has run yet. Callers decide staleness with GroupUsage.Fresh.
func (s *Service) Usage(ctx context.Context, groupID uuid.UUID) (*GroupUsage, error) {
	return s.repo.GetUsage(ctx, groupID)
}

// RequireActive returns the group and fails with a validation error when its
// status does not admit new writes.
func (s *Service) RequireActive(ctx context.Context, groupID uuid.UUID) (*Group, error) {
	group, err := s.repo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.Status != StatusActive {
		return nil, apperror.ErrValidation.
			WithMessage("group is not active").
			WithDetails(map[string]any{"groupId": groupID.String(), "status": group.Status})
	}
	return group, nil
}

package authz

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
	"github.com/substrate-hq/substrate/pkg/logger"
)

// Evaluator decides whether an actor may perform an action on a resource.
// Every path that does not positively grant access denies it.
type Evaluator struct {
	repo *Repository
	log  *slog.Logger
}

// NewEvaluator creates a new authorization evaluator.
func NewEvaluator(repo *Repository, log *slog.Logger) *Evaluator {
	return &Evaluator{
		repo: repo,
		log:  log.With(logger.Scope("authz")),
	}
}

// CanPerform returns nil when the actor may perform the action, or a
// forbidden error otherwise. Resolution order: platform_owner membership,
// then the strongest role on the resource's group or any of its ancestors,
// then an explicit assigned_to connection to the resource.
func (e *Evaluator) CanPerform(ctx context.Context, actor *auth.Actor, action Action, resource Resource) error {
	if actor == nil {
		return apperror.ErrUnauthorized
	}

	platform, err := e.repo.HasPlatformRole(ctx, actor.ID, RolePlatformOwner)
	if err != nil {
		return err
	}
	if platform {
		return nil
	}

	if resource.GroupID != nil {
		groupIDs, err := e.repo.ancestorIDs(ctx, *resource.GroupID)
		if err != nil {
			return err
		}
		roles, err := e.repo.RolesOnGroups(ctx, actor.ID, groupIDs)
		if err != nil {
			return err
		}
		for _, role := range roles {
			if roleAllows(role, action) {
				return nil
			}
		}
	}

	if resource.ThingID != nil && assignmentAllows(action) {
		assigned, err := e.repo.hasActiveAssignment(ctx, actor.ID, *resource.ThingID)
		if err != nil {
			return err
		}
		if assigned {
			return nil
		}
	}

	e.log.Debug("access denied",
		slog.String("actor_id", actor.ID.String()),
		slog.String("action", string(action)),
		slog.String("resource_type", resource.Type),
	)
	return apperror.NewForbidden(string(action), resource.Type)
}

// HasPlatformScope reports whether the actor is a platform owner. The query
// router uses this to allow explicit platform-wide reads.
func (e *Evaluator) HasPlatformScope(ctx context.Context, actor *auth.Actor) (bool, error) {
	if actor == nil {
		return false, nil
	}
	return e.repo.HasPlatformRole(ctx, actor.ID, RolePlatformOwner)
}

// Service manages membership grants. Only org owners of the target group (or
// platform owners) may grant or revoke.
type Service struct {
	repo      *Repository
	evaluator *Evaluator
	log       *slog.Logger
}

// NewService creates a new membership service.
func NewService(repo *Repository, evaluator *Evaluator, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		evaluator: evaluator,
		log:       log.With(logger.Scope("authz.service")),
	}
}

// Grant creates a membership after verifying the caller administers the
// target group. Platform-scope grants require platform ownership.
func (s *Service) Grant(ctx context.Context, actor *auth.Actor, req GrantRequest) (*Membership, error) {
	if !ValidRole(req.Role) {
		return nil, apperror.NewValidation("role", "unknown role").WithOperation("membership.grant")
	}
	if req.GroupID == nil || req.Role == RolePlatformOwner {
		platform, err := s.evaluator.HasPlatformScope(ctx, actor)
		if err != nil {
			return nil, err
		}
		if !platform {
			return nil, apperror.NewForbidden("admin", "membership")
		}
	} else {
		if err := s.evaluator.CanPerform(ctx, actor, ActionAdmin, Resource{Type: "group", GroupID: req.GroupID}); err != nil {
			return nil, err
		}
	}

	m := &Membership{
		ActorID: req.ActorID,
		GroupID: req.GroupID,
		Role:    req.Role,
	}
	if err := s.repo.Grant(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Revoke removes a membership after the same admin check as Grant.
func (s *Service) Revoke(ctx context.Context, actor *auth.Actor, id uuid.UUID) error {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if m.GroupID == nil {
		platform, err := s.evaluator.HasPlatformScope(ctx, actor)
		if err != nil {
			return err
		}
		if !platform {
			return apperror.NewForbidden("admin", "membership")
		}
	} else {
		if err := s.evaluator.CanPerform(ctx, actor, ActionAdmin, Resource{Type: "group", GroupID: m.GroupID}); err != nil {
			return err
		}
	}
	return s.repo.Revoke(ctx, id)
}

// ListByActor returns the memberships an actor holds. Actors may always list
// their own; listing another actor's requires platform scope.
func (s *Service) ListByActor(ctx context.Context, actor *auth.Actor, actorID uuid.UUID) ([]*Membership, error) {
	if actor.ID != actorID {
		platform, err := s.evaluator.HasPlatformScope(ctx, actor)
		if err != nil {
			return nil, err
		}
		if !platform {
			return nil, apperror.NewForbidden("read", "membership")
		}
	}
	return s.repo.ListByActor(ctx, actorID)
}

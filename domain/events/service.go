package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
	"github.com/substrate-hq/substrate/pkg/logger"
)

// PermissionChecker is the slice of the authorization evaluator event reads
// need: group read checks and the platform-scope gate.
type PermissionChecker interface {
	CanPerform(ctx context.Context, actor *auth.Actor, action authz.Action, resource authz.Resource) error
	HasPlatformScope(ctx context.Context, actor *auth.Actor) (bool, error)
}

// QueryScope carries the tenant scope of an event query. A nil GroupID is
// only valid with Platform set, and only for actors holding platform scope.
type QueryScope struct {
	GroupID  *uuid.UUID
	Platform bool
}

// Service exposes event log queries and external ingestion. Internal appends
// happen through the Repository inside other services' transactions, never
// through a free-standing public write.
type Service struct {
	repo  *Repository
	perms PermissionChecker
	log   *slog.Logger
}

// NewService creates a new event service.
func NewService(repo *Repository, perms PermissionChecker, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		perms: perms,
		log:   log.With(logger.Scope("events.service")),
	}
}

// QueryByActor returns events produced by an actor within a time range.
func (s *Service) QueryByActor(ctx context.Context, actor *auth.Actor, actorID uuid.UUID, scope QueryScope, rng TimeRange, limit int, cursor *string) ([]*Event, *string, error) {
	if err := s.checkScope(ctx, actor, scope); err != nil {
		return nil, nil, err
	}
	return s.repo.Query(ctx, QueryParams{GroupID: scope.GroupID, ActorID: &actorID, Range: rng, Limit: limit, Cursor: cursor})
}

// QueryByTarget returns events affecting a target within a time range.
func (s *Service) QueryByTarget(ctx context.Context, actor *auth.Actor, targetID uuid.UUID, scope QueryScope, rng TimeRange, limit int, cursor *string) ([]*Event, *string, error) {
	if err := s.checkScope(ctx, actor, scope); err != nil {
		return nil, nil, err
	}
	return s.repo.Query(ctx, QueryParams{GroupID: scope.GroupID, TargetID: &targetID, Range: rng, Limit: limit, Cursor: cursor})
}

// QueryByType returns events of a given type within a time range.
func (s *Service) QueryByType(ctx context.Context, actor *auth.Actor, eventType string, scope QueryScope, rng TimeRange, limit int, cursor *string) ([]*Event, *string, error) {
	if err := s.checkScope(ctx, actor, scope); err != nil {
		return nil, nil, err
	}
	return s.repo.Query(ctx, QueryParams{GroupID: scope.GroupID, Type: &eventType, Range: rng, Limit: limit, Cursor: cursor})
}

// checkScope enforces the tenant-first rule on event reads: a group scope is
// mandatory, and the cross-tenant view is reserved for platform-scope actors
// who ask for it explicitly.
func (s *Service) checkScope(ctx context.Context, actor *auth.Actor, scope QueryScope) error {
	if scope.GroupID == nil {
		if !scope.Platform {
			return apperror.NewValidation("groupId", "groupId is required")
		}
		platform, err := s.perms.HasPlatformScope(ctx, actor)
		if err != nil {
			return err
		}
		if !platform {
			return apperror.NewForbidden("read", "event")
		}
		return nil
	}
	return s.perms.CanPerform(ctx, actor, authz.ActionRead, authz.Resource{
		Type:    "event",
		GroupID: scope.GroupID,
	})
}

// IngestExternal records an externally-originated fact without granting the
// caller entity-write access. Replays with the same (source, idempotencyKey)
// return the original event; exactly one row ever exists.
func (s *Service) IngestExternal(ctx context.Context, actor *auth.Actor, source, idempotencyKey string, req IngestRequest) (*Event, error) {
	if source == "" {
		return nil, apperror.NewValidation("source", "source is required").WithOperation("event.ingest")
	}
	if idempotencyKey == "" {
		return nil, apperror.NewValidation("idempotencyKey", "Idempotency-Key header is required").WithOperation("event.ingest")
	}
	if req.Type == "" {
		return nil, apperror.NewValidation("type", "event type is required").WithOperation("event.ingest")
	}

	evt := &Event{
		Type:           fmt.Sprintf("external.%s.%s", source, req.Type),
		GroupID:        req.GroupID,
		ActorID:        actor.ID,
		TargetID:       req.TargetID,
		Source:         &source,
		IdempotencyKey: &idempotencyKey,
		Metadata:       req.Payload,
	}

	stored, created, err := s.repo.AppendIdempotent(ctx, evt)
	if err != nil {
		return nil, err
	}
	if !created {
		s.log.Debug("duplicate external event ignored",
			slog.String("source", source),
			slog.String("idempotency_key", idempotencyKey),
		)
	}
	return stored, nil
}

package connections

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/domain/groups"
	"github.com/substrate-hq/substrate/domain/things"
	"github.com/substrate-hq/substrate/domain/typeregistry"
	"github.com/substrate-hq/substrate/internal/database"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
	"github.com/substrate-hq/substrate/pkg/logger"
)

// Service implements the relationship graph. Every mutation runs
// authorization, the write, and the event append in one transaction, and
// returns the appended event alongside the entity.
type Service struct {
	db        bun.IDB
	repo      *Repository
	things    *things.Repository
	groups    *groups.Service
	registry  *typeregistry.Registry
	evaluator *authz.Evaluator
	recorder  *events.Repository
	log       *slog.Logger
}

// NewService creates a new connection service.
func NewService(
	db bun.IDB,
	repo *Repository,
	thingRepo *things.Repository,
	groupSvc *groups.Service,
	registry *typeregistry.Registry,
	evaluator *authz.Evaluator,
	recorder *events.Repository,
	log *slog.Logger,
) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		things:    thingRepo,
		groups:    groupSvc,
		registry:  registry,
		evaluator: evaluator,
		recorder:  recorder,
		log:       log.With(logger.Scope("connections.service")),
	}
}

// Connect creates an edge between two existing things. Both endpoints must
// belong to the same group unless the actor holds platform scope. Ordered
// connects append at the end of the family.
func (s *Service) Connect(ctx context.Context, actor *auth.Actor, req ConnectRequest) (*Connection, *events.Event, error) {
	if req.Type == "" {
		return nil, nil, apperror.NewValidation("type", "type is required").WithOperation("connection.connect")
	}
	if req.FromThingID == req.ToThingID {
		return nil, nil, apperror.NewValidation("toThingId", "cannot connect a thing to itself").WithOperation("connection.connect")
	}

	from, err := s.things.GetByID(ctx, req.FromThingID)
	if err != nil {
		return nil, nil, err
	}
	to, err := s.things.GetByID(ctx, req.ToThingID)
	if err != nil {
		return nil, nil, err
	}

	if !sameGroup(from.GroupID, to.GroupID) {
		platform, err := s.evaluator.HasPlatformScope(ctx, actor)
		if err != nil {
			return nil, nil, err
		}
		if !platform {
			return nil, nil, apperror.ErrValidation.
				WithMessage("endpoints belong to different groups").
				WithDetails(map[string]any{
					"fromThingId": req.FromThingID.String(),
					"toThingId":   req.ToThingID.String(),
				}).
				WithOperation("connection.connect")
		}
	}

	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionCreate, authz.Resource{
		Type:    "connection",
		GroupID: from.GroupID,
	}); err != nil {
		return nil, nil, err
	}

	if from.GroupID != nil {
		if err := s.checkQuota(ctx, *from.GroupID); err != nil {
			return nil, nil, err
		}
	}

	if err := s.registry.ValidateAttributes(ctx, req.Type, typeregistry.DimensionConnection, req.Metadata); err != nil {
		return nil, nil, err
	}

	conn := &Connection{
		GroupID:     from.GroupID,
		FromThingID: req.FromThingID,
		ToThingID:   req.ToThingID,
		Type:        req.Type,
		Metadata:    req.Metadata,
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if req.Ordered {
		if _, err := s.repo.GetOrdering(ctx, tx, req.FromThingID, req.Type); err != nil {
			return nil, nil, err
		}
		seq, err := s.repo.NextSeq(ctx, tx, req.FromThingID, req.Type)
		if err != nil {
			return nil, nil, err
		}
		conn.Seq = &seq
	}

	if err := s.repo.Insert(ctx, tx, conn); err != nil {
		return nil, nil, err
	}

	evt := &events.Event{
		Type:     events.TypeConnectionCreated,
		GroupID:  conn.GroupID,
		ActorID:  actor.ID,
		TargetID: &conn.ID,
		Metadata: map[string]any{
			"type":        conn.Type,
			"fromThingId": conn.FromThingID.String(),
			"toThingId":   conn.ToThingID.String(),
		},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}

	s.log.Info("connection created",
		slog.String("id", conn.ID.String()),
		slog.String("type", conn.Type),
	)
	return conn, evt, nil
}

// checkQuota admits a connect against the group's connection quota. It reads
// the materialized usage row when fresh and falls back to a live count when
// the row is stale or missing.
func (s *Service) checkQuota(ctx context.Context, groupID uuid.UUID) error {
	quota, err := s.groups.QuotaFor(ctx, groupID, groups.SettingMaxConnections)
	if err != nil {
		return err
	}
	if quota <= 0 {
		return nil
	}

	count := -1
	if usage, err := s.groups.Usage(ctx, groupID); err == nil && usage != nil && usage.Fresh(groups.UsageMaxAge) {
		count = usage.ConnectionCount
	}
	if count < 0 {
		count, err = s.repo.CountByGroup(ctx, groupID)
		if err != nil {
			return err
		}
	}

	if count >= quota {
		return apperror.ErrRateLimited.
			WithMessage("group connection quota exceeded").
			WithDetails(map[string]any{"groupId": groupID.String(), "quota": quota}).
			WithOperation("connection.connect")
	}
	return nil
}

// Disconnect closes a connection's validity window at now. History stays
// queryable; nothing is deleted.
func (s *Service) Disconnect(ctx context.Context, actor *auth.Actor, id uuid.UUID) (*Connection, *events.Event, error) {
	conn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionUpdate, authz.Resource{
		Type:    "connection",
		GroupID: conn.GroupID,
	}); err != nil {
		return nil, nil, err
	}

	now := time.Now()

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	// Ordered members are compacted on the way out: lock the family first so
	// concurrent reorders and connects serialize behind this transaction.
	var ord *Ordering
	if conn.Seq != nil {
		ord, err = s.repo.GetOrdering(ctx, tx, conn.FromThingID, conn.Type)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := s.repo.Disconnect(ctx, tx, id, now); err != nil {
		return nil, nil, err
	}

	if ord != nil {
		if err := s.compactFamily(ctx, tx, conn.FromThingID, conn.Type, ord.Version); err != nil {
			return nil, nil, err
		}
	}

	evt := &events.Event{
		Type:     events.TypeConnectionDisconnected,
		GroupID:  conn.GroupID,
		ActorID:  actor.ID,
		TargetID: &conn.ID,
		Metadata: map[string]any{"type": conn.Type},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}

	conn.ValidTo = &now
	return conn, evt, nil
}

// compactFamily rewrites the surviving ordered members of (fromThingID, type)
// to consecutive sequence numbers starting at zero and bumps the ordering
// version. Callers must hold the ordering row lock.
func (s *Service) compactFamily(ctx context.Context, tx bun.IDB, fromThingID uuid.UUID, connType string, version int) error {
	remaining, err := s.repo.ActiveOrdered(ctx, tx, fromThingID, connType)
	if err != nil {
		return err
	}
	for seq, member := range remaining {
		if member.Seq != nil && *member.Seq == seq {
			continue
		}
		if err := s.repo.SetSeq(ctx, tx, member.ID, seq); err != nil {
			return err
		}
	}
	return s.repo.BumpOrderingVersion(ctx, tx, fromThingID, connType, version)
}

// List returns connections anchored at a thing. When the anchor is archived
// the result flags it: connections from archived things stay valid.
func (s *Service) List(ctx context.Context, actor *auth.Actor, params ListParams) (*ListResult, error) {
	anchor, err := s.things.GetByID(ctx, params.ThingID)
	if err != nil {
		return nil, err
	}
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionRead, authz.Resource{
		Type:    "connection",
		GroupID: anchor.GroupID,
		ThingID: &anchor.ID,
	}); err != nil {
		return nil, err
	}

	list, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Connections:    list,
		ParentArchived: anchor.Status == things.StatusArchived,
	}, nil
}

// Reorder rewrites the sequence of an ordered family to newOrder. The new
// order must be an exact permutation of the family's active members, and
// expectedVersion must match the stored ordering version.
func (s *Service) Reorder(ctx context.Context, actor *auth.Actor, req ReorderRequest) (*Ordering, *events.Event, error) {
	if req.Type == "" {
		return nil, nil, apperror.NewValidation("type", "type is required").WithOperation("connection.reorder")
	}

	anchor, err := s.things.GetByID(ctx, req.FromThingID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.evaluator.CanPerform(ctx, actor, authz.ActionUpdate, authz.Resource{
		Type:    "connection",
		GroupID: anchor.GroupID,
		ThingID: &anchor.ID,
	}); err != nil {
		return nil, nil, err
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	family, err := s.repo.ActiveOrdered(ctx, tx, req.FromThingID, req.Type)
	if err != nil {
		return nil, nil, err
	}
	if err := validatePermutation(family, req.NewOrder); err != nil {
		return nil, nil, err
	}

	ord, err := s.repo.GetOrdering(ctx, tx, req.FromThingID, req.Type)
	if err != nil {
		return nil, nil, err
	}
	if ord.Version != req.ExpectedVersion {
		return nil, nil, apperror.ErrConflict.
			WithMessage("ordering version changed, retry with the current version").
			WithDetails(map[string]any{
				"expectedVersion": req.ExpectedVersion,
				"currentVersion":  ord.Version,
			}).
			WithOperation("connection.reorder")
	}

	for seq, id := range req.NewOrder {
		if err := s.repo.SetSeq(ctx, tx, id, seq); err != nil {
			return nil, nil, err
		}
	}
	if err := s.repo.BumpOrderingVersion(ctx, tx, req.FromThingID, req.Type, req.ExpectedVersion); err != nil {
		return nil, nil, err
	}

	evt := &events.Event{
		Type:     events.TypeConnectionReordered,
		GroupID:  anchor.GroupID,
		ActorID:  actor.ID,
		TargetID: &req.FromThingID,
		Metadata: map[string]any{"type": req.Type, "size": len(req.NewOrder)},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}

	ord.Version++
	return ord, evt, nil
}

// validatePermutation checks that newOrder contains exactly the IDs of the
// active ordered family: no gaps, no duplicates, no foreign members.
func validatePermutation(family []*Connection, newOrder []uuid.UUID) error {
	if len(newOrder) != len(family) {
		return apperror.ErrInvalidSequence.
			WithMessage("new order must list every active ordered connection exactly once").
			WithDetails(map[string]any{"expected": len(family), "got": len(newOrder)})
	}

	members := make(map[uuid.UUID]bool, len(family))
	for _, conn := range family {
		members[conn.ID] = true
	}

	seen := make(map[uuid.UUID]bool, len(newOrder))
	for _, id := range newOrder {
		if seen[id] {
			return apperror.ErrInvalidSequence.
				WithMessage("duplicate connection in new order").
				WithDetails(map[string]any{"connectionId": id.String()})
		}
		seen[id] = true
		if !members[id] {
			return apperror.ErrInvalidSequence.
				WithMessage("connection is not part of the ordered family").
				WithDetails(map[string]any{"connectionId": id.String()})
		}
	}
	return nil
}

func sameGroup(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

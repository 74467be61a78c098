package authz

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/logger"
	"github.com/substrate-hq/substrate/pkg/pgutils"
)

// Repository handles membership rows and the raw lookups the evaluator needs.
// It deliberately avoids importing the other domain packages; the few foreign
// tables it touches are queried directly.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new authz repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("authz.repo")),
	}
}

// Grant inserts a membership. Duplicate (actor, group) pairs conflict.
func (r *Repository) Grant(ctx context.Context, m *Membership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()

	_, err := r.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return apperror.ErrConflict.
				WithMessage("membership already exists for this actor and group")
		}
		if pgutils.IsForeignKeyViolation(err) {
			return apperror.ErrBadRequest.WithMessage("group does not exist")
		}
		r.log.Error("failed to grant membership", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Revoke deletes a membership by ID.
func (r *Repository) Revoke(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*Membership)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to revoke membership", logger.Error(err), slog.String("id", id.String()))
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.NewNotFound("membership", id.String())
	}
	return nil
}

// GetByID returns a membership by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Membership, error) {
	var m Membership
	err := r.db.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, apperror.NewNotFound("membership", id.String())
	}
	return &m, nil
}

// ListByActor returns all memberships held by an actor.
func (r *Repository) ListByActor(ctx context.Context, actorID uuid.UUID) ([]*Membership, error) {
	var list []*Membership
	err := r.db.NewSelect().
		Model(&list).
		Where("actor_id = ?", actorID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to list memberships", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return list, nil
}

// HasPlatformRole reports whether the actor holds the given role at platform
// scope (group_id NULL).
func (r *Repository) HasPlatformRole(ctx context.Context, actorID uuid.UUID, role string) (bool, error) {
	count, err := r.db.NewSelect().
		Model((*Membership)(nil)).
		Where("actor_id = ?", actorID).
		Where("group_id IS NULL").
		Where("role = ?", role).
		Count(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return count > 0, nil
}

// RolesOnGroups returns the roles the actor holds on any of the given groups.
func (r *Repository) RolesOnGroups(ctx context.Context, actorID uuid.UUID, groupIDs []uuid.UUID) ([]string, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var roles []string
	err := r.db.NewSelect().
		Model((*Membership)(nil)).
		Column("role").
		Where("actor_id = ?", actorID).
		Where("group_id IN (?)", bun.In(groupIDs)).
		Scan(ctx, &roles)
	if err != nil {
		r.log.Error("failed to query group roles", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return roles, nil
}

// ancestorIDs walks parent_group_id pointers from the given group to the
// root, returning the group itself plus all ancestors. The walk is bounded;
// deeper chains are reported as cycles.
func (r *Repository) ancestorIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	const maxDepth = 64

	type row struct {
		ID            uuid.UUID  `bun:"id"`
		ParentGroupID *uuid.UUID `bun:"parent_group_id"`
	}

	ids := make([]uuid.UUID, 0, 4)
	seen := make(map[uuid.UUID]bool)

	current := &groupID
	for depth := 0; current != nil; depth++ {
		if depth >= maxDepth || seen[*current] {
			return nil, apperror.ErrCycleDetected.
				WithDetails(map[string]any{"groupId": groupID.String()})
		}
		seen[*current] = true

		var g row
		err := r.db.NewSelect().
			Table("ont.groups").
			Column("id", "parent_group_id").
			Where("id = ?", *current).
			Scan(ctx, &g)
		if err != nil {
			// A missing ancestor ends the walk; the roles collected so far
			// are still meaningful.
			break
		}
		ids = append(ids, g.ID)
		current = g.ParentGroupID
	}
	return ids, nil
}

// hasActiveAssignment reports whether an active assigned_to connection runs
// from the actor's thing to the target thing.
func (r *Repository) hasActiveAssignment(ctx context.Context, actorID, thingID uuid.UUID) (bool, error) {
	count, err := r.db.NewSelect().
		Table("ont.connections").
		Where("from_thing_id = ?", actorID).
		Where("to_thing_id = ?", thingID).
		Where("type = ?", "assigned_to").
		Where("valid_to IS NULL OR valid_to > now()").
		Count(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return count > 0, nil
}

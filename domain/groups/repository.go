package groups

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/logger"
	"github.com/substrate-hq/substrate/pkg/pgutils"
)

// maxDepth bounds ancestor chain walks. Anything deeper indicates corrupt
// hierarchy data and is treated as a cycle.
const maxDepth = 64

// Repository handles database operations for groups.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new group repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("groups.repo")),
	}
}

// Insert creates a new group row.
func (r *Repository) Insert(ctx context.Context, db bun.IDB, group *Group) error {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	if group.Settings == nil {
		group.Settings = make(map[string]any)
	}
	now := time.Now()
	group.CreatedAt = now
	group.UpdatedAt = now

	_, err := db.NewInsert().Model(group).Exec(ctx)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return apperror.ErrConflict.
				WithMessage("group slug already exists").
				WithDetails(map[string]any{"field": "slug", "slug": group.Slug})
		}
		r.log.Error("failed to insert group", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetByID returns a group by ID regardless of status.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Group, error) {
	var group Group
	err := r.db.NewSelect().
		Model(&group).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("group", id.String())
		}
		r.log.Error("failed to get group", logger.Error(err), slog.String("id", id.String()))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &group, nil
}

// GetBySlug returns a group by its unique slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Group, error) {
	var group Group
	err := r.db.NewSelect().
		Model(&group).
		Where("slug = ?", slug).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("group", slug)
		}
		r.log.Error("failed to get group by slug", logger.Error(err), slog.String("slug", slug))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &group, nil
}

// List returns children of a parent, or root groups when parentID is nil.
// Archived groups are excluded unless includeArchived is set.
func (r *Repository) List(ctx context.Context, parentID *uuid.UUID, includeArchived bool) ([]*Group, error) {
	var list []*Group
	q := r.listQuery(&list, parentID, includeArchived)

	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list groups", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return list, nil
}

func (r *Repository) listQuery(list *[]*Group, parentID *uuid.UUID, includeArchived bool) *bun.SelectQuery {
	q := r.db.NewSelect().Model(list)
	if parentID != nil {
		q = q.Where("parent_group_id = ?", *parentID)
	} else {
		q = q.Where("parent_group_id IS NULL")
	}
	if !includeArchived {
		q = q.Where("status != ?", StatusArchived)
	}
	return q.Order("created_at ASC")
}

// SetStatus updates a group's status. The change is committed synchronously so
// dependent lookups observe it immediately.
func (r *Repository) SetStatus(ctx context.Context, db bun.IDB, id uuid.UUID, status string) error {
	res, err := db.NewUpdate().
		Model((*Group)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		r.log.Error("failed to set group status", logger.Error(err), slog.String("id", id.String()))
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.NewNotFound("group", id.String())
	}
	return nil
}

// SetParent reassigns a group's parent. Cycle validation happens in the
// service before this is called.
func (r *Repository) SetParent(ctx context.Context, db bun.IDB, id uuid.UUID, parentID *uuid.UUID) error {
	res, err := db.NewUpdate().
		Model((*Group)(nil)).
		Set("parent_group_id = ?", parentID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		r.log.Error("failed to set group parent", logger.Error(err), slog.String("id", id.String()))
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.NewNotFound("group", id.String())
	}
	return nil
}

// GetUsage returns the materialized usage counters for a group, or nil when
// the scheduler has not refreshed the group yet.
func (r *Repository) GetUsage(ctx context.Context, groupID uuid.UUID) (*GroupUsage, error) {
	var usage GroupUsage
	err := r.db.NewSelect().
		Model(&usage).
		Where("group_id = ?", groupID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get group usage", logger.Error(err), slog.String("group_id", groupID.String()))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &usage, nil
}

// AncestorChain returns the group and its ancestors ordered root-first.
// A chain longer than maxDepth is reported as a cycle.
func (r *Repository) AncestorChain(ctx context.Context, id uuid.UUID) ([]*Group, error) {
	chain := make([]*Group, 0, 4)
	seen := make(map[uuid.UUID]bool)

	current := &id
	for depth := 0; current != nil; depth++ {
		if depth >= maxDepth || seen[*current] {
			return nil, apperror.ErrCycleDetected.
				WithDetails(map[string]any{"groupId": id.String()})
		}
		seen[*current] = true

		group, err := r.GetByID(ctx, *current)
		if err != nil {
			return nil, err
		}
		// Prepend so the root ends up first.
		chain = append([]*Group{group}, chain...)
		current = group.ParentGroupID
	}

	return chain, nil
}

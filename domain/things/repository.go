package things

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/logger"
	"github.com/substrate-hq/substrate/pkg/pgutils"
)

// Repository handles database operations for things.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new thing repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("things.repo")),
	}
}

// Insert creates a new thing row.
func (r *Repository) Insert(ctx context.Context, db bun.IDB, thing *Thing) error {
	if thing.ID == uuid.Nil {
		thing.ID = uuid.New()
	}
	if thing.Attributes == nil {
		thing.Attributes = make(map[string]any)
	}
	now := time.Now()
	thing.CreatedAt = now
	thing.UpdatedAt = now

	_, err := db.NewInsert().Model(thing).Exec(ctx)
	if err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return apperror.ErrBadRequest.WithMessage("group does not exist")
		}
		r.log.Error("failed to insert thing", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetByID returns a thing by ID regardless of status.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Thing, error) {
	var thing Thing
	err := r.db.NewSelect().
		Model(&thing).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("thing", id.String())
		}
		r.log.Error("failed to get thing", logger.Error(err), slog.String("id", id.String()))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &thing, nil
}

// List returns things matching the given params with cursor pagination.
// Group scoping is enforced by the caller; the repository applies whatever
// scope it is handed.
func (r *Repository) List(ctx context.Context, params ListParams) ([]*Thing, *string, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}
	if params.Limit > 200 {
		params.Limit = 200
	}

	var list []*Thing
	q := r.db.NewSelect().Model(&list)

	if params.GroupID != nil {
		q = q.Where("group_id = ?", *params.GroupID)
	} else if !params.PlatformScope {
		q = q.Where("group_id IS NULL")
	}
	if len(params.Types) > 0 {
		q = q.Where("type IN (?)", bun.In(params.Types))
	}
	if params.Status != nil {
		q = q.Where("status = ?", *params.Status)
	} else {
		q = q.Where("status != ?", StatusArchived)
	}
	if params.NameSearch != nil && *params.NameSearch != "" {
		q = q.Where("fts @@ websearch_to_tsquery('simple', ?)", *params.NameSearch)
	}

	var err error
	for _, filter := range params.Filters {
		q, err = filter.apply(q)
		if err != nil {
			return nil, nil, err
		}
	}

	if params.Cursor != nil {
		cursor, err := decodeCursor(*params.Cursor)
		if err != nil {
			return nil, nil, apperror.ErrBadRequest.WithMessage("invalid cursor")
		}
		q = q.Where("(t.created_at, t.id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	q = q.Order("created_at DESC", "id DESC").Limit(params.Limit + 1)

	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list things", logger.Error(err))
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}

	var next *string
	if len(list) > params.Limit {
		list = list[:params.Limit]
		last := list[len(list)-1]
		c := encodeCursor(last.CreatedAt, last.ID)
		next = &c
	}
	return list, next, nil
}

// Update persists name and attribute changes.
func (r *Repository) Update(ctx context.Context, db bun.IDB, thing *Thing) error {
	thing.UpdatedAt = time.Now()

	res, err := db.NewUpdate().
		Model(thing).
		Column("name", "attributes", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to update thing", logger.Error(err), slog.String("id", thing.ID.String()))
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.NewNotFound("thing", thing.ID.String())
	}
	return nil
}

// SetStatus updates a thing's status.
func (r *Repository) SetStatus(ctx context.Context, db bun.IDB, id uuid.UUID, status string) error {
	res, err := db.NewUpdate().
		Model((*Thing)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to set thing status", logger.Error(err), slog.String("id", id.String()))
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.NewNotFound("thing", id.String())
	}
	return nil
}

// CountByGroup counts non-archived things in a group, for quota admission.
func (r *Repository) CountByGroup(ctx context.Context, groupID uuid.UUID) (int, error) {
	count, err := r.db.NewSelect().
		Model((*Thing)(nil)).
		Where("group_id = ?", groupID).
		Where("status != ?", StatusArchived).
		Count(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return count, nil
}

// Cursor is the pagination cursor for thing listings: (created_at, id).
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        uuid.UUID `json:"id"`
}

func decodeCursor(encoded string) (*Cursor, error) {
	var c Cursor
	if err := json.Unmarshal([]byte(encoded), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func encodeCursor(createdAt time.Time, id uuid.UUID) string {
	c := Cursor{CreatedAt: createdAt, ID: id}
	data, _ := json.Marshal(c)
	return string(data)
}

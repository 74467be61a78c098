package connections

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

// Repository handles database operations for connections.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new connection repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("connections.repo")),
	}
}

// Insert creates a new connection row.
func (r *Repository) Insert(ctx context.Context, db bun.IDB, conn *Connection) error {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	if conn.Metadata == nil {
		conn.Metadata = make(map[string]any)
	}
	now := time.Now()
	if conn.ValidFrom.IsZero() {
		conn.ValidFrom = now
	}
	conn.CreatedAt = now

	_, err := db.NewInsert().Model(conn).Exec(ctx)
	if err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return apperror.ErrBadRequest.WithMessage("endpoint thing does not exist")
		}
		r.log.Error("failed to insert connection", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetByID returns a connection by ID, active or expired.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Connection, error) {
	var conn Connection
	err := r.db.NewSelect().
		Model(&conn).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("connection", id.String())
		}
		r.log.Error("failed to get connection", logger.Error(err), slog.String("id", id.String()))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &conn, nil
}

// List returns connections anchored at a thing, ordered by seq when present
// then recency.
func (r *Repository) List(ctx context.Context, params ListParams) ([]*Connection, error) {
	if params.Limit <= 0 {
		params.Limit = 100
	}
	if params.Limit > 500 {
		params.Limit = 500
	}

	var list []*Connection
	q := r.db.NewSelect().Model(&list)

	switch params.Direction {
	case DirectionTo:
		q = q.Where("to_thing_id = ?", params.ThingID)
	default:
		q = q.Where("from_thing_id = ?", params.ThingID)
	}
	if params.Type != nil {
		q = q.Where("type = ?", *params.Type)
	}
	if !params.IncludeExpired {
		q = q.Where("valid_to IS NULL OR valid_to > now()")
	}
	q = q.Order("seq ASC NULLS LAST", "created_at DESC").Limit(params.Limit)

	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list connections", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return list, nil
}

// Disconnect closes the validity window of an active connection.
func (r *Repository) Disconnect(ctx context.Context, db bun.IDB, id uuid.UUID, at time.Time) error {
	res, err := db.NewUpdate().
		Model((*Connection)(nil)).
		Set("valid_to = ?", at).
		Where("id = ?", id).
		Where("valid_to IS NULL OR valid_to > ?", at).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to disconnect", logger.Error(err), slog.String("id", id.String()))
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.ErrConflict.
			WithMessage("connection is already disconnected").
			WithDetails(map[string]any{"connectionId": id.String()})
	}
	return nil
}

// ActiveOrdered returns the active ordered family (seq set) for
// (fromThingID, type), locked for update inside the caller's transaction.
func (r *Repository) ActiveOrdered(ctx context.Context, db bun.IDB, fromThingID uuid.UUID, connType string) ([]*Connection, error) {
	var list []*Connection
	err := db.NewSelect().
		Model(&list).
		Where("from_thing_id = ?", fromThingID).
		Where("type = ?", connType).
		Where("seq IS NOT NULL").
		Where("valid_to IS NULL OR valid_to > now()").
		Order("seq ASC").
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to load ordered family", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return list, nil
}

// NextSeq returns the next sequence number for an ordered family.
func (r *Repository) NextSeq(ctx context.Context, db bun.IDB, fromThingID uuid.UUID, connType string) (int, error) {
	var max sql.NullInt64
	err := db.NewSelect().
		Model((*Connection)(nil)).
		ColumnExpr("max(seq)").
		Where("from_thing_id = ?", fromThingID).
		Where("type = ?", connType).
		Where("valid_to IS NULL OR valid_to > now()").
		Scan(ctx, &max)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// SetSeq assigns a sequence position to one connection.
func (r *Repository) SetSeq(ctx context.Context, db bun.IDB, id uuid.UUID, seq int) error {
	_, err := db.NewUpdate().
		Model((*Connection)(nil)).
		Set("seq = ?", seq).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetOrdering returns the ordering row for (fromThingID, type), creating it
// at version 0 when absent.
func (r *Repository) GetOrdering(ctx context.Context, db bun.IDB, fromThingID uuid.UUID, connType string) (*Ordering, error) {
	ord := &Ordering{FromThingID: fromThingID, Type: connType, Version: 0}
	_, err := db.NewInsert().
		Model(ord).
		On("CONFLICT (from_thing_id, type) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	err = db.NewSelect().
		Model(ord).
		Where("from_thing_id = ?", fromThingID).
		Where("type = ?", connType).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ord, nil
}

// BumpOrderingVersion increments the family version, guarding against
// concurrent reorders with the expected value.
func (r *Repository) BumpOrderingVersion(ctx context.Context, db bun.IDB, fromThingID uuid.UUID, connType string, expected int) error {
	res, err := db.NewUpdate().
		Model((*Ordering)(nil)).
		Set("version = version + 1").
		Where("from_thing_id = ?", fromThingID).
		Where("type = ?", connType).
		Where("version = ?", expected).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.ErrConflict.
			WithMessage("ordering version changed, retry with the current version").
			WithDetails(map[string]any{"expectedVersion": expected})
	}
	return nil
}

// CountByGroup counts active connections in a group, for quota admission.
func (r *Repository) CountByGroup(ctx context.Context, groupID uuid.UUID) (int, error) {
	count, err := r.db.NewSelect().
		Model((*Connection)(nil)).
		Where("group_id = ?", groupID).
		Where("valid_to IS NULL OR valid_to > now()").
		Count(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return count, nil
}

package events

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

// Repository handles the append-only event log.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new event repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("events.repo")),
	}
}

// Append inserts an event using the supplied connection, which is the caller's
// open transaction on every internal mutation path. A failed append therefore
// rolls back the entire mutation.
func (r *Repository) Append(ctx context.Context, db bun.IDB, evt *Event) error {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.Metadata == nil {
		evt.Metadata = make(map[string]any)
	}
	evt.CreatedAt = time.Now()

	_, err := db.NewInsert().Model(evt).Exec(ctx)
	if err != nil {
		r.log.Error("failed to append event", logger.Error(err), slog.String("type", evt.Type))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// AppendIdempotent inserts an externally sourced event, deduplicating on
// (source, idempotencyKey). When a duplicate arrives the original event is
// returned and no new row is created.
func (r *Repository) AppendIdempotent(ctx context.Context, evt *Event) (*Event, bool, error) {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.Metadata == nil {
		evt.Metadata = make(map[string]any)
	}
	evt.CreatedAt = time.Now()

	_, err := r.db.NewInsert().Model(evt).Exec(ctx)
	if err == nil {
		return evt, true, nil
	}

	if !pgutils.IsUniqueViolation(err) {
		r.log.Error("failed to ingest event", logger.Error(err), slog.String("type", evt.Type))
		return nil, false, apperror.ErrDatabase.WithInternal(err)
	}

	var existing Event
	err = r.db.NewSelect().
		Model(&existing).
		Where("source = ?", evt.Source).
		Where("idempotency_key = ?", evt.IdempotencyKey).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The conflicting row vanished between insert and select, which
			// is impossible for an append-only table.
			return nil, false, apperror.ErrDatabase.WithInternal(err)
		}
		return nil, false, apperror.ErrDatabase.WithInternal(err)
	}
	return &existing, false, nil
}

// Query returns events matching the given dimension filters, newest first,
// with cursor pagination.
func (r *Repository) Query(ctx context.Context, params QueryParams) ([]*Event, *string, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}
	if params.Limit > 200 {
		params.Limit = 200
	}

	var list []*Event
	q := r.db.NewSelect().Model(&list)

	if params.GroupID != nil {
		q = q.Where("group_id = ?", *params.GroupID)
	}
	if params.ActorID != nil {
		q = q.Where("actor_id = ?", *params.ActorID)
	}
	if params.TargetID != nil {
		q = q.Where("target_id = ?", *params.TargetID)
	}
	if params.Type != nil {
		q = q.Where("type = ?", *params.Type)
	}
	if !params.Range.From.IsZero() {
		q = q.Where("created_at >= ?", params.Range.From)
	}
	if !params.Range.To.IsZero() {
		q = q.Where("created_at <= ?", params.Range.To)
	}

	if params.Cursor != nil {
		cursor, err := decodeCursor(*params.Cursor)
		if err != nil {
			return nil, nil, apperror.ErrBadRequest.WithMessage("invalid cursor")
		}
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	q = q.Order("created_at DESC", "id DESC").Limit(params.Limit + 1)

	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to query events", logger.Error(err))
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

// Cursor is the pagination cursor for event queries: (created_at, id).
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

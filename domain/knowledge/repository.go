package knowledge

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

// Repository handles database operations for the knowledge index. Embedding
// reads and writes go through raw SQL because the vector type has no bun
// mapping.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new knowledge repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("knowledge.repo")),
	}
}

// GetLabelRecord returns the label record for a thing, or nil when none
// exists yet.
func (r *Repository) GetLabelRecord(ctx context.Context, sourceThingID uuid.UUID) (*Record, error) {
	var rec Record
	err := r.db.NewSelect().
		Model(&rec).
		Where("source_thing_id = ?", sourceThingID).
		Where("kind = ?", KindLabel).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get label record", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &rec, nil
}

// InsertLabelRecord creates a fresh label record.
func (r *Repository) InsertLabelRecord(ctx context.Context, db bun.IDB, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.Kind = KindLabel
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := db.NewInsert().Model(rec).Exec(ctx)
	if err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return apperror.ErrBadRequest.WithMessage("source thing does not exist")
		}
		r.log.Error("failed to insert label record", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// UpdateLabels replaces the label set on an existing record.
func (r *Repository) UpdateLabels(ctx context.Context, db bun.IDB, id uuid.UUID, labels []string) error {
	_, err := db.NewUpdate().
		Model((*Record)(nil)).
		Set("labels = ?::text[]", pgutils.FormatTextArray(labels)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to update labels", logger.Error(err), slog.String("id", id.String()))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// LockModel takes a transaction-scoped advisory lock on (groupID, model) so
// concurrent upserts serialize the dimension pin check.
func (r *Repository) LockModel(ctx context.Context, db bun.IDB, groupID *uuid.UUID, model string) error {
	key := model
	if groupID != nil {
		key = groupID.String() + "/" + model
	}
	_, err := db.NewRaw(`SELECT pg_advisory_xact_lock(hashtextextended(?, 0))`, key).Exec(ctx)
	if err != nil {
		r.log.Error("failed to lock embedding model", logger.Error(err), slog.String("model", model))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// ModelDimension returns the embedding dimension already recorded for a
// model within a group, or 0 when the model is unseen there.
func (r *Repository) ModelDimension(ctx context.Context, db bun.IDB, groupID *uuid.UUID, model string) (int, error) {
	var dim int
	q := db.NewSelect().
		Model((*Record)(nil)).
		Column("embedding_dim").
		Where("kind = ?", KindChunk).
		Where("embedding_model = ?", model)
	if groupID != nil {
		q = q.Where("group_id = ?", *groupID)
	} else {
		q = q.Where("group_id IS NULL")
	}
	err := q.Limit(1).Scan(ctx, &dim)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return dim, nil
}

// UpsertChunk stores or replaces one embedded chunk keyed by
// (source_thing_id, embedding_model, source_field, chunk_index).
func (r *Repository) UpsertChunk(ctx context.Context, db bun.IDB, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now()

	_, err := db.NewRaw(`
		INSERT INTO ont.knowledge
			(id, group_id, source_thing_id, kind, text, embedding, embedding_model,
			 embedding_dim, source_field, chunk_index, labels, created_at, updated_at)
		VALUES
			(?, ?, ?, 'chunk', ?, ?::vector, ?, ?, ?, ?, '{}', ?, ?)
		ON CONFLICT (source_thing_id, embedding_model, coalesce(source_field, ''), coalesce(chunk_index, -1))
			WHERE kind = 'chunk'
		DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			embedding_dim = EXCLUDED.embedding_dim,
			updated_at = EXCLUDED.updated_at
	`,
		rec.ID, rec.GroupID, rec.SourceThingID, rec.Text,
		pgutils.FormatVector(rec.Embedding), rec.EmbeddingModel, rec.EmbeddingDim,
		rec.SourceField, rec.ChunkIndex, now, now,
	).Exec(ctx)
	if err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return apperror.ErrBadRequest.WithMessage("source thing does not exist")
		}
		r.log.Error("failed to upsert chunk", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}

	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// searchRow carries one similarity hit out of the raw query.
type searchRow struct {
	Record `bun:",extend"`
	Score  float64 `bun:"score"`
}

// Search runs cosine similarity over embedded chunks. Tenant, model, and
// source filters narrow the candidate set before the vector ordering runs.
func (r *Repository) Search(ctx context.Context, req SearchRequest) ([]*SearchResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	vector := pgutils.FormatVector(req.Embedding)

	var rows []searchRow
	q := r.db.NewSelect().
		Model(&rows).
		ModelTableExpr("ont.knowledge AS k").
		ColumnExpr("k.*").
		ColumnExpr("1 - (k.embedding <=> ?::vector) AS score", vector).
		Where("k.kind = ?", KindChunk).
		Where("k.embedding IS NOT NULL").
		Where("k.embedding_model = ?", req.EmbeddingModel)

	if req.GroupID != nil {
		q = q.Where("k.group_id = ?", *req.GroupID)
	} else {
		q = q.Where("k.group_id IS NULL")
	}
	if req.SourceThingID != nil {
		q = q.Where("k.source_thing_id = ?", *req.SourceThingID)
	}
	if req.MinScore > 0 {
		q = q.Where("1 - (k.embedding <=> ?::vector) >= ?", vector, req.MinScore)
	}

	q = q.OrderExpr("k.embedding <=> ?::vector ASC", vector).Limit(limit)

	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to run vector search", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	results := make([]*SearchResult, 0, len(rows))
	for i := range rows {
		rec := rows[i].Record
		results = append(results, &SearchResult{Record: &rec, Score: rows[i].Score})
	}
	return results, nil
}

// SearchByLabel returns label records carrying the given label.
func (r *Repository) SearchByLabel(ctx context.Context, req SearchByLabelRequest) ([]*Record, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var list []*Record
	q := r.db.NewSelect().
		Model(&list).
		Where("kind = ?", KindLabel).
		Where("? = ANY(labels)", req.Label)

	if req.GroupID != nil {
		q = q.Where("group_id = ?", *req.GroupID)
	} else {
		q = q.Where("group_id IS NULL")
	}
	q = q.Order("updated_at DESC").Limit(limit)

	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to search by label", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return list, nil
}

package typeregistry

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
)

// Repository handles database operations for type definitions.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new type registry repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("typeregistry.repo")),
	}
}

// Upsert registers or replaces the definition for (type_name, dimension).
func (r *Repository) Upsert(ctx context.Context, db bun.IDB, def *TypeDefinition) error {
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now
	def.Enabled = true

	_, err := db.NewInsert().
		Model(def).
		On("CONFLICT (type_name, dimension) DO UPDATE").
		Set("json_schema = EXCLUDED.json_schema").
		Set("enabled = true").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to upsert type definition", logger.Error(err), slog.String("type", def.TypeName))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Get returns the definition for (typeName, dimension), enabled or not.
func (r *Repository) Get(ctx context.Context, typeName, dimension string) (*TypeDefinition, error) {
	var def TypeDefinition
	err := r.db.NewSelect().
		Model(&def).
		Where("type_name = ?", typeName).
		Where("dimension = ?", dimension).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("type definition", typeName)
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &def, nil
}

// GetEnabled returns the enabled definition for (typeName, dimension), or nil
// when none is registered. Nil means the type is unconstrained.
func (r *Repository) GetEnabled(ctx context.Context, typeName, dimension string) (*TypeDefinition, error) {
	var def TypeDefinition
	err := r.db.NewSelect().
		Model(&def).
		Where("type_name = ?", typeName).
		Where("dimension = ?", dimension).
		Where("enabled = true").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get type definition", logger.Error(err), slog.String("type", typeName))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &def, nil
}

// List returns all type definitions, optionally filtered by dimension.
func (r *Repository) List(ctx context.Context, dimension *string) ([]*TypeDefinition, error) {
	var list []*TypeDefinition
	q := r.db.NewSelect().Model(&list)
	if dimension != nil {
		q = q.Where("dimension = ?", *dimension)
	}
	q = q.Order("type_name ASC")

	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list type definitions", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return list, nil
}

// SetEnabled flips a definition's enabled flag.
func (r *Repository) SetEnabled(ctx context.Context, db bun.IDB, typeName, dimension string, enabled bool) error {
	res, err := db.NewUpdate().
		Model((*TypeDefinition)(nil)).
		Set("enabled = ?", enabled).
		Set("updated_at = ?", time.Now()).
		Where("type_name = ?", typeName).
		Where("dimension = ?", dimension).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to set type enabled", logger.Error(err), slog.String("type", typeName))
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.NewNotFound("type definition", typeName)
	}
	return nil
}

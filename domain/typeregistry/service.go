package typeregistry

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/internal/database"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
	"github.com/substrate-hq/substrate/pkg/logger"
)

// PermissionChecker is the slice of the authorization evaluator the registry
// needs: platform-scope admin rights for registering definitions.
type PermissionChecker interface {
	HasPlatformScope(ctx context.Context, actor *auth.Actor) (bool, error)
}

// Service manages type definitions.
type Service struct {
	db       bun.IDB
	repo     *Repository
	registry *Registry
	perms    PermissionChecker
	recorder *events.Repository
	log      *slog.Logger
}

// NewService creates a new type registry service.
func NewService(db bun.IDB, repo *Repository, registry *Registry, perms PermissionChecker, recorder *events.Repository, log *slog.Logger) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		registry: registry,
		perms:    perms,
		recorder: recorder,
		log:      log.With(logger.Scope("typeregistry.service")),
	}
}

// Register stores a type definition after verifying the schema compiles.
// Definitions constrain every group, so registration requires platform scope.
func (s *Service) Register(ctx context.Context, actor *auth.Actor, req RegisterRequest) (*TypeDefinition, error) {
	if err := s.requirePlatform(ctx, actor); err != nil {
		return nil, err
	}
	if req.TypeName == "" {
		return nil, apperror.NewValidation("typeName", "typeName is required").WithOperation("type.register")
	}
	if !ValidDimension(req.Dimension) {
		return nil, apperror.NewValidation("dimension", "dimension must be thing or connection").WithOperation("type.register")
	}
	if len(req.JSONSchema) == 0 {
		return nil, apperror.NewValidation("jsonSchema", "jsonSchema is required").WithOperation("type.register")
	}
	if _, err := compileSchema(req.JSONSchema); err != nil {
		return nil, apperror.NewValidation("jsonSchema", "schema does not compile: "+err.Error()).
			WithOperation("type.register")
	}

	def := &TypeDefinition{
		TypeName:   req.TypeName,
		Dimension:  req.Dimension,
		JSONSchema: req.JSONSchema,
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if err := s.repo.Upsert(ctx, tx, def); err != nil {
		return nil, err
	}

	evt := &events.Event{
		Type:     events.TypeTypeRegistered,
		ActorID:  actor.ID,
		TargetID: &def.ID,
		Metadata: map[string]any{"type": req.TypeName, "dimension": req.Dimension},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	s.registry.Invalidate(req.TypeName, req.Dimension)

	s.log.Info("type registered",
		slog.String("type", req.TypeName),
		slog.String("dimension", req.Dimension),
	)
	return def, nil
}

// Disable switches off validation for a type without deleting its definition.
func (s *Service) Disable(ctx context.Context, actor *auth.Actor, typeName, dimension string) error {
	if err := s.requirePlatform(ctx, actor); err != nil {
		return err
	}
	if !ValidDimension(dimension) {
		return apperror.NewValidation("dimension", "dimension must be thing or connection")
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	if err := s.repo.SetEnabled(ctx, tx, typeName, dimension, false); err != nil {
		return err
	}

	evt := &events.Event{
		Type:     events.TypeTypeDisabled,
		ActorID:  actor.ID,
		Metadata: map[string]any{"type": typeName, "dimension": dimension},
	}
	if err := s.recorder.Append(ctx, tx, evt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	s.registry.Invalidate(typeName, dimension)
	return nil
}

// List returns registered definitions.
func (s *Service) List(ctx context.Context, dimension *string) ([]*TypeDefinition, error) {
	return s.repo.List(ctx, dimension)
}

func (s *Service) requirePlatform(ctx context.Context, actor *auth.Actor) error {
	if actor == nil {
		return apperror.ErrUnauthorized
	}
	platform, err := s.perms.HasPlatformScope(ctx, actor)
	if err != nil {
		return err
	}
	if !platform {
		return apperror.NewForbidden("admin", "type definition")
	}
	return nil
}

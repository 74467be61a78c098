package typeregistry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/logger"
)

// Registry validates attribute bags against registered type definitions.
// Compiled schemas are cached per (type, dimension, updatedAt) so repeated
// validations skip recompilation until the definition changes.
type Registry struct {
	repo *Repository
	log  *slog.Logger

	mu    sync.RWMutex
	cache map[cacheKey]*compiledSchema
}

type cacheKey struct {
	typeName  string
	dimension string
}

type compiledSchema struct {
	updatedAtUnixNano int64
	resolved          *jsonschema.Resolved
}

// NewRegistry creates a new validating registry.
func NewRegistry(repo *Repository, log *slog.Logger) *Registry {
	return &Registry{
		repo:  repo,
		log:   log.With(logger.Scope("typeregistry")),
		cache: make(map[cacheKey]*compiledSchema),
	}
}

// ValidateAttributes checks an attribute bag against the enabled definition
// for (typeName, dimension). Unregistered or disabled types pass: the
// taxonomy is open and only opts into validation per type.
func (r *Registry) ValidateAttributes(ctx context.Context, typeName, dimension string, attributes map[string]any) error {
	def, err := r.repo.GetEnabled(ctx, typeName, dimension)
	if err != nil {
		return err
	}
	if def == nil {
		return nil
	}

	resolved, err := r.compiled(def)
	if err != nil {
		return err
	}

	if attributes == nil {
		attributes = map[string]any{}
	}
	if err := resolved.Validate(attributes); err != nil {
		return apperror.ErrValidation.
			WithMessage("attributes do not match the registered schema for type "+typeName).
			WithDetails(map[string]any{
				"type":      typeName,
				"dimension": dimension,
				"schema":    err.Error(),
			})
	}
	return nil
}

// Invalidate drops the cached schema for a type. Called after register or
// disable so the next validation recompiles.
func (r *Registry) Invalidate(typeName, dimension string) {
	r.mu.Lock()
	delete(r.cache, cacheKey{typeName: typeName, dimension: dimension})
	r.mu.Unlock()
}

func (r *Registry) compiled(def *TypeDefinition) (*jsonschema.Resolved, error) {
	key := cacheKey{typeName: def.TypeName, dimension: def.Dimension}
	stamp := def.UpdatedAt.UnixNano()

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && entry.updatedAtUnixNano == stamp {
		return entry.resolved, nil
	}

	resolved, err := compileSchema(def.JSONSchema)
	if err != nil {
		r.log.Error("failed to compile type schema", logger.Error(err), slog.String("type", def.TypeName))
		return nil, apperror.ErrInternal.
			WithMessage("registered schema for type " + def.TypeName + " is invalid").
			WithInternal(err)
	}

	r.mu.Lock()
	r.cache[key] = &compiledSchema{updatedAtUnixNano: stamp, resolved: resolved}
	r.mu.Unlock()
	return resolved, nil
}

// compileSchema parses and resolves a JSON Schema document.
func compileSchema(raw map[string]any) (*jsonschema.Resolved, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, err
	}
	return schema.Resolve(nil)
}

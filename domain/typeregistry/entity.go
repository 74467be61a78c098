package typeregistry

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Dimensions a type definition can apply to.
const (
	DimensionThing      = "thing"
	DimensionConnection = "connection"
)

// ValidDimension reports whether the given dimension is recognized.
func ValidDimension(dim string) bool {
	return dim == DimensionThing || dim == DimensionConnection
}

// TypeDefinition is a registered JSON Schema for a type's attribute bag.
// Types without a definition remain valid; the taxonomy is open.
type TypeDefinition struct {
	bun.BaseModel `bun:"table:ont.type_registry,alias:tr"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	TypeName   string         `bun:"type_name,notnull" json:"typeName"`
	Dimension  string         `bun:"dimension,notnull" json:"dimension"`
	JSONSchema map[string]any `bun:"json_schema,type:jsonb,notnull" json:"jsonSchema"`
	Enabled    bool           `bun:"enabled,notnull,default:true" json:"enabled"`
	CreatedAt  time.Time      `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// RegisterRequest registers or replaces a type definition.
type RegisterRequest struct {
	TypeName   string         `json:"typeName" validate:"required,max=120"`
	Dimension  string         `json:"dimension" validate:"required"`
	JSONSchema map[string]any `json:"jsonSchema" validate:"required"`
}

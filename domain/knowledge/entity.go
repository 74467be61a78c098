package knowledge

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Record kinds.
const (
	KindLabel = "label"
	KindChunk = "chunk"
)

// Record is a knowledge index entry: either a label set or a vector-embedded
// chunk derived from a thing. The store never computes embeddings; callers
// supply vectors and the model that produced them.
type Record struct {
	bun.BaseModel `bun:"table:ont.knowledge,alias:k"`

	ID            uuid.UUID  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	GroupID       *uuid.UUID `bun:"group_id,type:uuid" json:"groupId,omitempty"`
	SourceThingID uuid.UUID  `bun:"source_thing_id,type:uuid,notnull" json:"sourceThingId"`
	Kind          string     `bun:"kind,notnull" json:"kind"`
	Text          string     `bun:"text,notnull,default:''" json:"text"`
	Embedding     []float32  `bun:"-" json:"-"`
	EmbeddingModel *string   `bun:"embedding_model" json:"embeddingModel,omitempty"`
	EmbeddingDim  *int       `bun:"embedding_dim" json:"embeddingDim,omitempty"`
	SourceField   *string    `bun:"source_field" json:"sourceField,omitempty"`
	ChunkIndex    *int       `bun:"chunk_index" json:"chunkIndex,omitempty"`
	Labels        []string   `bun:"labels,array" json:"labels,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// AttachLabelsRequest merges labels into a thing's label record.
type AttachLabelsRequest struct {
	SourceThingID uuid.UUID `json:"sourceThingId" validate:"required"`
	Labels        []string  `json:"labels" validate:"required,min=1"`
}

// UpsertEmbeddingRequest stores or replaces one embedded chunk. The upsert
// key is (sourceThingId, embeddingModel, sourceField, chunkIndex).
type UpsertEmbeddingRequest struct {
	SourceThingID  uuid.UUID `json:"sourceThingId" validate:"required"`
	Text           string    `json:"text" validate:"required"`
	Embedding      []float32 `json:"embedding" validate:"required,min=1"`
	EmbeddingModel string    `json:"embeddingModel" validate:"required"`
	SourceField    *string   `json:"sourceField,omitempty"`
	ChunkIndex     *int      `json:"chunkIndex,omitempty"`
}

// SearchRequest runs a cosine similarity search within a group.
type SearchRequest struct {
	GroupID        *uuid.UUID `json:"groupId,omitempty"`
	Scope          string     `json:"scope,omitempty"`
	Embedding      []float32  `json:"embedding" validate:"required,min=1"`
	EmbeddingModel string     `json:"embeddingModel" validate:"required"`
	SourceThingID  *uuid.UUID `json:"sourceThingId,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	MinScore       float64    `json:"minScore,omitempty"`
}

// SearchResult is one similarity hit.
type SearchResult struct {
	Record *Record `json:"record"`
	Score  float64 `json:"score"`
}

// SearchByLabelRequest finds labeled things within a group.
type SearchByLabelRequest struct {
	GroupID *uuid.UUID `json:"groupId,omitempty"`
	Scope   string     `json:"scope,omitempty"`
	Label   string     `json:"label" validate:"required"`
	Limit   int        `json:"limit,omitempty"`
}

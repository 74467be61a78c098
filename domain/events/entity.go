package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Event types emitted by the store's own mutation paths. Externally ingested
// events use "external.<source>".
const (
	TypeGroupCreated       = "group.created"
	TypeGroupStatusChanged = "group.status_changed"
	TypeGroupParentChanged = "group.parent_changed"

	TypeThingCreated       = "thing.created"
	TypeThingUpdated       = "thing.updated"
	TypeThingStatusChanged = "thing.status_changed"

	TypeConnectionCreated      = "connection.connected"
	TypeConnectionDisconnected = "connection.disconnected"
	TypeConnectionReordered    = "connection.reordered"

	TypeKnowledgeLabelsAttached    = "knowledge.labels_attached"
	TypeKnowledgeEmbeddingUpserted = "knowledge.embedding_upserted"

	TypeTypeRegistered = "type.registered"
	TypeTypeDisabled   = "type.disabled"
)

// Event is an immutable audit fact. Rows are only ever inserted; no code path
// updates or deletes them.
type Event struct {
	bun.BaseModel `bun:"table:ont.events,alias:e"`

	ID             uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Type           string         `bun:"type,notnull" json:"type"`
	GroupID        *uuid.UUID     `bun:"group_id,type:uuid" json:"groupId,omitempty"`
	ActorID        uuid.UUID      `bun:"actor_id,type:uuid,notnull" json:"actorId"`
	TargetID       *uuid.UUID     `bun:"target_id,type:uuid" json:"targetId,omitempty"`
	Source         *string        `bun:"source" json:"source,omitempty"`
	IdempotencyKey *string        `bun:"idempotency_key" json:"idempotencyKey,omitempty"`
	Metadata       map[string]any `bun:"metadata,type:jsonb,notnull,default:'{}'" json:"metadata"`
	CreatedAt      time.Time      `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// TimeRange bounds event queries. Zero values leave the corresponding side
// unbounded.
type TimeRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// QueryParams selects events by one dimension plus a time range.
type QueryParams struct {
	GroupID *uuid.UUID
	ActorID *uuid.UUID
	TargetID *uuid.UUID
	Type    *string
	Range   TimeRange
	Limit   int
	Cursor  *string
}

// IngestRequest is the webhook ingestion payload.
type IngestRequest struct {
	Type     string         `json:"type" validate:"required,max=120"`
	GroupID  *uuid.UUID     `json:"groupId,omitempty"`
	TargetID *uuid.UUID     `json:"targetId,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
}

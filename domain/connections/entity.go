package connections

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TypeAssignedTo is the connection type the authorization evaluator treats as
// an explicit per-resource grant.
const TypeAssignedTo = "assigned_to"

// Connection is a directed, typed, time-bounded edge between two things.
// Active means valid_to is unset or in the future. Disconnecting closes the
// validity window; the row is never deleted.
type Connection struct {
	bun.BaseModel `bun:"table:ont.connections,alias:c"`

	ID          uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	GroupID     *uuid.UUID     `bun:"group_id,type:uuid" json:"groupId,omitempty"`
	FromThingID uuid.UUID      `bun:"from_thing_id,type:uuid,notnull" json:"fromThingId"`
	ToThingID   uuid.UUID      `bun:"to_thing_id,type:uuid,notnull" json:"toThingId"`
	Type        string         `bun:"type,notnull" json:"type"`
	Metadata    map[string]any `bun:"metadata,type:jsonb,notnull,default:'{}'" json:"metadata"`
	Seq         *int           `bun:"seq" json:"seq,omitempty"`
	ValidFrom   time.Time      `bun:"valid_from,notnull,default:now()" json:"validFrom"`
	ValidTo     *time.Time     `bun:"valid_to" json:"validTo,omitempty"`
	CreatedAt   time.Time      `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// Active reports whether the connection's validity window is open at t.
func (c *Connection) Active(t time.Time) bool {
	return c.ValidTo == nil || c.ValidTo.After(t)
}

// Ordering tracks the optimistic version of an ordered connection family,
// keyed by (from_thing_id, type).
type Ordering struct {
	bun.BaseModel `bun:"table:ont.connection_orderings,alias:co"`

	FromThingID uuid.UUID `bun:"from_thing_id,pk,type:uuid" json:"fromThingId"`
	Type        string    `bun:"type,pk" json:"type"`
	Version     int       `bun:"version,notnull,default:0" json:"version"`
}

// ConnectRequest creates a connection.
type ConnectRequest struct {
	FromThingID uuid.UUID      `json:"fromThingId" validate:"required"`
	ToThingID   uuid.UUID      `json:"toThingId" validate:"required"`
	Type        string         `json:"type" validate:"required,max=120"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Ordered     bool           `json:"ordered,omitempty"`
}

// ReorderRequest rewrites the sequence of an ordered family.
type ReorderRequest struct {
	FromThingID     uuid.UUID   `json:"fromThingId" validate:"required"`
	Type            string      `json:"type" validate:"required"`
	NewOrder        []uuid.UUID `json:"newOrder" validate:"required"`
	ExpectedVersion int         `json:"expectedVersion"`
}

// ListParams selects connections anchored at a thing.
type ListParams struct {
	ThingID        uuid.UUID
	Direction      Direction
	Type           *string
	IncludeExpired bool
	Limit          int
}

// Direction selects which endpoint anchors a listing.
type Direction string

const (
	DirectionFrom Direction = "from"
	DirectionTo   Direction = "to"
)

// ListResult carries the connections plus the orphaned-but-valid warning:
// when the anchor thing is archived its connections stay intact, and the
// flag tells callers they are traversing from an archived entity.
type ListResult struct {
	Connections    []*Connection `json:"connections"`
	ParentArchived bool          `json:"parentArchived,omitempty"`
}

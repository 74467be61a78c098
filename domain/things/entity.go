package things

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Thing statuses. Archival is a status change; rows are never deleted.
const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// ValidStatus reports whether s is a known thing status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusActive, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Thing is a typed entity with an open attribute bag. GroupID scopes it to a
// tenant; nil means platform-global. GroupID never changes after creation.
type Thing struct {
	bun.BaseModel `bun:"table:ont.things,alias:t"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	GroupID    *uuid.UUID     `bun:"group_id,type:uuid" json:"groupId,omitempty"`
	Type       string         `bun:"type,notnull" json:"type"`
	Name       string         `bun:"name,notnull" json:"name"`
	Attributes map[string]any `bun:"attributes,type:jsonb,notnull,default:'{}'" json:"attributes"`
	Status     string         `bun:"status,notnull,default:'draft'" json:"status"`
	CreatedAt  time.Time      `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// CreateThingRequest is the request body for creating a thing.
type CreateThingRequest struct {
	GroupID    *uuid.UUID     `json:"groupId,omitempty"`
	Type       string         `json:"type" validate:"required,max=120"`
	Name       string         `json:"name" validate:"required,max=500"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Status     string         `json:"status,omitempty"`
}

// UpdateThingRequest patches a thing. Attributes are shallow-merged per
// top-level key; a key set to null clears it. GroupID is rejected outright.
type UpdateThingRequest struct {
	GroupID    *uuid.UUID     `json:"groupId,omitempty"`
	Name       *string        `json:"name,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// SetStatusRequest changes a thing's status.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListParams selects things within a group scope.
type ListParams struct {
	GroupID       *uuid.UUID
	PlatformScope bool
	Types         []string
	Status        *string
	NameSearch    *string
	Filters       []AttributeFilter
	Limit         int
	Cursor        *string
}

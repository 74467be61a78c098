package groups

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Group statuses. Lifecycle is soft only: archived groups stay addressable
// by id but are excluded from default list predicates.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
	StatusArchived  = "archived"
)

// ValidStatus reports whether s is a known group status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusArchived:
		return true
	}
	return false
}

// Group is a tenant-scoping container. Groups nest arbitrarily deep via
// ParentGroupID; effective settings inherit down the ancestor chain.
type Group struct {
	bun.BaseModel `bun:"table:ont.groups,alias:g"`

	ID            uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Slug          string         `bun:"slug,notnull" json:"slug"`
	Name          string         `bun:"name,notnull" json:"name"`
	Type          string         `bun:"type,notnull,default:'organization'" json:"type"`
	ParentGroupID *uuid.UUID     `bun:"parent_group_id,type:uuid" json:"parentGroupId,omitempty"`
	Settings      map[string]any `bun:"settings,type:jsonb,notnull,default:'{}'" json:"settings"`
	Status        string         `bun:"status,notnull,default:'active'" json:"status"`
	CreatedAt     time.Time      `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// CreateGroupRequest is the request body for creating a group.
type CreateGroupRequest struct {
	Slug          string         `json:"slug" validate:"required,max=120"`
	Name          string         `json:"name" validate:"required,max=200"`
	Type          string         `json:"type,omitempty"`
	ParentGroupID *uuid.UUID     `json:"parentGroupId,omitempty"`
	Settings      map[string]any `json:"settings,omitempty"`
}

// SetStatusRequest is the request body for changing a group's status.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// SetParentRequest is the request body for reassigning a group's parent.
type SetParentRequest struct {
	ParentGroupID *uuid.UUID `json:"parentGroupId"`
}

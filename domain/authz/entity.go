package authz

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role names, strongest first.
const (
	RolePlatformOwner = "platform_owner"
	RoleOrgOwner      = "org_owner"
	RoleOrgUser       = "org_user"
	RoleExternalActor = "external_actor"
)

// ValidRole reports whether the given role name is recognized.
func ValidRole(role string) bool {
	switch role {
	case RolePlatformOwner, RoleOrgOwner, RoleOrgUser, RoleExternalActor:
		return true
	}
	return false
}

// Actions an actor can attempt against a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionAdmin  Action = "admin"
)

// Resource identifies what an action targets. GroupID is the owning group;
// nil means the resource lives at platform scope. ThingID is set when the
// target is (or belongs to) a concrete thing, enabling per-resource grants.
type Resource struct {
	Type    string
	GroupID *uuid.UUID
	ThingID *uuid.UUID
}

// Membership binds an actor to a role, either on a specific group or at
// platform scope (group_id NULL).
type Membership struct {
	bun.BaseModel `bun:"table:ont.memberships,alias:m"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	ActorID   uuid.UUID  `bun:"actor_id,type:uuid,notnull" json:"actorId"`
	GroupID   *uuid.UUID `bun:"group_id,type:uuid" json:"groupId,omitempty"`
	Role      string     `bun:"role,notnull" json:"role"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// GrantRequest creates a membership.
type GrantRequest struct {
	ActorID uuid.UUID  `json:"actorId" validate:"required"`
	GroupID *uuid.UUID `json:"groupId,omitempty"`
	Role    string     `json:"role" validate:"required"`
}

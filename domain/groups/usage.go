package groups

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UsageMaxAge bounds how old a materialized usage row may be before quota
// admission falls back to a live count.
const UsageMaxAge = 10 * time.Minute

// GroupUsage holds the materialized per-group entity counters the scheduler
// refreshes into ont.group_usage.
type GroupUsage struct {
	bun.BaseModel `bun:"table:ont.group_usage,alias:gu"`

	GroupID         uuid.UUID `bun:"group_id,pk,type:uuid" json:"groupId"`
	ThingCount      int       `bun:"thing_count,notnull" json:"thingCount"`
	ConnectionCount int       `bun:"connection_count,notnull" json:"connectionCount"`
	KnowledgeCount  int       `bun:"knowledge_count,notnull" json:"knowledgeCount"`
	RefreshedAt     time.Time `bun:"refreshed_at,notnull" json:"refreshedAt"`
}

// Fresh reports whether the counters were refreshed within maxAge.
func (u *GroupUsage) Fresh(maxAge time.Duration) bool {
	return time.Since(u.RefreshedAt) <= maxAge
}

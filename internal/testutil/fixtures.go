package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Seed helpers insert rows with raw SQL so integration tests can arrange
// state without depending on the domain packages.

// SeedGroup inserts an active group and returns its ID.
func SeedGroup(t *testing.T, db bun.IDB, slug string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.NewRaw(`
		INSERT INTO ont.groups (id, slug, name, type, settings, status)
		VALUES (?, ?, ?, 'organization', '{}', 'active')
	`, id, slug, slug).Exec(context.Background())
	if err != nil {
		t.Fatalf("seed group: %v", err)
	}
	return id
}

// SeedPlatformOwner grants a fresh actor the platform_owner role and returns
// the actor ID.
func SeedPlatformOwner(t *testing.T, db bun.IDB) uuid.UUID {
	t.Helper()
	actorID := uuid.New()
	SeedMembership(t, db, actorID, nil, "platform_owner")
	return actorID
}

// SeedMembership grants an actor a role on a group, or at platform scope when
// groupID is nil.
func SeedMembership(t *testing.T, db bun.IDB, actorID uuid.UUID, groupID *uuid.UUID, role string) {
	t.Helper()
	_, err := db.NewRaw(`
		INSERT INTO ont.memberships (id, actor_id, group_id, role)
		VALUES (?, ?, ?, ?)
	`, uuid.New(), actorID, groupID, role).Exec(context.Background())
	if err != nil {
		t.Fatalf("seed membership: %v", err)
	}
}

// SeedThing inserts an active thing into a group and returns its ID.
func SeedThing(t *testing.T, db bun.IDB, groupID uuid.UUID, thingType, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.NewRaw(`
		INSERT INTO ont.things (id, group_id, type, name, attributes, status)
		VALUES (?, ?, ?, ?, '{}', 'active')
	`, id, groupID, thingType, name).Exec(context.Background())
	if err != nil {
		t.Fatalf("seed thing: %v", err)
	}
	return id
}

package things

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/domain/groups"
	"github.com/substrate-hq/substrate/domain/typeregistry"
	"github.com/substrate-hq/substrate/internal/testutil"
	"github.com/substrate-hq/substrate/pkg/auth"
)

func newIntegrationService(db *bun.DB) *Service {
	log := slog.Default()
	evaluator := authz.NewEvaluator(authz.NewRepository(db, log), log)
	recorder := events.NewRepository(db, log)
	groupSvc := groups.NewService(db, groups.NewRepository(db, log), evaluator, recorder, log)
	registry := typeregistry.NewRegistry(typeregistry.NewRepository(db, log), log)
	return NewService(db, NewRepository(db, log), groupSvc, registry, evaluator, recorder, log)
}

func TestListScopesToGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newIntegrationService(db)
	ctx := context.Background()

	actor := &auth.Actor{ID: testutil.SeedPlatformOwner(t, db)}
	acmeID := testutil.SeedGroup(t, db, "acme")
	otherID := testutil.SeedGroup(t, db, "other")

	_, _, err := svc.Create(ctx, actor, CreateThingRequest{
		GroupID: &acmeID,
		Type:    "funnel",
		Name:    "onboarding",
	})
	require.NoError(t, err)

	// The thing is visible in its own group and invisible from any other.
	inAcme, _, err := svc.List(ctx, actor, ListParams{GroupID: &acmeID})
	require.NoError(t, err)
	assert.Len(t, inAcme, 1)

	inOther, _, err := svc.List(ctx, actor, ListParams{GroupID: &otherID})
	require.NoError(t, err)
	assert.Empty(t, inOther)
}

func TestMutationsAppendExactlyOneEvent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newIntegrationService(db)
	ctx := context.Background()

	actor := &auth.Actor{ID: testutil.SeedPlatformOwner(t, db)}
	groupID := testutil.SeedGroup(t, db, "acme")

	thing, created, err := svc.Create(ctx, actor, CreateThingRequest{
		GroupID: &groupID,
		Type:    "funnel",
		Name:    "onboarding",
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, events.TypeThingCreated, created.Type)

	eventCount := func() int {
		count, err := db.NewSelect().
			Model((*events.Event)(nil)).
			Where("target_id = ?", thing.ID).
			Count(ctx)
		require.NoError(t, err)
		return count
	}
	assert.Equal(t, 1, eventCount())

	name := "renamed"
	_, updated, err := svc.Update(ctx, actor, thing.ID, UpdateThingRequest{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, 2, eventCount())

	// A no-op update appends nothing.
	_, noop, err := svc.Update(ctx, actor, thing.ID, UpdateThingRequest{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, noop)
	assert.Equal(t, 2, eventCount())
}

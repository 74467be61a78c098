package connections

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/domain/groups"
	"github.com/substrate-hq/substrate/domain/things"
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
	return NewService(db, NewRepository(db, log), things.NewRepository(db, log), groupSvc, registry, evaluator, recorder, log)
}

func TestDisconnectCompactsOrderedFamily(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newIntegrationService(db)
	ctx := context.Background()

	actor := &auth.Actor{ID: testutil.SeedPlatformOwner(t, db)}
	groupID := testutil.SeedGroup(t, db, "acme")
	funnel := testutil.SeedThing(t, db, groupID, "funnel", "onboarding")
	steps := []uuid.UUID{
		testutil.SeedThing(t, db, groupID, "step", "signup"),
		testutil.SeedThing(t, db, groupID, "step", "verify"),
		testutil.SeedThing(t, db, groupID, "step", "activate"),
	}

	conns := make([]*Connection, 0, len(steps))
	for _, step := range steps {
		conn, _, err := svc.Connect(ctx, actor, ConnectRequest{
			FromThingID: funnel,
			ToThingID:   step,
			Type:        "contains",
			Ordered:     true,
		})
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	require.Equal(t, 1, *conns[1].Seq)

	// Dropping the middle member closes the gap: survivors renumber to 0..n-1.
	_, evt, err := svc.Disconnect(ctx, actor, conns[1].ID)
	require.NoError(t, err)
	require.NotNil(t, evt)
	assert.Equal(t, events.TypeConnectionDisconnected, evt.Type)

	repo := NewRepository(db, slog.Default())
	remaining, err := repo.ActiveOrdered(ctx, db, funnel, "contains")
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, conns[0].ID, remaining[0].ID)
	assert.Equal(t, 0, *remaining[0].Seq)
	assert.Equal(t, conns[2].ID, remaining[1].ID)
	assert.Equal(t, 1, *remaining[1].Seq)

	ord, err := repo.GetOrdering(ctx, db, funnel, "contains")
	require.NoError(t, err)
	assert.Equal(t, 1, ord.Version)
}

func TestConnectAppendsExactlyOneEvent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newIntegrationService(db)
	ctx := context.Background()

	actor := &auth.Actor{ID: testutil.SeedPlatformOwner(t, db)}
	groupID := testutil.SeedGroup(t, db, "acme")
	from := testutil.SeedThing(t, db, groupID, "funnel", "onboarding")
	to := testutil.SeedThing(t, db, groupID, "step", "signup")

	conn, evt, err := svc.Connect(ctx, actor, ConnectRequest{
		FromThingID: from,
		ToThingID:   to,
		Type:        "contains",
	})
	require.NoError(t, err)
	require.NotNil(t, evt)

	count, err := db.NewSelect().
		Model((*events.Event)(nil)).
		Where("target_id = ?", conn.ID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

package events

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/internal/testutil"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

func TestIngestExternalIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	log := slog.Default()
	repo := NewRepository(db, log)
	evaluator := authz.NewEvaluator(authz.NewRepository(db, log), log)
	svc := NewService(repo, evaluator, log)
	ctx := context.Background()

	groupID := testutil.SeedGroup(t, db, "acme")
	actor := &auth.Actor{ID: uuid.New()}

	first, err := svc.IngestExternal(ctx, actor, "shop", "order-42", IngestRequest{
		Type:    "order.created",
		GroupID: &groupID,
		Payload: map[string]any{"total": 99},
	})
	require.NoError(t, err)

	replay, err := svc.IngestExternal(ctx, actor, "shop", "order-42", IngestRequest{
		Type:    "order.created",
		GroupID: &groupID,
		Payload: map[string]any{"total": 99},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)

	count, err := db.NewSelect().
		Model((*Event)(nil)).
		Where("source = ?", "shop").
		Where("idempotency_key = ?", "order-42").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEventQueriesAreTenantScoped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	log := slog.Default()
	repo := NewRepository(db, log)
	evaluator := authz.NewEvaluator(authz.NewRepository(db, log), log)
	svc := NewService(repo, evaluator, log)
	ctx := context.Background()

	acmeID := testutil.SeedGroup(t, db, "acme")
	otherID := testutil.SeedGroup(t, db, "other")

	ownerID := testutil.SeedPlatformOwner(t, db)
	owner := &auth.Actor{ID: ownerID}

	memberID := uuid.New()
	testutil.SeedMembership(t, db, memberID, &acmeID, "org_user")
	member := &auth.Actor{ID: memberID}

	writer := uuid.New()
	for _, g := range []uuid.UUID{acmeID, otherID} {
		groupID := g
		require.NoError(t, repo.Append(ctx, db, &Event{
			Type:    TypeThingCreated,
			GroupID: &groupID,
			ActorID: writer,
		}))
	}

	// A member sees only their own tenant's slice.
	list, _, err := svc.QueryByType(ctx, member, TypeThingCreated, QueryScope{GroupID: &acmeID}, TimeRange{}, 10, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, acmeID, *list[0].GroupID)

	// The other tenant's events are off limits.
	_, _, err = svc.QueryByType(ctx, member, TypeThingCreated, QueryScope{GroupID: &otherID}, TimeRange{}, 10, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "forbidden"))

	// No scope at all is rejected outright.
	_, _, err = svc.QueryByActor(ctx, member, writer, QueryScope{}, TimeRange{}, 10, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "validation_error"))

	// The explicit platform view is reserved for platform owners.
	_, _, err = svc.QueryByActor(ctx, member, writer, QueryScope{Platform: true}, TimeRange{}, 10, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "forbidden"))

	all, _, err := svc.QueryByActor(ctx, owner, writer, QueryScope{Platform: true}, TimeRange{}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

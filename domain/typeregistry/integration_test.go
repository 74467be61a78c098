package typeregistry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/internal/testutil"
	"github.com/substrate-hq/substrate/pkg/auth"
)

func TestRegisterCommitsDefinitionAndEventTogether(t *testing.T) {
	db := testutil.SetupTestDB(t)
	log := slog.Default()
	repo := NewRepository(db, log)
	registry := NewRegistry(repo, log)
	evaluator := authz.NewEvaluator(authz.NewRepository(db, log), log)
	recorder := events.NewRepository(db, log)
	svc := NewService(db, repo, registry, evaluator, recorder, log)
	ctx := context.Background()

	actor := &auth.Actor{ID: testutil.SeedPlatformOwner(t, db)}

	_, err := svc.Register(ctx, actor, RegisterRequest{
		TypeName:   "funnel",
		Dimension:  DimensionThing,
		JSONSchema: map[string]any{"type": "object"},
	})
	require.NoError(t, err)

	stored, err := repo.Get(ctx, "funnel", DimensionThing)
	require.NoError(t, err)
	assert.True(t, stored.Enabled)

	eventCount := func(eventType string) int {
		count, err := db.NewSelect().
			Model((*events.Event)(nil)).
			Where("type = ?", eventType).
			Count(ctx)
		require.NoError(t, err)
		return count
	}
	assert.Equal(t, 1, eventCount(events.TypeTypeRegistered))

	require.NoError(t, svc.Disable(ctx, actor, "funnel", DimensionThing))

	disabled, err := repo.Get(ctx, "funnel", DimensionThing)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
	assert.Equal(t, 1, eventCount(events.TypeTypeDisabled))
}

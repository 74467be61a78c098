package knowledge

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/domain/things"
	"github.com/substrate-hq/substrate/internal/testutil"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

func newIntegrationService(db *bun.DB) *Service {
	log := slog.Default()
	evaluator := authz.NewEvaluator(authz.NewRepository(db, log), log)
	recorder := events.NewRepository(db, log)
	return NewService(db, NewRepository(db, log), things.NewRepository(db, log), evaluator, recorder, log)
}

func TestUpsertEmbeddingPinsModelDimension(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newIntegrationService(db)
	ctx := context.Background()

	actor := &auth.Actor{ID: testutil.SeedPlatformOwner(t, db)}
	groupID := testutil.SeedGroup(t, db, "acme")
	first := testutil.SeedThing(t, db, groupID, "doc", "guide")
	second := testutil.SeedThing(t, db, groupID, "doc", "faq")

	rec, evt, err := svc.UpsertEmbedding(ctx, actor, UpsertEmbeddingRequest{
		SourceThingID:  first,
		Text:           "getting started",
		Embedding:      []float32{0.1, 0.2, 0.3},
		EmbeddingModel: "model-v1",
	})
	require.NoError(t, err)
	require.NotNil(t, evt)
	assert.Equal(t, 3, *rec.EmbeddingDim)

	// The first write pinned the model at three dimensions.
	_, _, err = svc.UpsertEmbedding(ctx, actor, UpsertEmbeddingRequest{
		SourceThingID:  second,
		Text:           "faq answers",
		Embedding:      []float32{0.1, 0.2, 0.3, 0.4},
		EmbeddingModel: "model-v1",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "validation_error"))

	// A different model is free to pick its own dimension.
	_, _, err = svc.UpsertEmbedding(ctx, actor, UpsertEmbeddingRequest{
		SourceThingID:  second,
		Text:           "faq answers",
		Embedding:      []float32{0.1, 0.2, 0.3, 0.4},
		EmbeddingModel: "model-v2",
	})
	require.NoError(t, err)
}

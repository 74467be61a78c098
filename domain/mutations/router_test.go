package mutations

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/internal/config"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

// Shared across tests: prometheus collectors register once per process.
var testMetrics = NewMetrics()

func newTestRouter(rateCfg config.RateLimitConfig) *Router {
	return &Router{
		ops:     make(map[string]opFunc),
		limiter: newGroupLimiter(rateCfg),
		metrics: testMetrics,
		log:     slog.Default(),
	}
}

func TestDispatchUnknownOperation(t *testing.T) {
	r := newTestRouter(config.RateLimitConfig{MutationsPerSecond: 50, MutationBurst: 100})
	actor := &auth.Actor{ID: uuid.New()}

	_, err := r.Dispatch(context.Background(), actor, Request{
		Operation: "thing.vaporize",
		Args:      json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "unsupported_operation"))
}

func TestDispatchRateLimited(t *testing.T) {
	// Zero burst rejects the first call already.
	r := newTestRouter(config.RateLimitConfig{MutationsPerSecond: 1, MutationBurst: 0})
	r.register("noop", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		return &Response{}, nil
	})
	actor := &auth.Actor{ID: uuid.New()}

	_, err := r.Dispatch(context.Background(), actor, Request{
		Operation: "noop",
		Args:      json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "rate_limited"))
}

func TestDispatchRoutesToRegisteredOp(t *testing.T) {
	r := newTestRouter(config.RateLimitConfig{MutationsPerSecond: 50, MutationBurst: 100})
	id := uuid.New()
	r.register("noop", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		return &Response{ID: id, Result: "ok"}, nil
	})
	actor := &auth.Actor{ID: uuid.New()}

	resp, err := r.Dispatch(context.Background(), actor, Request{
		Operation: "noop",
		Args:      json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, "ok", resp.Result)
}

func TestDispatchCarriesAppendedEvent(t *testing.T) {
	r := newTestRouter(config.RateLimitConfig{MutationsPerSecond: 50, MutationBurst: 100})
	targetID := uuid.New()
	evt := &events.Event{ID: uuid.New(), Type: events.TypeThingCreated, TargetID: &targetID}
	r.register("noop", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		return &Response{ID: targetID, Result: "ok", Event: evt}, nil
	})
	actor := &auth.Actor{ID: uuid.New()}

	resp, err := r.Dispatch(context.Background(), actor, Request{
		Operation: "noop",
		Args:      json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Event)
	assert.Equal(t, events.TypeThingCreated, resp.Event.Type)
	assert.Equal(t, evt.ID, resp.Event.ID)
}

func TestLimiterKey(t *testing.T) {
	actor := &auth.Actor{ID: uuid.New()}
	groupID := uuid.New()

	key := limiterKey(actor, json.RawMessage(`{"groupId":"`+groupID.String()+`"}`))
	assert.Equal(t, groupID.String(), key)

	// No group falls back to the actor bucket.
	key = limiterKey(actor, json.RawMessage(`{"name":"x"}`))
	assert.Equal(t, "actor:"+actor.ID.String(), key)

	key = limiterKey(actor, json.RawMessage(`not json`))
	assert.Equal(t, "actor:"+actor.ID.String(), key)
}

func TestDecodeArgs(t *testing.T) {
	var into struct {
		Name string `json:"name"`
	}
	require.NoError(t, decodeArgs(json.RawMessage(`{"name":"x"}`), &into))
	assert.Equal(t, "x", into.Name)

	err := decodeArgs(nil, &into)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "validation_error"))

	err = decodeArgs(json.RawMessage(`{"name":42}`), &into)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "validation_error"))
}

func TestGroupLimiterIsolatesKeys(t *testing.T) {
	limiter := newGroupLimiter(config.RateLimitConfig{MutationsPerSecond: 1, MutationBurst: 1})

	assert.True(t, limiter.Allow("tenant-a"))
	assert.False(t, limiter.Allow("tenant-a"))
	// A different tenant still has its own bucket.
	assert.True(t, limiter.Allow("tenant-b"))
}

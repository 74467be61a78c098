package queries

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

var testMetrics = NewMetrics()

func newTestRouter() *Router {
	return &Router{
		ops:     make(map[string]opFunc),
		metrics: testMetrics,
		log:     slog.Default(),
	}
}

func TestDispatchUnknownOperation(t *testing.T) {
	r := newTestRouter()
	actor := &auth.Actor{ID: uuid.New()}

	_, err := r.Dispatch(context.Background(), actor, Request{
		Operation: "thing.count",
		Args:      json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "unsupported_operation"))
}

func TestDispatchRoutesToRegisteredOp(t *testing.T) {
	r := newTestRouter()
	r.register("noop", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		return &Response{Items: []string{"a"}}, nil
	})
	actor := &auth.Actor{ID: uuid.New()}

	resp, err := r.Dispatch(context.Background(), actor, Request{
		Operation: "noop",
		Args:      json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, resp.Items)
}

func TestDecodeArgs(t *testing.T) {
	var into struct {
		GroupID *uuid.UUID `json:"groupId"`
	}
	id := uuid.New()
	require.NoError(t, decodeArgs(json.RawMessage(`{"groupId":"`+id.String()+`"}`), &into))
	require.NotNil(t, into.GroupID)
	assert.Equal(t, id, *into.GroupID)

	err := decodeArgs(nil, &into)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "validation_error"))
}

package events

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-hq/substrate/domain/authz"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

type fakePerms struct {
	platform  bool
	canErr    error
	lastGroup *uuid.UUID
}

func (f *fakePerms) CanPerform(_ context.Context, _ *auth.Actor, _ authz.Action, resource authz.Resource) error {
	f.lastGroup = resource.GroupID
	return f.canErr
}

func (f *fakePerms) HasPlatformScope(_ context.Context, _ *auth.Actor) (bool, error) {
	return f.platform, nil
}

func newTestService(perms PermissionChecker) *Service {
	log := slog.Default()
	if perms == nil {
		perms = &fakePerms{}
	}
	return NewService(NewRepository(nil, log), perms, log)
}

func TestQueryRequiresGroupScope(t *testing.T) {
	svc := newTestService(&fakePerms{platform: true})
	actor := &auth.Actor{ID: uuid.New()}
	ctx := context.Background()
	id := uuid.New()
	typ := "thing.created"

	// Omitting groupId without asking for the platform view is rejected even
	// for actors who hold platform scope.
	tests := []struct {
		name string
		run  func() error
	}{
		{"byActor", func() error {
			_, _, err := svc.QueryByActor(ctx, actor, id, QueryScope{}, TimeRange{}, 10, nil)
			return err
		}},
		{"byTarget", func() error {
			_, _, err := svc.QueryByTarget(ctx, actor, id, QueryScope{}, TimeRange{}, 10, nil)
			return err
		}},
		{"byType", func() error {
			_, _, err := svc.QueryByType(ctx, actor, typ, QueryScope{}, TimeRange{}, 10, nil)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, apperror.IsCode(err, "validation_error"))
		})
	}
}

func TestQueryPlatformViewNeedsPlatformScope(t *testing.T) {
	svc := newTestService(&fakePerms{platform: false})
	actor := &auth.Actor{ID: uuid.New()}

	_, _, err := svc.QueryByActor(context.Background(), actor, uuid.New(), QueryScope{Platform: true}, TimeRange{}, 10, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "forbidden"))
}

func TestQueryGroupScopeConsultsEvaluator(t *testing.T) {
	perms := &fakePerms{canErr: apperror.NewForbidden("read", "event")}
	svc := newTestService(perms)
	actor := &auth.Actor{ID: uuid.New()}
	groupID := uuid.New()

	_, _, err := svc.QueryByTarget(context.Background(), actor, uuid.New(), QueryScope{GroupID: &groupID}, TimeRange{}, 10, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "forbidden"))
	require.NotNil(t, perms.lastGroup)
	assert.Equal(t, groupID, *perms.lastGroup)
}

func TestIngestExternalValidation(t *testing.T) {
	svc := newTestService(nil)
	actor := &auth.Actor{ID: uuid.New()}
	ctx := context.Background()

	tests := []struct {
		name   string
		source string
		key    string
		req    IngestRequest
	}{
		{"missing source", "", "k-1", IngestRequest{Type: "order.created"}},
		{"missing idempotency key", "shop", "", IngestRequest{Type: "order.created"}},
		{"missing type", "shop", "k-1", IngestRequest{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.IngestExternal(ctx, actor, tt.source, tt.key, tt.req)
			require.Error(t, err)
			assert.True(t, apperror.IsCode(err, "validation_error"))
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	id := uuid.New()

	encoded := encodeCursor(at, id)
	decoded, err := decodeCursor(encoded)
	require.NoError(t, err)

	assert.True(t, decoded.CreatedAt.Equal(at))
	assert.Equal(t, id, decoded.ID)
}

func TestCursorDecodeRejectsGarbage(t *testing.T) {
	_, err := decodeCursor("not json")
	assert.Error(t, err)
}

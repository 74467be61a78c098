package things

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
)

func TestMergeAttributes(t *testing.T) {
	tests := []struct {
		name     string
		existing map[string]any
		patch    map[string]any
		want     map[string]any
	}{
		{
			name:     "adds new keys",
			existing: map[string]any{"a": 1},
			patch:    map[string]any{"b": 2},
			want:     map[string]any{"a": 1, "b": 2},
		},
		{
			name:     "replaces per top-level key",
			existing: map[string]any{"a": 1, "b": 2},
			patch:    map[string]any{"a": 9},
			want:     map[string]any{"a": 9, "b": 2},
		},
		{
			name:     "null clears a key",
			existing: map[string]any{"a": 1, "b": 2},
			patch:    map[string]any{"b": nil},
			want:     map[string]any{"a": 1},
		},
		{
			name:     "nested values replace wholesale, not deep-merge",
			existing: map[string]any{"addr": map[string]any{"city": "Oslo", "zip": "0150"}},
			patch:    map[string]any{"addr": map[string]any{"city": "Bergen"}},
			want:     map[string]any{"addr": map[string]any{"city": "Bergen"}},
		},
		{
			name:     "empty patch keeps everything",
			existing: map[string]any{"a": 1},
			patch:    map[string]any{},
			want:     map[string]any{"a": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeAttributes(tt.existing, tt.patch))
		})
	}
}

func TestUpdateRejectsGroupChange(t *testing.T) {
	// The groupId check runs before any dependency is touched, so a bare
	// service is enough to verify immutability.
	svc := &Service{}
	groupID := uuid.New()

	_, _, err := svc.Update(context.Background(), &auth.Actor{ID: uuid.New()}, uuid.New(), UpdateThingRequest{
		GroupID: &groupID,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "validation_error"))
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusDraft, StatusActive, StatusPublished, StatusArchived} {
		assert.True(t, ValidStatus(s), s)
	}
	assert.False(t, ValidStatus("deleted"))
}

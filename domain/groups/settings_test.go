package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeSettings(t *testing.T) {
	tests := []struct {
		name  string
		chain []map[string]any
		want  map[string]any
	}{
		{
			name:  "empty chain",
			chain: nil,
			want:  map[string]any{},
		},
		{
			name: "single group",
			chain: []map[string]any{
				{"maxThings": 100},
			},
			want: map[string]any{"maxThings": 100},
		},
		{
			name: "child overrides parent per key",
			chain: []map[string]any{
				{"maxThings": 1000, "maxConnections": 5000},
				{"maxThings": 100},
			},
			want: map[string]any{"maxThings": 100, "maxConnections": 5000},
		},
		{
			name: "closest ancestor wins across three levels",
			chain: []map[string]any{
				{"maxThings": 1000, "retention": "90d"},
				{"maxThings": 500},
				{"maxThings": 50},
			},
			want: map[string]any{"maxThings": 50, "retention": "90d"},
		},
		{
			name: "unset keys inherit",
			chain: []map[string]any{
				{"maxThings": 1000},
				{},
			},
			want: map[string]any{"maxThings": 1000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeSettings(tt.chain))
		})
	}
}

func TestQuotaFromSettings(t *testing.T) {
	assert.Equal(t, 100, QuotaFromSettings(map[string]any{"maxThings": 100}, SettingMaxThings))
	assert.Equal(t, 100, QuotaFromSettings(map[string]any{"maxThings": int64(100)}, SettingMaxThings))
	// JSON-decoded numbers arrive as float64.
	assert.Equal(t, 100, QuotaFromSettings(map[string]any{"maxThings": float64(100)}, SettingMaxThings))

	// Missing or non-numeric means unlimited.
	assert.Equal(t, 0, QuotaFromSettings(map[string]any{}, SettingMaxThings))
	assert.Equal(t, 0, QuotaFromSettings(map[string]any{"maxThings": "many"}, SettingMaxThings))
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusActive, StatusInactive, StatusSuspended, StatusArchived} {
		assert.True(t, ValidStatus(s), s)
	}
	assert.False(t, ValidStatus("deleted"))
	assert.False(t, ValidStatus(""))
}

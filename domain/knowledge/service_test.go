package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeLabels(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		added    []string
		want     []string
	}{
		{
			name:  "fresh set",
			added: []string{"person", "customer"},
			want:  []string{"customer", "person"},
		},
		{
			name:     "duplicates collapse",
			existing: []string{"person"},
			added:    []string{"person", "vip"},
			want:     []string{"person", "vip"},
		},
		{
			name:     "existing preserved",
			existing: []string{"a", "b"},
			added:    []string{"c"},
			want:     []string{"a", "b", "c"},
		},
		{
			name:     "idempotent reattach",
			existing: []string{"a", "b"},
			added:    []string{"a", "b"},
			want:     []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeLabels(tt.existing, tt.added))
		})
	}
}

package pgutils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatVector(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want string
	}{
		{"empty", nil, "[]"},
		{"single", []float32{0.5}, "[0.5]"},
		{"multiple", []float32{0.1, 0.2, 0.3}, "[0.1,0.2,0.3]"},
		{"negative and zero", []float32{-1, 0, 1}, "[-1,0,1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatVector(tt.in))
		})
	}
}

func TestFormatTextArray(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"empty", nil, "{}"},
		{"plain", []string{"a", "b"}, "{a,b}"},
		{"empty element quoted", []string{""}, `{""}`},
		{"space quoted", []string{"a b"}, `{"a b"}`},
		{"comma quoted", []string{"a,b"}, `{"a,b"}`},
		{"quote escaped", []string{`a"b`}, `{"a\"b"}`},
		{"backslash escaped", []string{`a\b`}, `{"a\\b"}`},
		{"braces quoted", []string{"{x}"}, `{"{x}"}`},
		{"attribute path", []string{"contact", "email"}, "{contact,email}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTextArray(tt.in))
		})
	}
}

func TestErrorCodeDetection(t *testing.T) {
	unique := errors.New(`ERROR: duplicate key value violates unique constraint "memberships_actor_group_key" (SQLSTATE 23505)`)
	fk := errors.New(`ERROR: insert or update violates foreign key constraint (SQLSTATE 23503)`)

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))

	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(unique))

	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("context deadline exceeded")))
}

package typeregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"email": map[string]any{"type": "string"},
			"age":   map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []any{"email"},
	}
}

func TestCompileSchemaAndValidate(t *testing.T) {
	resolved, err := compileSchema(personSchema())
	require.NoError(t, err)

	assert.NoError(t, resolved.Validate(map[string]any{"email": "a@b.c", "age": 30}))
	assert.Error(t, resolved.Validate(map[string]any{"age": 30}), "missing required email")
	assert.Error(t, resolved.Validate(map[string]any{"email": "a@b.c", "age": -1}))
	assert.Error(t, resolved.Validate(map[string]any{"email": 42}))
}

func TestCompileSchemaRejectsInvalid(t *testing.T) {
	_, err := compileSchema(map[string]any{
		"type": 42,
	})
	assert.Error(t, err)
}

func TestValidDimension(t *testing.T) {
	assert.True(t, ValidDimension(DimensionThing))
	assert.True(t, ValidDimension(DimensionConnection))
	assert.False(t, ValidDimension("edge"))
	assert.False(t, ValidDimension(""))
}

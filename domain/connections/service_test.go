package connections

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-hq/substrate/pkg/apperror"
)

func orderedFamily(n int) []*Connection {
	family := make([]*Connection, n)
	for i := range family {
		seq := i
		family[i] = &Connection{ID: uuid.New(), Seq: &seq}
	}
	return family
}

func idsOf(family []*Connection) []uuid.UUID {
	ids := make([]uuid.UUID, len(family))
	for i, c := range family {
		ids[i] = c.ID
	}
	return ids
}

func TestValidatePermutation(t *testing.T) {
	family := orderedFamily(3)

	t.Run("exact permutation passes", func(t *testing.T) {
		ids := idsOf(family)
		reversed := []uuid.UUID{ids[2], ids[0], ids[1]}
		assert.NoError(t, validatePermutation(family, reversed))
	})

	t.Run("identity order passes", func(t *testing.T) {
		assert.NoError(t, validatePermutation(family, idsOf(family)))
	})

	t.Run("missing member rejected", func(t *testing.T) {
		ids := idsOf(family)
		err := validatePermutation(family, ids[:2])
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, "invalid_sequence"))
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		ids := idsOf(family)
		err := validatePermutation(family, []uuid.UUID{ids[0], ids[0], ids[1]})
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, "invalid_sequence"))
	})

	t.Run("foreign id rejected", func(t *testing.T) {
		ids := idsOf(family)
		err := validatePermutation(family, []uuid.UUID{ids[0], ids[1], uuid.New()})
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, "invalid_sequence"))
	})

	t.Run("extra member rejected", func(t *testing.T) {
		ids := append(idsOf(family), uuid.New())
		err := validatePermutation(family, ids)
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, "invalid_sequence"))
	})

	t.Run("empty family accepts empty order", func(t *testing.T) {
		assert.NoError(t, validatePermutation(nil, nil))
	})
}

func TestSameGroup(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	assert.True(t, sameGroup(&a, &a))
	assert.True(t, sameGroup(nil, nil))
	assert.False(t, sameGroup(&a, &b))
	assert.False(t, sameGroup(&a, nil))
	assert.False(t, sameGroup(nil, &b))
}

func TestConnectionActive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Connection{}).Active(now))
	assert.True(t, (&Connection{ValidTo: &future}).Active(now))
	assert.False(t, (&Connection{ValidTo: &past}).Active(now))
}

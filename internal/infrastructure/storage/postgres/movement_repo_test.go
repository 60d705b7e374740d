package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botiquin/internal/core/id"
)

func TestChunkIDs(t *testing.T) {
	makeIDs := func(n int) []id.ID {
		ids := make([]id.ID, n)
		for i := range ids {
			ids[i] = id.New()
		}
		return ids
	}

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, chunkIDs(nil, lineBatchSize))
		assert.Nil(t, chunkIDs([]id.ID{}, lineBatchSize))
	})

	t.Run("below batch size", func(t *testing.T) {
		ids := makeIDs(3)
		chunks := chunkIDs(ids, lineBatchSize)
		require.Len(t, chunks, 1)
		assert.Equal(t, ids, chunks[0])
	})

	t.Run("exact multiple", func(t *testing.T) {
		chunks := chunkIDs(makeIDs(200), lineBatchSize)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], 100)
		assert.Len(t, chunks[1], 100)
	})

	t.Run("remainder", func(t *testing.T) {
		ids := makeIDs(205)
		chunks := chunkIDs(ids, lineBatchSize)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[2], 5)

		// No id lost or duplicated.
		seen := make(map[id.ID]bool)
		for _, chunk := range chunks {
			for _, v := range chunk {
				assert.False(t, seen[v])
				seen[v] = true
			}
		}
		assert.Len(t, seen, 205)
	})
}

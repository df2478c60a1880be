package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk_AddParamAssignsOffsets(t *testing.T) {
	c := &Chunk{ID: 0, Capacity: 100, DType: Float32}
	a := newTestParam(0, "a", 40)
	b := newTestParam(1, "b", 30)

	assert.NoError(t, c.AddParam(a))
	assert.NoError(t, c.AddParam(b))
	assert.Equal(t, int64(0), a.Offset())
	assert.Equal(t, int64(40), b.Offset())
	assert.Equal(t, int64(70), c.UsedElems())
	assert.Equal(t, StateHold, a.State())
}

func TestChunk_AddParamOverCapacity(t *testing.T) {
	c := &Chunk{ID: 0, Capacity: 50, DType: Float32}
	assert.NoError(t, c.AddParam(newTestParam(0, "a", 40)))
	err := c.AddParam(newTestParam(1, "b", 20))
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, int64(40), c.UsedElems(), "failed add leaves the chunk unchanged")
}

func TestChunk_AddParamRejectsPlacedParam(t *testing.T) {
	a := &Chunk{ID: 0, Capacity: 100, DType: Float32}
	b := &Chunk{ID: 1, Capacity: 100, DType: Float32}
	p := newTestParam(0, "p", 10)
	assert.NoError(t, a.AddParam(p))
	assert.ErrorIs(t, b.AddParam(p), ErrInvariant)
	assert.Equal(t, 0, p.ChunkID())
}

func TestChunk_UnpinWithoutPin_Panics(t *testing.T) {
	c := &Chunk{ID: 3}
	assert.PanicsWithValue(t, "Chunk 3: unpin without matching pin", func() { c.Unpin() })
}

func TestChunk_StateDerivation(t *testing.T) {
	c := &Chunk{ID: 0, Capacity: 10, DType: Float32}
	assert.Equal(t, ChunkReleased, c.State())
	assert.Equal(t, TierNone, c.Tier())

	c.payload = &Buffer{dtype: Float32, elems: 10, data: make([]byte, 40), tier: TierHost}
	assert.Equal(t, ChunkHold, c.State())
	assert.Equal(t, TierHost, c.Tier())

	c.numInCompute = 1
	assert.Equal(t, ChunkCompute, c.State())
}

func TestChunk_EvictableRequiresResidentUnpinnedIdle(t *testing.T) {
	c := &Chunk{ID: 0, Capacity: 10, DType: Float32}
	assert.False(t, c.evictable(), "released chunks have nothing to evict")

	c.payload = &Buffer{dtype: Float32, elems: 10, data: make([]byte, 40), tier: TierHost}
	assert.True(t, c.evictable())

	c.Pin()
	assert.False(t, c.evictable())
	c.Unpin()

	c.numInCompute = 1
	assert.False(t, c.evictable())
}

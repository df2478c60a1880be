package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSimAllocator_NonPositiveCapacity_Panics(t *testing.T) {
	assert.PanicsWithValue(t,
		"SimAllocator: accelerator capacity must be > 0, got 0",
		func() { NewSimAllocator(0, 100) })
	assert.PanicsWithValue(t,
		"SimAllocator: host capacity must be > 0, got -1",
		func() { NewSimAllocator(100, -1) })
}

func TestSimAllocator_TracksUsedBytes(t *testing.T) {
	a := NewSimAllocator(1000, 2000)

	buf, err := a.Allocate(TierAccelerator, 100, Float32)
	assert.NoError(t, err)
	assert.Equal(t, int64(400), a.Used(TierAccelerator))
	assert.Equal(t, int64(0), a.Used(TierHost))

	a.Free(buf)
	assert.Equal(t, int64(0), a.Used(TierAccelerator))
}

func TestSimAllocator_OverCapacity(t *testing.T) {
	// GIVEN an accelerator tier with room for exactly 100 float32s
	a := NewSimAllocator(400, 2000)
	_, err := a.Allocate(TierAccelerator, 100, Float32)
	assert.NoError(t, err)

	// WHEN one more element is requested
	_, err = a.Allocate(TierAccelerator, 1, Float32)

	// THEN the request fails and the failed reservation is rolled back
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.Equal(t, int64(400), a.Used(TierAccelerator))
}

func TestSimAllocator_UnknownTier(t *testing.T) {
	a := NewSimAllocator(400, 400)
	_, err := a.Allocate(TierNone, 4, Float32)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, int64(0), a.Capacity(TierNone))
}

func TestSimAllocator_FreeNilIsNoOp(t *testing.T) {
	a := NewSimAllocator(400, 400)
	a.Free(nil)
	assert.Equal(t, int64(0), a.Used(TierAccelerator))
}

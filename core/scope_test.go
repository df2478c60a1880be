package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hetmem/hetmem/core/internal/testutil"
)

// newScopedClient builds a rank-0 client of the given world size with a
// collective stub, 10-element chunks, and roomy tiers.
func newScopedClient(world int) *Client {
	var coll Collective
	if world > 1 {
		coll = &stubCollective{rank: 0, world: world}
	}
	return NewClient(testConfig(10), NewSimAllocator(1<<20, 1<<20), coll, 0, world)
}

func TestScope_FinalizePadsChunksToWorldSize(t *testing.T) {
	// GIVEN six single-chunk registrations on a world of four ranks
	c := newScopedClient(4)
	scope := NewScope(c)
	for i := 0; i < 6; i++ {
		p := scope.NewParam(fmt.Sprintf("p%d", i), []int64{10}, nil)
		assert.NoError(t, scope.Register(fmt.Sprintf("m%d", i), p))
	}
	assert.Equal(t, 6, c.Chunks().Len())

	// WHEN the build is finalized
	assert.NoError(t, scope.Finalize())

	// THEN two dummy chunks pad the count to a multiple of the world size
	assert.Equal(t, 8, c.Chunks().Len())
	assert.True(t, c.Chunks().Get(6).IsDummy())
	assert.True(t, c.Chunks().Get(7).IsDummy())

	// and every chunk belongs to a comm group of one chunk per rank
	for _, chunk := range c.Chunks().Chunks() {
		assert.NotNil(t, chunk.Group)
		assert.Len(t, chunk.Group.Chunks, 4)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, c.Chunks().Get(0).Group.Chunks)
	assert.Equal(t, []int{4, 5, 6, 7}, c.Chunks().Get(5).Group.Chunks)
}

func TestScope_OwnershipFollowsChunkIDModuloWorld(t *testing.T) {
	c := newScopedClient(4)
	scope := NewScope(c)
	params := make([]*Param, 6)
	for i := range params {
		params[i] = scope.NewParam(fmt.Sprintf("p%d", i), []int64{10}, nil)
		assert.NoError(t, scope.Register(fmt.Sprintf("m%d", i), params[i]))
	}
	assert.NoError(t, scope.Finalize())

	for i, p := range params {
		wantLocal := i%4 == 0 // rank 0 owns chunks 0 and 4
		assert.Equal(t, wantLocal, p.IsLocal(), "param %d", i)
		assert.Equal(t, wantLocal, c.IsLocalParam(p))
	}
}

func TestScope_NonLocalParamsAreDetachedAtRegistration(t *testing.T) {
	c := newScopedClient(2)
	scope := NewScope(c)
	local := scope.NewParam("local", []int64{10}, nil)
	assert.NoError(t, scope.Register("m0", local))
	remote := scope.NewParam("remote", []int64{10}, nil)
	assert.NoError(t, scope.Register("m1", remote))

	// This rank never holds remote bytes outside a fetch: the view is a
	// detached placeholder from the moment of registration.
	assert.False(t, remote.IsLocal())
	assert.NotNil(t, remote.View())
	assert.Equal(t, int64(0), remote.View().Elems())
	assert.Nil(t, local.View(), "local params have no view until accessed")
}

func TestScope_FinalizeCopiesInitValues(t *testing.T) {
	// GIVEN a local parameter registered with initial values
	c := newScopedClient(1)
	scope := NewScope(c)
	init := testutil.Ramp(10, 100)
	p := scope.NewParam("w", []int64{10}, init)
	assert.NoError(t, scope.Register("m0", p))

	// WHEN the build is finalized
	assert.NoError(t, scope.Finalize())

	// THEN the chunk payload holds the values, visible through any access
	assert.Equal(t, TierHost, c.Chunks().Get(0).Tier())
	assert.NoError(t, c.Access(p, TierAccelerator))
	for i := int64(0); i < 10; i++ {
		assert.Equal(t, init[i], p.View().Float(i))
	}
	assert.NoError(t, c.Release(p))
}

func TestScope_FinalizeRejectsInitLengthMismatch(t *testing.T) {
	c := newScopedClient(1)
	scope := NewScope(c)
	p := scope.NewParam("w", []int64{10}, []float32{1, 2, 3})
	assert.NoError(t, scope.Register("m0", p))
	assert.ErrorIs(t, scope.Finalize(), ErrInvariant)
}

func TestScope_RegisterAfterFinalizeFails(t *testing.T) {
	c := newScopedClient(1)
	scope := NewScope(c)
	assert.NoError(t, scope.Finalize())

	p := scope.NewParam("late", []int64{5}, nil)
	assert.ErrorIs(t, scope.Register("late", p), ErrInvariant)
	assert.ErrorIs(t, scope.Finalize(), ErrInvariant)
}

func TestScope_ExternalViewRegistersUnmanagedParams(t *testing.T) {
	c := newScopedClient(1)
	scope := NewScope(c)
	ext := scope.External()

	p := ext.NewParam("head", []int64{10}, nil)
	assert.Equal(t, External, p.Kind)
	assert.Equal(t, Float32, p.DType)

	// Registration through the external view never touches the chunks.
	assert.NoError(t, ext.Register("head", p))
	assert.Equal(t, 0, c.Chunks().Len())

	// The views share one ID sequence and one finalized flag.
	q := scope.NewParam("w", []int64{10}, nil)
	assert.Equal(t, p.ID+1, q.ID)
	assert.NoError(t, scope.Finalize())
	assert.ErrorIs(t, ext.Register("late", ext.NewParam("x", []int64{2}, nil)), ErrInvariant)
}

func TestScope_ManagedParamsInheritChunkDType(t *testing.T) {
	cfg := testConfig(10)
	cfg.Chunk.DType = "float16"
	c := NewClient(cfg, NewSimAllocator(1<<20, 1<<20), nil, 0, 1)
	scope := NewScope(c)

	p := scope.NewParam("w", []int64{10}, nil)
	assert.Equal(t, Float16, p.DType)
	assert.Equal(t, External, scope.External().NewParam("e", []int64{10}, nil).Kind)
}

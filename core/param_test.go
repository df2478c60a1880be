package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewParam_NumelIsShapeProduct(t *testing.T) {
	p := NewParam(0, "w", []int64{4, 8}, Float32, ChunkManaged)
	assert.Equal(t, int64(32), p.Numel)
	assert.Equal(t, StateFree, p.State())
	assert.Equal(t, -1, p.ChunkID())
}

func TestNewParam_EmptyShapeIsZeroElements(t *testing.T) {
	// Dummy-chunk placeholders carry no elements at all.
	p := NewParam(-1, "dummy", nil, Float32, ChunkManaged)
	assert.Equal(t, int64(0), p.Numel)
}

func TestParamState_LegalTransitions(t *testing.T) {
	legal := []struct{ from, to ParamState }{
		{StateFree, StateHold},
		{StateHold, StateCompute},
		{StateHold, StateReleased},
		{StateHold, StateHold},
		{StateCompute, StateHold},
		{StateReleased, StateHold},
		{StateReleased, StateCompute}, // post-fetch access
	}
	for _, tr := range legal {
		assert.True(t, canTransition(tr.from, tr.to), "%s -> %s must be legal", tr.from, tr.to)
	}
}

func TestParamState_IllegalTransitions(t *testing.T) {
	illegal := []struct{ from, to ParamState }{
		{StateFree, StateCompute},
		{StateFree, StateReleased},
		{StateCompute, StateReleased},
		{StateCompute, StateFree},
		{StateHold, StateFree},
		{StateReleased, StateFree},
	}
	for _, tr := range illegal {
		assert.False(t, canTransition(tr.from, tr.to), "%s -> %s must be illegal", tr.from, tr.to)
	}
}

func TestParam_SetStateRejectsIllegalTransition(t *testing.T) {
	p := newTestParam(0, "w", 8)
	err := p.setState(StateCompute) // Free -> Compute skips placement
	assert.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, StateFree, p.State(), "failed transition must not change state")
}

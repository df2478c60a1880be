package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetronome_StartsAtWarmupStepZero(t *testing.T) {
	m := NewMetronome()
	assert.Equal(t, int64(0), m.Step())
	assert.Equal(t, StageWarmup, m.Stage())
	assert.True(t, m.IsWarmup())
}

func TestMetronome_TickAdvancesStep(t *testing.T) {
	m := NewMetronome()
	m.Tick()
	m.Tick()
	m.Tick()
	assert.Equal(t, int64(3), m.Step())
}

func TestMetronome_ResetStepRewindsStepOnly(t *testing.T) {
	// GIVEN a metronome advanced into steady state
	m := NewMetronome()
	m.Tick()
	m.Tick()
	m.SetStage(StageSteady)

	// WHEN the step counter is reset at an iteration boundary
	m.ResetStep()

	// THEN the step rewinds but the stage is untouched
	assert.Equal(t, int64(0), m.Step())
	assert.Equal(t, StageSteady, m.Stage())
	assert.False(t, m.IsWarmup())
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "warmup", StageWarmup.String())
	assert.Equal(t, "steady", StageSteady.String())
}

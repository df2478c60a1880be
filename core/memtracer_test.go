package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemTracer_WarmupAcceleratorBudget(t *testing.T) {
	// GIVEN 1000 accelerator bytes and a 0.1 warmup chunk ratio
	cfg := TracerConfig{
		OverallAccelRatio:     0.8,
		OverallHostRatio:      0.5,
		WarmupAccelChunkRatio: 0.1,
		MarginUseRatio:        0.5,
	}
	m := NewMetronome()
	tr := NewMemTracer(cfg, NewSimAllocator(1000, 2000), m)

	// THEN warmup caps accelerator chunks at 100 bytes
	assert.Equal(t, int64(100), tr.AvailableBudget(TierAccelerator))

	tr.AddChunkBytes(TierAccelerator, 40)
	assert.Equal(t, int64(60), tr.AvailableBudget(TierAccelerator))
}

func TestMemTracer_SteadyBudgetAppliesOverallAndMargin(t *testing.T) {
	cfg := TracerConfig{
		OverallAccelRatio:     0.8,
		OverallHostRatio:      0.5,
		WarmupAccelChunkRatio: 0.1,
		MarginUseRatio:        0.5,
	}
	m := NewMetronome()
	tr := NewMemTracer(cfg, NewSimAllocator(1000, 2000), m)
	m.SetStage(StageSteady)

	// (1000 * 0.8 - 0 overhead) * 0.5 = 400
	assert.Equal(t, int64(400), tr.AvailableBudget(TierAccelerator))

	tr.AddChunkBytes(TierAccelerator, 40)
	assert.Equal(t, int64(360), tr.AvailableBudget(TierAccelerator))
}

func TestMemTracer_SteadyBudgetSubtractsSampledOverhead(t *testing.T) {
	// GIVEN 100 allocator bytes in use of which only 40 are chunk bytes
	cfg := TracerConfig{
		OverallAccelRatio:     0.8,
		OverallHostRatio:      0.5,
		WarmupAccelChunkRatio: 0.1,
		MarginUseRatio:        0.5,
	}
	m := NewMetronome()
	alloc := NewSimAllocator(1000, 2000)
	tr := NewMemTracer(cfg, alloc, m)
	m.SetStage(StageSteady)

	_, err := alloc.Allocate(TierAccelerator, 25, Float32) // 100 bytes
	assert.NoError(t, err)
	tr.AddChunkBytes(TierAccelerator, 40)

	// WHEN the sampler observes usage
	tr.sampleOnce()

	// THEN 60 bytes register as non-chunk overhead:
	// (1000 * 0.8 - 60) * 0.5 - 40 chunk bytes = 330
	assert.Equal(t, int64(60), tr.overheadEstimate(TierAccelerator))
	assert.Equal(t, int64(330), tr.AvailableBudget(TierAccelerator))
}

func TestMemTracer_HostBudgetIgnoresStage(t *testing.T) {
	cfg := TracerConfig{
		OverallAccelRatio:     0.8,
		OverallHostRatio:      0.5,
		WarmupAccelChunkRatio: 0.1,
		MarginUseRatio:        0.5,
	}
	m := NewMetronome()
	tr := NewMemTracer(cfg, NewSimAllocator(1000, 2000), m)

	assert.Equal(t, int64(1000), tr.AvailableBudget(TierHost))
	m.SetStage(StageSteady)
	assert.Equal(t, int64(1000), tr.AvailableBudget(TierHost))
}

func TestMemTracer_BudgetNeverNegative(t *testing.T) {
	tr := NewMemTracer(testTracerConfig(), NewSimAllocator(100, 100), NewMetronome())
	tr.AddChunkBytes(TierAccelerator, 500)
	assert.Equal(t, int64(0), tr.AvailableBudget(TierAccelerator))
	assert.Equal(t, int64(0), tr.AvailableBudget(TierNone))
}

func TestMemTracer_SamplerStartStop(t *testing.T) {
	cfg := testTracerConfig()
	cfg.UseAsyncMemMonitor = true
	cfg.SampleIntervalMS = 1
	tr := NewMemTracer(cfg, NewSimAllocator(1000, 1000), NewMetronome())

	tr.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	tr.Stop()

	// Stop is idempotent, and a disabled monitor never starts.
	tr.Stop()
	disabled := NewMemTracer(testTracerConfig(), NewSimAllocator(1000, 1000), NewMetronome())
	disabled.Start(context.Background())
	disabled.Stop()
}

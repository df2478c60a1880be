package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// TracerConfig holds the memory tracer ratios and sampler settings.
type TracerConfig struct {
	// OverallAccelRatio caps the fraction of accelerator memory the chunk
	// manager may use in steady state.
	OverallAccelRatio float64 `yaml:"overall_accel_mem_ratio"`
	// OverallHostRatio caps the fraction of host memory the chunk manager
	// may use.
	OverallHostRatio float64 `yaml:"overall_host_mem_ratio"`
	// WarmupAccelChunkRatio caps accelerator chunk memory during warmup,
	// while the real compute footprint is still unknown.
	WarmupAccelChunkRatio float64 `yaml:"warmup_accel_chunk_mem_ratio"`
	// MarginUseRatio scales the remaining budget after overhead.
	MarginUseRatio float64 `yaml:"margin_use_ratio"`
	// UseAsyncMemMonitor enables the background usage sampler.
	UseAsyncMemMonitor bool `yaml:"use_async_mem_monitor"`
	// SampleIntervalMS is the sampler period in milliseconds.
	SampleIntervalMS int64 `yaml:"sample_interval_ms"`
}

// sampleInterval returns the sampler period, defaulting to 10ms.
func (c TracerConfig) sampleInterval() time.Duration {
	if c.SampleIntervalMS <= 0 {
		return 10 * time.Millisecond
	}
	return time.Duration(c.SampleIntervalMS) * time.Millisecond
}

// DefaultTracerConfig mirrors the production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		OverallAccelRatio:     0.8,
		OverallHostRatio:      0.8,
		WarmupAccelChunkRatio: 0.1,
		MarginUseRatio:        0.8,
		UseAsyncMemMonitor:    true,
		SampleIntervalMS:      10,
	}
}

// sampleWindow is the number of usage samples kept per tier.
const sampleWindow = 64

// MemTracer queries available capacity on each memory tier and exposes the
// movable budget that decides whether a chunk can be admitted to a tier
// without eviction. A background sampler may run concurrently with the
// compute path; it only performs lock-free reads of allocator usage
// counters, and its output is advisory.
type MemTracer struct {
	cfg       TracerConfig
	alloc     DeviceAllocator
	metronome *Metronome

	chunkBytes map[Tier]*atomic.Int64

	mu      sync.Mutex
	samples map[Tier][]float64 // sampled non-chunk overhead, ring of sampleWindow

	stop chan struct{}
	done chan struct{}
}

// NewMemTracer creates a tracer over the allocator.
func NewMemTracer(cfg TracerConfig, alloc DeviceAllocator, m *Metronome) *MemTracer {
	return &MemTracer{
		cfg:       cfg,
		alloc:     alloc,
		metronome: m,
		chunkBytes: map[Tier]*atomic.Int64{
			TierAccelerator: {},
			TierHost:        {},
		},
		samples: make(map[Tier][]float64),
	}
}

// AddChunkBytes records chunk payload bytes admitted to (delta > 0) or
// removed from (delta < 0) a tier.
func (t *MemTracer) AddChunkBytes(tier Tier, delta int64) {
	if c, ok := t.chunkBytes[tier]; ok {
		c.Add(delta)
	}
}

// ChunkBytes returns the chunk payload bytes currently on tier.
func (t *MemTracer) ChunkBytes(tier Tier) int64 {
	if c, ok := t.chunkBytes[tier]; ok {
		return c.Load()
	}
	return 0
}

// Start launches the background sampler. No-op when the async monitor is
// disabled. The sampler stops when ctx is cancelled or Stop is called.
func (t *MemTracer) Start(ctx context.Context) {
	if !t.cfg.UseAsyncMemMonitor || t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.sampleLoop(ctx)
	logrus.Debugf("[memtracer] sampler started, interval %s", t.cfg.sampleInterval())
}

// Stop terminates the sampler and waits for it to exit.
func (t *MemTracer) Stop() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop = nil
}

func (t *MemTracer) sampleLoop(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.cfg.sampleInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.sampleOnce()
		}
	}
}

// sampleOnce reads allocator usage counters (lock-free on the allocator
// side) and records the non-chunk overhead per tier.
func (t *MemTracer) sampleOnce() {
	for _, tier := range []Tier{TierAccelerator, TierHost} {
		overhead := t.alloc.Used(tier) - t.ChunkBytes(tier)
		if overhead < 0 {
			overhead = 0
		}
		t.mu.Lock()
		w := append(t.samples[tier], float64(overhead))
		if len(w) > sampleWindow {
			w = w[len(w)-sampleWindow:]
		}
		t.samples[tier] = w
		t.mu.Unlock()
	}
}

// overheadEstimate summarizes the sampled non-chunk overhead for a tier.
// The mean of the window smooths transient spikes; with no samples yet the
// estimate is zero.
func (t *MemTracer) overheadEstimate(tier Tier) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.samples[tier]
	if len(w) == 0 {
		return 0
	}
	return int64(stat.Mean(w, nil))
}

// AvailableBudget returns the bytes of chunk payload that may still be
// admitted to the tier without eviction. Never negative.
func (t *MemTracer) AvailableBudget(tier Tier) int64 {
	capBytes := t.alloc.Capacity(tier)
	var limit int64
	switch tier {
	case TierAccelerator:
		if t.metronome.IsWarmup() {
			limit = int64(float64(capBytes) * t.cfg.WarmupAccelChunkRatio)
		} else {
			usable := float64(capBytes)*t.cfg.OverallAccelRatio - float64(t.overheadEstimate(tier))
			limit = int64(usable * t.cfg.MarginUseRatio)
		}
	case TierHost:
		limit = int64(float64(capBytes) * t.cfg.OverallHostRatio)
	default:
		return 0
	}
	avail := limit - t.ChunkBytes(tier)
	if avail < 0 {
		return 0
	}
	return avail
}

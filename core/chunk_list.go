package core

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ChunkList is the ordered registry of all chunks. It owns chunk creation,
// tier placement, and the access/eviction control flow. Chunks are
// addressable by ID in O(1); iteration preserves creation order, which is
// significant: chunk_id % world_size determines the owning rank.
type ChunkList struct {
	capacity int64 // elements per chunk
	dtype    DType
	rank     int
	world    int

	alloc   DeviceAllocator
	tracer  *MemTracer
	policy  EvictionPolicy
	metrics *Metrics

	chunks []*Chunk
}

// NewChunkList creates an empty registry. Panics on a non-positive chunk
// capacity or an invalid rank/world pair.
func NewChunkList(capacity int64, dtype DType, rank, world int, alloc DeviceAllocator, tracer *MemTracer, policy EvictionPolicy, metrics *Metrics) *ChunkList {
	if capacity <= 0 {
		panic(fmt.Sprintf("ChunkList: chunk capacity must be > 0, got %d", capacity))
	}
	if world <= 0 || rank < 0 || rank >= world {
		panic(fmt.Sprintf("ChunkList: invalid rank %d of world %d", rank, world))
	}
	return &ChunkList{
		capacity: capacity,
		dtype:    dtype,
		rank:     rank,
		world:    world,
		alloc:    alloc,
		tracer:   tracer,
		policy:   policy,
		metrics:  metrics,
	}
}

// NewChunk allocates a new chunk record with the configured capacity and
// appends it to the registry. No payload is allocated yet.
func (l *ChunkList) NewChunk(isDummy bool) *Chunk {
	id := len(l.chunks)
	c := &Chunk{
		ID:       id,
		Capacity: l.capacity,
		DType:    l.dtype,
		isDummy:  isDummy,
		isLocal:  id%l.world == l.rank,
	}
	l.chunks = append(l.chunks, c)
	logrus.Debugf("[chunklist] new chunk %d (dummy=%v, local=%v)", id, isDummy, c.isLocal)
	return c
}

// Len returns the number of chunks.
func (l *ChunkList) Len() int { return len(l.chunks) }

// Get returns the chunk with the given ID.
func (l *ChunkList) Get(id int) *Chunk { return l.chunks[id] }

// Last returns the most recently created chunk, or nil when empty.
func (l *ChunkList) Last() *Chunk {
	if len(l.chunks) == 0 {
		return nil
	}
	return l.chunks[len(l.chunks)-1]
}

// Chunks returns the registry in creation order.
func (l *ChunkList) Chunks() []*Chunk { return l.chunks }

// AccessChunk ensures the chunk's payload exists on target. Already
// resident there: no-op. Released: a fresh payload is allocated (the
// caller is responsible for refilling it, e.g. via the fetch protocol).
// Resident elsewhere: the payload is moved allocate-then-copy-then-free.
func (l *ChunkList) AccessChunk(c *Chunk, target Tier) error {
	if target == TierNone {
		return fmt.Errorf("%w: access chunk %d on tier none", ErrInvariant, c.ID)
	}
	if c.payload == nil {
		return l.TryAllocatePayload(c, target)
	}
	if c.payload.Tier() == target {
		return nil
	}
	return l.moveChunk(c, target)
}

// TryAllocatePayload allocates a payload for a currently-bufferless chunk
// on tier, evicting under pressure.
func (l *ChunkList) TryAllocatePayload(c *Chunk, tier Tier) error {
	if c.payload != nil {
		return fmt.Errorf("%w: chunk %d already has a payload on %s", ErrInvariant, c.ID, c.Tier())
	}
	// Payloads are always full chunks: the collective gathers whole
	// payload buffers, so every chunk in a group must be the same size.
	size := c.Capacity * c.DType.Size()
	if err := l.ensureRoom(tier, size); err != nil {
		return fmt.Errorf("allocating payload for chunk %d: %w", c.ID, err)
	}
	buf, err := l.alloc.Allocate(tier, c.Capacity, c.DType)
	if err != nil {
		return fmt.Errorf("allocating payload for chunk %d: %w", c.ID, err)
	}
	c.payload = buf
	l.tracer.AddChunkBytes(tier, size)
	l.metrics.PayloadAllocs.Add(1)
	l.metrics.notePeak(tier, l.tracer.ChunkBytes(tier))
	return nil
}

// moveChunk migrates a resident payload to target: allocate on target,
// copy, free the old payload.
func (l *ChunkList) moveChunk(c *Chunk, target Tier) error {
	from := c.payload.Tier()
	size := c.payload.SizeBytes()
	if err := l.ensureRoom(target, size); err != nil {
		return fmt.Errorf("moving chunk %d to %s: %w", c.ID, target, err)
	}
	dst, err := l.alloc.Allocate(target, c.payload.Elems(), c.DType)
	if err != nil {
		return fmt.Errorf("moving chunk %d to %s: %w", c.ID, target, err)
	}
	if err := l.alloc.Copy(dst, c.payload); err != nil {
		l.alloc.Free(dst)
		return fmt.Errorf("moving chunk %d to %s: %w", c.ID, target, err)
	}
	l.alloc.Free(c.payload)
	c.payload = dst
	l.tracer.AddChunkBytes(from, -size)
	l.tracer.AddChunkBytes(target, size)
	l.metrics.notePeak(target, l.tracer.ChunkBytes(target))
	switch target {
	case TierAccelerator:
		l.metrics.BytesToAccel.Add(size)
	case TierHost:
		l.metrics.BytesToHost.Add(size)
	}
	logrus.Debugf("[chunklist] moved chunk %d %s -> %s (%d bytes)", c.ID, from, target, size)
	return nil
}

// ensureRoom evicts resident chunks from tier until the tracer budget
// admits size more bytes, or fails with ErrResourceExhausted when no
// further candidate is evictable.
func (l *ChunkList) ensureRoom(tier Tier, size int64) error {
	for l.tracer.AvailableBudget(tier) < size {
		victim, err := l.policy.PickVictim(l.evictionCandidates(tier))
		if err != nil {
			return fmt.Errorf("need %d bytes on %s: %w", size, tier, err)
		}
		if err := l.evict(victim, tier); err != nil {
			return err
		}
		l.metrics.Evictions.Add(1)
	}
	return nil
}

// evictionCandidates returns resident, unpinned, zero-in-compute chunks on
// tier. On the host tier only non-local chunks qualify: releasing a local
// payload would lose the only copy of its bytes, while a non-local chunk
// can always be fetched again.
func (l *ChunkList) evictionCandidates(tier Tier) []*Chunk {
	var cands []*Chunk
	for _, c := range l.chunks {
		if !c.evictable() || c.payload.Tier() != tier {
			continue
		}
		if tier == TierHost && c.isLocal {
			continue
		}
		cands = append(cands, c)
	}
	return cands
}

// evict moves the victim out of tier: accelerator victims are demoted to
// host when the host budget allows; otherwise (and for host victims) the
// payload is released entirely, which is only safe for non-local chunks.
func (l *ChunkList) evict(victim *Chunk, tier Tier) error {
	if tier == TierAccelerator {
		hostErr := l.moveChunk(victim, TierHost)
		if hostErr == nil {
			l.metrics.Demotions.Add(1)
			return nil
		}
		if victim.isLocal {
			return fmt.Errorf("demoting local chunk %d: %w", victim.ID, hostErr)
		}
		// Non-local: dropping the copy is safe, the fetch protocol
		// restores it on next use.
	}
	return l.releasePayload(victim)
}

// releasePayload frees the chunk's payload and marks every constituent
// parameter Released.
func (l *ChunkList) releasePayload(c *Chunk) error {
	if c.payload == nil {
		return fmt.Errorf("%w: releasing chunk %d with no payload", ErrInvariant, c.ID)
	}
	if !c.evictable() {
		return fmt.Errorf("%w: releasing pinned or in-compute chunk %d", ErrInvariant, c.ID)
	}
	tier := c.payload.Tier()
	size := c.payload.SizeBytes()
	l.alloc.Free(c.payload)
	c.payload = nil
	l.tracer.AddChunkBytes(tier, -size)
	l.metrics.PayloadReleases.Add(1)
	for _, p := range c.params {
		if p.state == StateHold {
			if err := p.setState(StateReleased); err != nil {
				return err
			}
		}
	}
	logrus.Debugf("[chunklist] released chunk %d payload from %s", c.ID, tier)
	return nil
}

package core

import (
	"fmt"
	"sync/atomic"
)

// DeviceAllocator is the opaque device-memory interface the core needs:
// allocate a typed buffer on a tier, free it, and copy payloads between
// tiers. Used counters must be safe for concurrent reads, because the
// background memory sampler queries them while chunk operations run.
type DeviceAllocator interface {
	Allocate(tier Tier, elems int64, dtype DType) (*Buffer, error)
	Free(b *Buffer)
	Copy(dst, src *Buffer) error
	Capacity(tier Tier) int64 // bytes
	Used(tier Tier) int64     // bytes; lock-free read
}

// arena is a capacity-tracked memory pool for one tier.
type arena struct {
	capacity int64
	used     atomic.Int64
}

// SimAllocator simulates accelerator and host memory with host-backed
// byte arrays and per-tier capacity accounting. It stands behind the
// opaque DeviceAllocator interface so the core never knows the bytes
// are not on a real device.
type SimAllocator struct {
	tiers map[Tier]*arena
}

// NewSimAllocator creates an allocator with the given per-tier capacities
// in bytes. Panics if a capacity is not positive.
func NewSimAllocator(accelBytes, hostBytes int64) *SimAllocator {
	if accelBytes <= 0 {
		panic(fmt.Sprintf("SimAllocator: accelerator capacity must be > 0, got %d", accelBytes))
	}
	if hostBytes <= 0 {
		panic(fmt.Sprintf("SimAllocator: host capacity must be > 0, got %d", hostBytes))
	}
	return &SimAllocator{
		tiers: map[Tier]*arena{
			TierAccelerator: {capacity: accelBytes},
			TierHost:        {capacity: hostBytes},
		},
	}
}

// Allocate reserves a zeroed buffer of elems elements on tier.
func (a *SimAllocator) Allocate(tier Tier, elems int64, dtype DType) (*Buffer, error) {
	ar, ok := a.tiers[tier]
	if !ok {
		return nil, fmt.Errorf("%w: allocate on tier %s", ErrInvariant, tier)
	}
	size := elems * dtype.Size()
	// Reserve optimistically; the sampler may observe the new usage before
	// the buffer is handed out, which is fine for an advisory reading.
	if ar.used.Add(size) > ar.capacity {
		ar.used.Add(-size)
		return nil, fmt.Errorf("%w: need %d bytes on %s, %d of %d in use",
			ErrResourceExhausted, size, tier, ar.used.Load(), ar.capacity)
	}
	return &Buffer{
		data:  make([]byte, size),
		dtype: dtype,
		elems: elems,
		tier:  tier,
	}, nil
}

// Free returns the buffer's bytes to its tier. Freeing nil is a no-op.
func (a *SimAllocator) Free(b *Buffer) {
	if b == nil {
		return
	}
	if ar, ok := a.tiers[b.tier]; ok {
		ar.used.Add(-b.SizeBytes())
	}
}

// Copy moves src's contents into dst across tiers.
func (a *SimAllocator) Copy(dst, src *Buffer) error {
	return dst.CopyFrom(src)
}

// Capacity returns the tier capacity in bytes.
func (a *SimAllocator) Capacity(tier Tier) int64 {
	if ar, ok := a.tiers[tier]; ok {
		return ar.capacity
	}
	return 0
}

// Used returns the bytes currently in use on tier. Safe to call
// concurrently with any allocator operation.
func (a *SimAllocator) Used(tier Tier) int64 {
	if ar, ok := a.tiers[tier]; ok {
		return ar.used.Load()
	}
	return 0
}

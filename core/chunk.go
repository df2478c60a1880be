package core

import "fmt"

// ChunkState is derived from the payload and constituent parameter states,
// never stored separately.
type ChunkState int

const (
	// ChunkReleased: no payload allocated on any tier.
	ChunkReleased ChunkState = iota
	// ChunkHold: payload resident, no constituent parameter in compute.
	ChunkHold
	// ChunkCompute: at least one constituent parameter in compute.
	ChunkCompute
)

// String returns the chunk state name.
func (s ChunkState) String() string {
	switch s {
	case ChunkReleased:
		return "released"
	case ChunkHold:
		return "hold"
	case ChunkCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// CommGroup is the set of chunk IDs, exactly one per rank, that form one
// logically sharded chunk. Index i holds rank i's chunk. It is purely a
// communication-routing structure.
type CommGroup struct {
	Chunks []int
}

// Chunk is a fixed-capacity memory block owning zero or more parameter
// views. It is the unit of tier placement and eviction. Chunks are created
// empty, filled during model construction (append phase only), migrated
// between tiers many times during training, and destroyed only at process
// teardown.
type Chunk struct {
	ID       int
	Capacity int64 // max elements
	DType    DType

	isDummy bool
	isLocal bool

	usedElems    int64
	payload      *Buffer
	pinCount     int
	numInCompute int
	params       []*Param

	// Group is set for distributed chunks: the comm group this chunk must
	// be fetched with. Nil in single-rank runs.
	Group *CommGroup
}

// State derives the chunk state.
func (c *Chunk) State() ChunkState {
	if c.payload == nil {
		return ChunkReleased
	}
	if c.numInCompute > 0 {
		return ChunkCompute
	}
	return ChunkHold
}

// Tier returns the tier the payload lives on, or TierNone when released.
func (c *Chunk) Tier() Tier {
	if c.payload == nil {
		return TierNone
	}
	return c.payload.Tier()
}

// Payload returns the chunk's buffer, nil when released.
func (c *Chunk) Payload() *Buffer { return c.payload }

// Params returns the constituent parameters in append order.
func (c *Chunk) Params() []*Param { return c.params }

// UsedElems returns the sum of constituent parameter element counts.
func (c *Chunk) UsedElems() int64 { return c.usedElems }

// IsDummy reports whether this is a zero-payload padding chunk.
func (c *Chunk) IsDummy() bool { return c.isDummy }

// IsLocal reports whether this rank owns the chunk.
func (c *Chunk) IsLocal() bool { return c.isLocal }

// NumInCompute returns the count of constituent parameters in compute.
func (c *Chunk) NumInCompute() int { return c.numInCompute }

// PinCount returns the current pin count.
func (c *Chunk) PinCount() int { return c.pinCount }

// CanFit reports whether numel more elements fit into the chunk.
func (c *Chunk) CanFit(numel int64) bool {
	return c.usedElems+numel <= c.Capacity
}

// AddParam appends a parameter to the chunk, assigning its offset and
// transitioning it Free -> Hold. Valid only during the append phase.
func (c *Chunk) AddParam(p *Param) error {
	if p.chunkID >= 0 {
		return fmt.Errorf("%w: param %q already placed in chunk %d", ErrInvariant, p.Name, p.chunkID)
	}
	if !c.CanFit(p.Numel) {
		return fmt.Errorf("%w: param %q (%d elements) into chunk %d (%d of %d used)",
			ErrCapacity, p.Name, p.Numel, c.ID, c.usedElems, c.Capacity)
	}
	if err := p.setState(StateHold); err != nil {
		return err
	}
	p.chunkID = c.ID
	p.offset = c.usedElems
	p.isLocal = c.isLocal
	c.usedElems += p.Numel
	c.params = append(c.params, p)
	return nil
}

// Pin forbids eviction of the chunk until the matching Unpin.
func (c *Chunk) Pin() {
	c.pinCount++
}

// Unpin releases one pin. Unpinning an unpinned chunk is a bug.
func (c *Chunk) Unpin() {
	if c.pinCount == 0 {
		panic(fmt.Sprintf("Chunk %d: unpin without matching pin", c.ID))
	}
	c.pinCount--
}

// evictable reports whether the chunk may be selected as an eviction
// victim: resident, unpinned, and no parameter in compute.
func (c *Chunk) evictable() bool {
	return c.payload != nil && c.pinCount == 0 && c.numInCompute == 0
}

package core

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Client is the top-level orchestrator: it exposes parameter-level access
// and release, the distributed fetch protocol, and composes the metronome,
// memory tracer, eviction policy, and chunk list.
//
// Every rank runs the same deterministic sequence of access/release/fetch
// calls in lockstep. The client itself is not safe for concurrent use; the
// only sanctioned concurrency is the tracer's background sampler, which
// performs read-only queries of usage counters.
type Client struct {
	rank  int
	world int

	cfg       Config
	dtype     DType
	metronome *Metronome
	tracer    *MemTracer
	policy    EvictionPolicy
	chunks    *ChunkList
	alloc     DeviceAllocator
	coll      Collective
	metrics   *Metrics
}

// NewClient wires a client for one rank. coll may be nil only when world
// is 1; a multi-rank client without a collective is a misconfiguration.
func NewClient(cfg Config, alloc DeviceAllocator, coll Collective, rank, world int) *Client {
	if cfg.Chunk.CapacityElems <= 0 {
		panic(fmt.Sprintf("Client: chunk capacity must be > 0, got %d", cfg.Chunk.CapacityElems))
	}
	if world > 1 && coll == nil {
		panic("Client: multi-rank client requires a collective backend")
	}
	metronome := NewMetronome()
	tracer := NewMemTracer(cfg.Tracer, alloc, metronome)
	policy := NewTracePolicy(metronome)
	metrics := &Metrics{}
	dtype := cfg.Chunk.dtype()
	return &Client{
		rank:      rank,
		world:     world,
		cfg:       cfg,
		dtype:     dtype,
		metronome: metronome,
		tracer:    tracer,
		policy:    policy,
		chunks:    NewChunkList(cfg.Chunk.CapacityElems, dtype, rank, world, alloc, tracer, policy, metrics),
		alloc:     alloc,
		coll:      coll,
		metrics:   metrics,
	}
}

// Rank returns this client's rank.
func (c *Client) Rank() int { return c.rank }

// WorldSize returns the process-group size.
func (c *Client) WorldSize() int { return c.world }

// Metrics returns the activity counters.
func (c *Client) Metrics() *Metrics { return c.metrics }

// Chunks returns the chunk registry.
func (c *Client) Chunks() *ChunkList { return c.chunks }

// Tracer returns the memory tracer.
func (c *Client) Tracer() *MemTracer { return c.tracer }

// Metronome passthroughs: the training loop drives steps and stages
// through the client.

// Tick advances the training step.
func (c *Client) Tick() { c.metronome.Tick() }

// Step returns the current training step.
func (c *Client) Step() int64 { return c.metronome.Step() }

// ResetStep rewinds the step counter at an iteration boundary.
func (c *Client) ResetStep() { c.metronome.ResetStep() }

// Stage returns the current training stage.
func (c *Client) Stage() Stage { return c.metronome.Stage() }

// SetStage switches between warmup and steady.
func (c *Client) SetStage(s Stage) { c.metronome.SetStage(s) }

// StartMemTracer launches the background memory sampler.
func (c *Client) StartMemTracer(ctx context.Context) { c.tracer.Start(ctx) }

// StopMemTracer stops the background memory sampler.
func (c *Client) StopMemTracer() { c.tracer.Stop() }

// NewDummyChunk appends a padding chunk holding a single zero-size
// placeholder parameter, so the chunk participates in state bookkeeping
// without consuming capacity.
func (c *Client) NewDummyChunk() error {
	chunk := c.chunks.NewChunk(true)
	dummy := NewParam(-1, fmt.Sprintf("dummy_%d", chunk.ID), nil, c.dtype, ChunkManaged)
	return chunk.AddParam(dummy)
}

// AppendParams bin-packs a batch of parameters into the tail chunk if it
// has spare capacity for the whole batch, and into a fresh chunk
// otherwise. Parameters appended in one call are always co-located: they
// are assumed to be accessed together.
func (c *Client) AppendParams(params []*Param) error {
	var total int64
	for _, p := range params {
		if p.Kind != ChunkManaged {
			return fmt.Errorf("%w: appending externally-managed param %q", ErrInvariant, p.Name)
		}
		total += p.Numel
	}
	if total > c.cfg.Chunk.CapacityElems {
		return fmt.Errorf("%w: batch of %d elements, chunk capacity %d", ErrCapacity, total, c.cfg.Chunk.CapacityElems)
	}

	chunk := c.chunks.Last()
	if chunk == nil || chunk.IsDummy() || !chunk.CanFit(total) {
		chunk = c.chunks.NewChunk(false)
	}
	for _, p := range params {
		if err := chunk.AddParam(p); err != nil {
			return err
		}
	}
	return nil
}

// IsLocalParam reports whether the parameter's chunk is owned by this
// rank. Externally-managed and not-yet-placed parameters are always
// local: no other rank can hold their bytes.
func (c *Client) IsLocalParam(p *Param) bool {
	if p.Kind == External || p.chunkID < 0 {
		return true
	}
	return c.chunks.Get(p.chunkID).IsLocal()
}

// Access makes a parameter computable on device: it ensures the owning
// chunk is resident there, narrows the payload into the parameter's
// region, and moves the parameter into the compute state.
func (c *Client) Access(p *Param, device Tier) error {
	if p.Kind == External {
		return nil
	}
	if p.chunkID < 0 {
		return fmt.Errorf("%w: access of unplaced param %q", ErrInvariant, p.Name)
	}
	if c.metronome.IsWarmup() {
		c.policy.TraceAccess(p.chunkID, device)
	}

	chunk := c.chunks.Get(p.chunkID)
	if err := c.chunks.AccessChunk(chunk, device); err != nil {
		return fmt.Errorf("access %q: %w", p.Name, err)
	}

	view, err := chunk.Payload().Narrow(p.offset, p.Numel)
	if err != nil {
		return fmt.Errorf("access %q: %w", p.Name, err)
	}
	if err := p.setState(StateCompute); err != nil {
		return err
	}
	p.view = view
	p.device = device
	chunk.numInCompute++
	c.metrics.Accesses.Add(1)
	return nil
}

// Release drops the parameter's view and returns it to hold, letting the
// chunk migrate or be evicted without this parameter blocking it. The
// detached view keeps the parameter's device identity for downstream
// consumers.
func (c *Client) Release(p *Param) error {
	if p.Kind == External {
		return nil
	}
	if p.chunkID < 0 {
		return fmt.Errorf("%w: release of unplaced param %q", ErrInvariant, p.Name)
	}
	chunk := c.chunks.Get(p.chunkID)
	if chunk.State() == ChunkReleased {
		return fmt.Errorf("%w: release of param %q whose chunk %d is released", ErrInvariant, p.Name, chunk.ID)
	}
	if p.state == StateCompute {
		chunk.numInCompute--
	}
	if err := p.setState(StateHold); err != nil {
		return err
	}
	p.view = newPlaceholder(c.cfg.Chunk.placeholder(), p.DType, p.device)
	c.metrics.Releases.Add(1)
	return nil
}

// FetchRemoteChunks synchronizes a comm group's residency across the
// process group. If no chunk in the group is released, the group was
// already fetched this round and the call is a no-op. Otherwise this
// rank's own chunk is made resident and pinned, every remote chunk gets a
// payload on device (evicting as needed) and is pinned with its
// parameters reset to hold, one blocking all-gather scatters every rank's
// local payload into the others, and every pin is dropped again. For the
// duration of the call all world_size chunks of the group are resident:
// this is the expensive, memory-amplifying path.
func (c *Client) FetchRemoteChunks(group *CommGroup, device Tier) error {
	if group == nil {
		return fmt.Errorf("%w: fetch with nil comm group", ErrInvariant)
	}
	allResident := true
	for _, id := range group.Chunks {
		if c.chunks.Get(id).State() == ChunkReleased {
			allResident = false
			break
		}
	}
	if allResident {
		return nil
	}
	if c.coll == nil {
		return fmt.Errorf("%w: fetch without a collective backend", ErrInvariant)
	}

	localID := group.Chunks[c.rank]
	local := c.chunks.Get(localID)
	if c.metronome.IsWarmup() {
		c.policy.TraceAccess(localID, device)
	}

	// Pins are strictly paired: everything pinned here is unpinned on
	// every exit path, including partial failure, so no chunk is ever
	// stranded unevictable.
	var pinned []*Chunk
	defer func() {
		for _, ch := range pinned {
			ch.Unpin()
		}
	}()

	if err := c.chunks.AccessChunk(local, device); err != nil {
		return fmt.Errorf("fetch group: local chunk %d: %w", localID, err)
	}
	local.Pin()
	pinned = append(pinned, local)

	outputs := make([]*Buffer, 0, len(group.Chunks))
	for _, id := range group.Chunks {
		chunk := c.chunks.Get(id)
		if id != localID {
			if err := c.chunks.AccessChunk(chunk, device); err != nil {
				return fmt.Errorf("fetch group: chunk %d: %w", id, err)
			}
			chunk.Pin()
			pinned = append(pinned, chunk)
			chunk.numInCompute = 0
			for _, p := range chunk.params {
				if p.state != StateHold {
					if err := p.setState(StateHold); err != nil {
						return err
					}
				}
			}
		}
		outputs = append(outputs, chunk.Payload())
	}

	logrus.Debugf("[fetch] rank %d gathering group %v on %s", c.rank, group.Chunks, device)
	if err := c.coll.AllGather(outputs, local.Payload()); err != nil {
		return fmt.Errorf("fetch group %v: %w", group.Chunks, err)
	}
	c.metrics.Fetches.Add(1)
	return nil
}

// AccessDist is the distributed access path: for chunk-managed parameters
// in a multi-rank run it first fetches the owning chunk's comm group, then
// performs the local access.
func (c *Client) AccessDist(p *Param, device Tier) error {
	if p.Kind == External {
		return nil
	}
	if p.chunkID < 0 {
		return fmt.Errorf("%w: access of unplaced param %q", ErrInvariant, p.Name)
	}
	if c.world > 1 {
		chunk := c.chunks.Get(p.chunkID)
		if chunk.Group == nil {
			return fmt.Errorf("%w: distributed access of chunk %d with no comm group", ErrInvariant, chunk.ID)
		}
		if err := c.FetchRemoteChunks(chunk.Group, device); err != nil {
			return err
		}
	}
	return c.Access(p, device)
}

// buildCommGroups assigns consecutive runs of world_size chunks to comm
// groups. Requires the chunk count to be padded to a multiple of world
// size first.
func (c *Client) buildCommGroups() error {
	n := c.chunks.Len()
	if n%c.world != 0 {
		return fmt.Errorf("%w: %d chunks not divisible by world size %d", ErrInvariant, n, c.world)
	}
	for g := 0; g < n/c.world; g++ {
		ids := make([]int, c.world)
		for r := 0; r < c.world; r++ {
			ids[r] = g*c.world + r
		}
		group := &CommGroup{Chunks: ids}
		for _, id := range ids {
			c.chunks.Get(id).Group = group
		}
	}
	return nil
}

// newPlaceholder builds the detached view per the configured policy. The
// placeholder is intentionally not allocator-tracked: it stands outside
// chunk accounting, exactly like the tensor it replaces.
func newPlaceholder(policy PlaceholderPolicy, dtype DType, device Tier) *Buffer {
	elems := int64(0)
	if policy == PlaceholderZeroElement {
		elems = 1
	}
	return &Buffer{
		data:  make([]byte, elems*dtype.Size()),
		dtype: dtype,
		elems: elems,
		tier:  device,
	}
}

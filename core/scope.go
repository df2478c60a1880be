package core

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Scope is the construction capability object: the external model builder
// threads every parameter registration through it, one Register call per
// constructed sub-component. It replaces ambient runtime-config state; a
// scope's managed flag is a pure function of how the scope was obtained,
// never of global interpreter state.
type Scope struct {
	client  *Client
	managed bool

	// shared across the managed and external views of one build
	counters *scopeCounters
}

type scopeCounters struct {
	nextParamID int
	moduleIdx   int
	finalized   bool
}

// NewScope opens a construction scope on the client. Parameters registered
// through it are chunk-managed.
func NewScope(c *Client) *Scope {
	return &Scope{client: c, managed: true, counters: &scopeCounters{}}
}

// External returns a view of the scope that registers externally-managed
// parameters: they keep their own storage and access/release never touch
// them.
func (s *Scope) External() *Scope {
	return &Scope{client: s.client, managed: false, counters: s.counters}
}

// NewParam creates and registers a parameter in this scope. Managed scopes
// produce chunk-managed params in the chunk element type; external scopes
// produce externally-managed float32 params.
func (s *Scope) NewParam(name string, shape []int64, init []float32) *Param {
	id := s.counters.nextParamID
	s.counters.nextParamID++
	kind, dtype := ChunkManaged, s.client.dtype
	if !s.managed {
		kind, dtype = External, Float32
	}
	p := NewParam(id, name, shape, dtype, kind)
	p.Init = init
	return p
}

// Register appends one cohesive batch of parameters (typically all
// parameters of one constructed sub-component) to the chunk registry.
// Non-local parameters are detached immediately: this rank never holds
// their bytes outside a fetch.
func (s *Scope) Register(module string, params ...*Param) error {
	if s.counters.finalized {
		return fmt.Errorf("%w: register after finalize", ErrInvariant)
	}
	s.counters.moduleIdx++
	if !s.managed {
		return nil // external params keep their own storage
	}
	if err := s.client.AppendParams(params); err != nil {
		return fmt.Errorf("registering %s: %w", module, err)
	}
	for _, p := range params {
		if !s.client.IsLocalParam(p) {
			p.view = newPlaceholder(s.client.cfg.Chunk.placeholder(), p.DType, p.device)
		}
	}
	logrus.Debugf("[scope] registered %s: %d params", module, len(params))
	return nil
}

// Finalize completes the build:
//
//  1. Initial values of locally-owned parameters are copied into their
//     chunk payloads through a host-tier access/release pair.
//  2. The chunk count is padded with dummy chunks to a multiple of the
//     world size, so every rank owns an equal share.
//  3. Comm groups are assigned across ranks.
func (s *Scope) Finalize() error {
	if s.counters.finalized {
		return fmt.Errorf("%w: finalize called twice", ErrInvariant)
	}
	s.counters.finalized = true
	c := s.client

	// Init copies reuse the normal access path, so the warmup trace
	// records these host touches at step 0 alongside training accesses.
	for _, chunk := range c.chunks.Chunks() {
		if !chunk.IsLocal() {
			continue
		}
		for _, p := range chunk.Params() {
			if p.Init == nil {
				continue
			}
			if int64(len(p.Init)) != p.Numel {
				return fmt.Errorf("%w: param %q has %d init values for %d elements",
					ErrInvariant, p.Name, len(p.Init), p.Numel)
			}
			if err := c.Access(p, TierHost); err != nil {
				return err
			}
			view := p.View()
			for i, v := range p.Init {
				view.SetFloat(int64(i), v)
			}
			if err := c.Release(p); err != nil {
				return err
			}
		}
	}

	for c.chunks.Len()%c.world != 0 {
		if err := c.NewDummyChunk(); err != nil {
			return err
		}
	}
	logrus.Debugf("[scope] finalized: %d chunks across %d ranks", c.chunks.Len(), c.world)
	return c.buildCommGroups()
}

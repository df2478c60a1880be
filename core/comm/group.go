// Package comm provides an in-process collective backend: a process group
// whose ranks live in one process and rendezvous through shared memory.
// It implements the same blocking all-gather contract a network collective
// would, so the core never knows the difference.
package comm

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hetmem/hetmem/core"
)

// ProcessGroup is an N-rank in-process group. Each rank obtains its
// Collective handle from Rank and calls AllGather from its own goroutine;
// the call blocks until all ranks of the group have arrived.
type ProcessGroup struct {
	world int

	mu      sync.Mutex
	current *round
}

// round is one all-gather rendezvous. The last arriving rank performs the
// scatter for everyone and releases the others.
type round struct {
	arrived int
	inputs  []*core.Buffer
	outputs [][]*core.Buffer
	done    chan struct{}
	err     error
}

// NewProcessGroup creates a group of world ranks. Panics on a
// non-positive world size.
func NewProcessGroup(world int) *ProcessGroup {
	if world <= 0 {
		panic(fmt.Sprintf("ProcessGroup: world size must be > 0, got %d", world))
	}
	return &ProcessGroup{world: world}
}

// Rank returns the collective handle for one rank.
func (g *ProcessGroup) Rank(rank int) core.Collective {
	if rank < 0 || rank >= g.world {
		panic(fmt.Sprintf("ProcessGroup: rank %d out of world %d", rank, g.world))
	}
	return &rankComm{group: g, rank: rank}
}

// rankComm is one rank's view of the group.
type rankComm struct {
	group *ProcessGroup
	rank  int
}

func (r *rankComm) Rank() int      { return r.rank }
func (r *rankComm) WorldSize() int { return r.group.world }

// AllGather contributes this rank's input and output slots to the current
// round and blocks until every rank has contributed. One rank then copies
// each input into every rank's corresponding output slot; a shape or size
// mismatch anywhere poisons the round for all participants.
func (r *rankComm) AllGather(outputs []*core.Buffer, input *core.Buffer) error {
	g := r.group
	g.mu.Lock()
	if g.current == nil {
		g.current = &round{
			inputs:  make([]*core.Buffer, g.world),
			outputs: make([][]*core.Buffer, g.world),
			done:    make(chan struct{}),
		}
	}
	rd := g.current
	if rd.inputs[r.rank] != nil {
		g.mu.Unlock()
		return fmt.Errorf("%w: rank %d entered the same all-gather twice", core.ErrProtocol, r.rank)
	}
	rd.inputs[r.rank] = input
	rd.outputs[r.rank] = outputs
	rd.arrived++

	if rd.arrived < g.world {
		g.mu.Unlock()
		<-rd.done // rendezvous: block until the last rank scatters
		return rd.err
	}

	rd.err = g.scatter(rd)
	g.current = nil
	close(rd.done)
	g.mu.Unlock()
	return rd.err
}

// scatter validates the round and copies every rank's input into every
// rank's output slots.
func (g *ProcessGroup) scatter(rd *round) error {
	ref := rd.inputs[0]
	for rank, in := range rd.inputs {
		if in == nil {
			return fmt.Errorf("%w: rank %d contributed no input", core.ErrProtocol, rank)
		}
		if in.Elems() != ref.Elems() || in.DType() != ref.DType() {
			return fmt.Errorf("%w: rank %d input of %d %s elements, rank 0 has %d %s",
				core.ErrProtocol, rank, in.Elems(), in.DType(), ref.Elems(), ref.DType())
		}
		if len(rd.outputs[rank]) != g.world {
			return fmt.Errorf("%w: rank %d supplied %d output slots for world %d",
				core.ErrProtocol, rank, len(rd.outputs[rank]), g.world)
		}
	}
	for rank := 0; rank < g.world; rank++ {
		for slot, out := range rd.outputs[rank] {
			if err := out.CopyFrom(rd.inputs[slot]); err != nil {
				return fmt.Errorf("%w: scattering rank %d into rank %d slot %d: %v",
					core.ErrProtocol, slot, rank, slot, err)
			}
		}
	}
	logrus.Debugf("[comm] all-gather of %d ranks complete", g.world)
	return nil
}

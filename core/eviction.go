package core

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// EvictionPolicy selects which resident chunk to move out of a tier under
// memory pressure.
type EvictionPolicy interface {
	// TraceAccess records that chunkID was touched at the current step.
	// Called only while the metronome reports warmup.
	TraceAccess(chunkID int, tier Tier)

	// PickVictim returns the best victim among candidates, or an error
	// when the candidate set is empty.
	PickVictim(candidates []*Chunk) (*Chunk, error)
}

// neverAgain marks a chunk with no remaining recorded future access.
// Such chunks are always preferred as victims.
const neverAgain = int64(math.MaxInt64)

// TracePolicy is the trace-driven LRU variant. During warmup it records
// the step at which each chunk is touched; during steady state it replays
// that trace to predict each chunk's next access and evicts the candidate
// with the farthest predicted next use, approximating Belady's policy with
// the assumption that one steady-state step is representative of all
// future steps.
type TracePolicy struct {
	metronome *Metronome

	trace  map[int][]int64 // chunk ID -> recorded access steps, in order
	cursor map[int]int     // chunk ID -> next trace entry to consult; never rewound

	lastAccess map[int]int64 // recency fallback while the trace is incomplete
}

// NewTracePolicy creates a policy bound to the metronome.
func NewTracePolicy(m *Metronome) *TracePolicy {
	return &TracePolicy{
		metronome:  m,
		trace:      make(map[int][]int64),
		cursor:     make(map[int]int),
		lastAccess: make(map[int]int64),
	}
}

// TraceAccess appends the current step to the chunk's access list.
func (p *TracePolicy) TraceAccess(chunkID int, tier Tier) {
	step := p.metronome.Step()
	p.trace[chunkID] = append(p.trace[chunkID], step)
	p.lastAccess[chunkID] = step
	logrus.Debugf("[trace] chunk %d accessed at step %d on %s", chunkID, step, tier)
}

// nextUse advances the chunk's cursor past all recorded steps <= now and
// returns the next recorded future step, or neverAgain when the trace has
// no remaining entries. The cursor only moves forward: the prediction model
// is one epoch ahead, never rewound.
func (p *TracePolicy) nextUse(chunkID int, now int64) int64 {
	steps := p.trace[chunkID]
	i := p.cursor[chunkID]
	for i < len(steps) && steps[i] <= now {
		i++
	}
	p.cursor[chunkID] = i
	if i == len(steps) {
		return neverAgain
	}
	return steps[i]
}

// PickVictim selects the candidate whose next recorded access is farthest
// in the future, ties broken by lowest chunk ID. During warmup, with no
// usable trace yet, it falls back to evicting the least recently accessed
// candidate.
func (p *TracePolicy) PickVictim(candidates []*Chunk) (*Chunk, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no evictable candidate", ErrResourceExhausted)
	}
	if p.metronome.IsWarmup() {
		return p.pickLeastRecent(candidates), nil
	}

	now := p.metronome.Step()
	var victim *Chunk
	var victimNext int64
	for _, c := range candidates {
		next := p.nextUse(c.ID, now)
		if victim == nil || next > victimNext || (next == victimNext && c.ID < victim.ID) {
			victim, victimNext = c, next
		}
	}
	logrus.Debugf("[evict] victim chunk %d, next use at step %d", victim.ID, victimNext)
	return victim, nil
}

func (p *TracePolicy) pickLeastRecent(candidates []*Chunk) *Chunk {
	var victim *Chunk
	var victimLast int64
	for _, c := range candidates {
		last, ok := p.lastAccess[c.ID]
		if !ok {
			last = -1 // never touched, evict first
		}
		if victim == nil || last < victimLast || (last == victimLast && c.ID < victim.ID) {
			victim, victimLast = c, last
		}
	}
	return victim
}

package core

import "fmt"

// ParamKind distinguishes chunk-managed parameters from externally-managed
// ones. External parameters keep whatever storage their owner gave them;
// access/release never touch them.
type ParamKind int

const (
	ChunkManaged ParamKind = iota
	External
)

// ParamState is the parameter residency state machine.
//
//	Free → Hold → Compute → Hold
//	              Hold    → Released → Hold
type ParamState int

const (
	// StateFree: registered, not yet assigned to a chunk.
	StateFree ParamState = iota
	// StateHold: assigned to a chunk, not currently used in compute.
	StateHold
	// StateCompute: actively read/written by a computation step.
	StateCompute
	// StateReleased: view intentionally dropped; the owning chunk may be
	// migrated or evicted without this parameter blocking it.
	StateReleased
)

// String returns the state name.
func (s ParamState) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateHold:
		return "hold"
	case StateCompute:
		return "compute"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// canTransition enumerates the legal state transitions exhaustively, so an
// illegal transition is an ErrInvariant at the transition site rather than
// a silent corruption later.
func canTransition(from, to ParamState) bool {
	switch from {
	case StateFree:
		return to == StateHold
	case StateHold:
		return to == StateCompute || to == StateReleased || to == StateHold
	case StateCompute:
		return to == StateHold
	case StateReleased:
		// Access restores residency first, so Released may go straight to
		// Compute as well as back to Hold after a remote fetch.
		return to == StateHold || to == StateCompute
	default:
		return false
	}
}

// Param is one parameter tensor. It never owns memory directly: while the
// state is Hold or Compute its View is a narrow into the owning chunk's
// payload, and otherwise the View is a detached placeholder.
type Param struct {
	ID    int
	Name  string
	Numel int64
	Shape []int64
	DType DType
	Kind  ParamKind

	// Init holds host-side initial values copied into the chunk payload
	// at build finalization. Optional; nil means zero-initialized.
	Init []float32

	state   ParamState
	chunkID int
	offset  int64
	isLocal bool

	view   *Buffer
	device Tier // device identity preserved across detach
}

// NewParam registers a parameter with the given identity. The element count
// is the product of the shape.
func NewParam(id int, name string, shape []int64, dtype DType, kind ParamKind) *Param {
	numel := int64(1)
	for _, d := range shape {
		numel *= d
	}
	if len(shape) == 0 {
		numel = 0
	}
	return &Param{
		ID:      id,
		Name:    name,
		Numel:   numel,
		Shape:   shape,
		DType:   dtype,
		Kind:    kind,
		state:   StateFree,
		chunkID: -1,
		isLocal: true,
		device:  TierHost,
	}
}

// State returns the current residency state.
func (p *Param) State() ParamState { return p.state }

// ChunkID returns the owning chunk's ID, or -1 before placement.
// It never changes once the parameter is placed.
func (p *Param) ChunkID() int { return p.chunkID }

// Offset returns the parameter's element offset within its chunk payload.
func (p *Param) Offset() int64 { return p.offset }

// IsLocal reports whether this rank owns the parameter's chunk.
func (p *Param) IsLocal() bool { return p.isLocal }

// View returns the attached view, or the detached placeholder.
func (p *Param) View() *Buffer { return p.view }

// Device returns the tier identity the parameter's view carries. Preserved
// across detach for downstream consumers that dispatch on device.
func (p *Param) Device() Tier { return p.device }

// setState validates and applies a state transition.
func (p *Param) setState(to ParamState) error {
	if !canTransition(p.state, to) {
		return fmt.Errorf("%w: param %q transition %s -> %s", ErrInvariant, p.Name, p.state, to)
	}
	p.state = to
	return nil
}

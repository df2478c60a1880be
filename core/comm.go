package core

// Collective is the opaque collective-communication primitive. AllGather
// is synchronous: it blocks the caller until every participant in the
// process group has contributed its input buffer, scattering each rank's
// input into every rank's corresponding output slot. There is no timeout
// and no cancellation: the call completes or the distributed job fails.
type Collective interface {
	AllGather(outputs []*Buffer, input *Buffer) error
	Rank() int
	WorldSize() int
}

// NewProcessGroupFunc is set by the comm sub-package's init. It returns
// one Collective handle per rank of an in-process group.
var NewProcessGroupFunc func(world int) []Collective

// NewProcessGroup creates an in-process group of world ranks using the
// registered backend.
func NewProcessGroup(world int) []Collective {
	if NewProcessGroupFunc == nil {
		panic("core: no collective backend registered (import core/comm)")
	}
	return NewProcessGroupFunc(world)
}

package core

import "errors"

// Error sentinels for the memory contract. All of them are raised
// synchronously at the call that detects the condition and none are
// recoverable locally: a violation means the surrounding training loop
// misused the contract, so callers are expected to fail fast.
var (
	// ErrCapacity: a single parameter batch (or chunk request) exceeds the
	// configured chunk capacity. Fatal to that construction call.
	ErrCapacity = errors.New("batch exceeds chunk capacity")

	// ErrResourceExhausted: eviction could not free enough tier budget to
	// satisfy a residency request.
	ErrResourceExhausted = errors.New("tier budget exhausted")

	// ErrInvariant: an operation observed an impossible chunk/param state.
	// Indicates a bug in caller sequencing, never swallowed.
	ErrInvariant = errors.New("invariant violation")

	// ErrProtocol: a collective call observed mismatched buffer shapes or
	// sizes across ranks. Collective state is undefined afterwards.
	ErrProtocol = errors.New("distributed protocol violation")
)

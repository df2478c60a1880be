package core

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Tier identifies a memory pool with distinct capacity and access cost.
type Tier int

const (
	// TierNone: no residency; a chunk on TierNone has no payload.
	TierNone Tier = iota
	// TierHost: host (CPU) memory.
	TierHost
	// TierAccelerator: accelerator-local memory. Compute only happens here.
	TierAccelerator
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierHost:
		return "host"
	case TierAccelerator:
		return "accelerator"
	default:
		return "unknown"
	}
}

// DType is the element type of a buffer or parameter.
type DType int

const (
	Float32 DType = iota
	Float16
)

// Size returns the element size in bytes.
func (d DType) Size() int64 {
	switch d {
	case Float32:
		return 4
	case Float16:
		return 2
	default:
		panic(fmt.Sprintf("DType: unknown dtype %d", int(d)))
	}
}

// String returns the dtype name.
func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	default:
		return "unknown"
	}
}

// Buffer is a contiguous typed memory region on a single tier. Chunk
// payloads are buffers; parameter views are sub-views into them, produced
// by Narrow. A view shares the underlying bytes with its parent, so the
// view is valid only while the parent payload stays allocated.
type Buffer struct {
	data  []byte
	dtype DType
	elems int64
	tier  Tier
}

// Elems returns the element count.
func (b *Buffer) Elems() int64 { return b.elems }

// DType returns the element type.
func (b *Buffer) DType() DType { return b.dtype }

// Tier returns the tier the buffer lives on.
func (b *Buffer) Tier() Tier { return b.tier }

// SizeBytes returns the buffer size in bytes.
func (b *Buffer) SizeBytes() int64 { return b.elems * b.dtype.Size() }

// Narrow returns a sub-view of elems elements starting at offset.
// The view shares storage with b.
func (b *Buffer) Narrow(offset, elems int64) (*Buffer, error) {
	if offset < 0 || elems < 0 || offset+elems > b.elems {
		return nil, fmt.Errorf("%w: narrow [%d, %d) out of buffer of %d elements",
			ErrInvariant, offset, offset+elems, b.elems)
	}
	es := b.dtype.Size()
	return &Buffer{
		data:  b.data[offset*es : (offset+elems)*es],
		dtype: b.dtype,
		elems: elems,
		tier:  b.tier,
	}, nil
}

// Float returns element i as float32, decoding float16 storage if needed.
func (b *Buffer) Float(i int64) float32 {
	es := b.dtype.Size()
	raw := b.data[i*es : (i+1)*es]
	switch b.dtype {
	case Float32:
		return math.Float32frombits(binary.LittleEndian.Uint32(raw))
	case Float16:
		return float16.Frombits(binary.LittleEndian.Uint16(raw)).Float32()
	default:
		panic("Buffer: unknown dtype")
	}
}

// SetFloat stores v into element i, encoding to float16 storage if needed.
func (b *Buffer) SetFloat(i int64, v float32) {
	es := b.dtype.Size()
	raw := b.data[i*es : (i+1)*es]
	switch b.dtype {
	case Float32:
		binary.LittleEndian.PutUint32(raw, math.Float32bits(v))
	case Float16:
		binary.LittleEndian.PutUint16(raw, float16.Fromfloat32(v).Bits())
	default:
		panic("Buffer: unknown dtype")
	}
}

// CopyFrom copies src's bytes into b. Element counts and dtypes must match.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if src.elems != b.elems || src.dtype != b.dtype {
		return fmt.Errorf("%w: copy %d %s elements into %d %s elements",
			ErrInvariant, src.elems, src.dtype, b.elems, b.dtype)
	}
	copy(b.data, src.data)
	return nil
}

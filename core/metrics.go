package core

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Metrics aggregates chunk-manager activity for final reporting. Counters
// are written on the main access path and read concurrently by prometheus
// scrapes, so they are atomics.
type Metrics struct {
	Accesses atomic.Int64 // parameter access calls
	Releases atomic.Int64 // parameter release calls
	Fetches  atomic.Int64 // remote comm-group fetches (collectives actually run)

	Evictions       atomic.Int64 // eviction victims selected
	Demotions       atomic.Int64 // accelerator -> host payload moves under pressure
	PayloadReleases atomic.Int64 // payloads freed entirely
	PayloadAllocs   atomic.Int64 // payloads allocated

	BytesToAccel atomic.Int64 // payload bytes copied host -> accelerator
	BytesToHost  atomic.Int64 // payload bytes copied accelerator -> host

	PeakAccelChunkBytes atomic.Int64
	PeakHostChunkBytes  atomic.Int64
}

// notePeak records per-tier chunk usage high-water marks.
func (m *Metrics) notePeak(tier Tier, chunkBytes int64) {
	var peak *atomic.Int64
	switch tier {
	case TierAccelerator:
		peak = &m.PeakAccelChunkBytes
	case TierHost:
		peak = &m.PeakHostChunkBytes
	default:
		return
	}
	if chunkBytes > peak.Load() {
		peak.Store(chunkBytes)
	}
}

// Print writes a summary of the run.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Chunk Manager Metrics ===")
	fmt.Fprintf(w, "Accesses             : %d\n", m.Accesses.Load())
	fmt.Fprintf(w, "Releases             : %d\n", m.Releases.Load())
	fmt.Fprintf(w, "Remote fetches       : %d\n", m.Fetches.Load())
	fmt.Fprintf(w, "Evictions            : %d\n", m.Evictions.Load())
	fmt.Fprintf(w, "Demotions            : %d\n", m.Demotions.Load())
	fmt.Fprintf(w, "Payload releases     : %d\n", m.PayloadReleases.Load())
	fmt.Fprintf(w, "Payload allocations  : %d\n", m.PayloadAllocs.Load())
	fmt.Fprintf(w, "Bytes to accelerator : %d\n", m.BytesToAccel.Load())
	fmt.Fprintf(w, "Bytes to host        : %d\n", m.BytesToHost.Load())
	fmt.Fprintf(w, "Peak accel chunk use : %d bytes\n", m.PeakAccelChunkBytes.Load())
	fmt.Fprintf(w, "Peak host chunk use  : %d bytes\n", m.PeakHostChunkBytes.Load())
}

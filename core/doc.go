// Package core manages the memory of models whose parameters exceed any
// single device's capacity: parameters are bin-packed into fixed-size
// chunks, each chunk is resident on at most one memory tier at a time, and
// chunks migrate between tiers on demand as computation touches their
// parameters.
//
// # Reading Guide
//
// Start with these three files to understand the residency machinery:
//   - param.go: the parameter state machine (free → hold → compute / released)
//   - chunk_list.go: chunk registry, tier placement, and the eviction loop
//   - client.go: access/release orchestration and the distributed fetch protocol
//
// # Architecture
//
// The core package defines the opaque external interfaces; backends live
// in sub-packages or behind them:
//   - DeviceAllocator: tiered buffer allocation (SimAllocator is the
//     built-in host-simulated implementation)
//   - Collective: the blocking all-gather primitive (core/comm provides an
//     in-process process group, registered via an init() factory variable)
//
// Supporting pieces: Metronome (step/stage holder), MemTracer (tier
// budgets plus the optional background usage sampler), TracePolicy (the
// trace-driven eviction heuristic), Scope (the construction capability
// object the model builder registers parameters through).
//
// # Concurrency
//
// The dominant concurrency is distributed: every rank runs the same
// deterministic call sequence, and the collective is a blocking rendezvous
// that only completes when all ranks arrive. Locally the client is
// single-threaded; the memory sampler and metric scrapes are the only
// concurrent readers, and they touch nothing but atomic usage counters.
package core

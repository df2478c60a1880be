package core

// Shared fixtures for the core tests. Tracer ratios default to 1.0 so a
// tier's budget equals its raw capacity and tests can reason in exact
// byte counts; individual tests override ratios where the budget math
// itself is under test.

// testTracerConfig returns ratios that make budget == capacity on every
// tier, with the async sampler off.
func testTracerConfig() TracerConfig {
	return TracerConfig{
		OverallAccelRatio:     1.0,
		OverallHostRatio:      1.0,
		WarmupAccelChunkRatio: 1.0,
		MarginUseRatio:        1.0,
	}
}

// testConfig builds a float32 chunk config with the given capacity.
func testConfig(capacityElems int64) Config {
	return Config{
		Chunk:  ChunkConfig{CapacityElems: capacityElems},
		Tracer: testTracerConfig(),
	}
}

// newTestClient builds a single-rank client over a fresh SimAllocator.
func newTestClient(capacityElems, accelBytes, hostBytes int64) *Client {
	return NewClient(testConfig(capacityElems), NewSimAllocator(accelBytes, hostBytes), nil, 0, 1)
}

// newTestParam builds an unplaced chunk-managed float32 parameter of
// numel elements.
func newTestParam(id int, name string, numel int64) *Param {
	return NewParam(id, name, []int64{numel}, Float32, ChunkManaged)
}

// stubCollective satisfies Collective without ever communicating. Used by
// tests that need a multi-rank client but never reach the fetch path.
type stubCollective struct {
	rank  int
	world int
}

func (s *stubCollective) AllGather(outputs []*Buffer, input *Buffer) error { return nil }
func (s *stubCollective) Rank() int                                        { return s.rank }
func (s *stubCollective) WorldSize() int                                   { return s.world }

// Package testutil provides shared fixtures for the chunk manager tests:
// deterministic synthetic model layouts and value ramps. It deliberately
// imports nothing from the rest of the module so in-package tests can use
// it without import cycles.
package testutil

// LayerShapes returns per-layer parameter shapes for a synthetic model of
// the given depth: each layer carries one hidden×hidden weight and one
// hidden bias, the shape of the access pattern the chunk manager sees from
// a real network.
func LayerShapes(layers int, hidden int64) [][][]int64 {
	out := make([][][]int64, layers)
	for i := range out {
		out[i] = [][]int64{
			{hidden, hidden}, // weight
			{hidden},         // bias
		}
	}
	return out
}

// Ramp returns n deterministic float32 values starting at base, stepping
// by one. Useful for asserting byte-identical buffer contents after
// migrations and collectives.
func Ramp(n int, base float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = base + float32(i)
	}
	return out
}

// Package testutil provides deterministic synthetic series for tests and
// benchmarks.
//
// This package is intended for use in tests and benchmarks only.
//
// # Piecewise Series
//
//	rng := testutil.NewRNG(seed)
//	data, cps := rng.Piecewise([]testutil.Segment{
//		{Len: 100, Mean: 0},
//		{Len: 150, Mean: 5},
//		{Len: 50, Mean: -3},
//	}, 3, 0.1)
//	// cps == []int{100, 250, 300}
//
// # Sine Segments
//
//	data, cps := rng.SineSegments([]int{100, 150, 50}, 2.0, 0.05)
package testutil

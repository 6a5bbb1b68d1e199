// Package testutil provides testing utilities for isvd.
//
// This package is intended for use in tests and benchmarks only.
// It provides deterministic generators for snapshot streams and helpers
// for checking basis properties.
//
// # Random Snapshots
//
//	rng := testutil.NewRNG(seed)
//	u := rng.GaussianVector(128)               // standard normal
//	samples := rng.LowRankSamples(50, 128, 5)  // exactly rank 5
//
// # Distributed Tests
//
//	local := testutil.LocalRows(u, comm.Size(), comm.Rank())
//
// # Basis Checks
//
//	dev := testutil.OrthonormalityError(basis) // max |BᵗB - I|
package testutil

// Package isvd maintains an incremental singular value decomposition of a
// stream of large distributed snapshots.
//
// Each snapshot u is split by rows across the ranks of a collective group.
// The package keeps a low-rank orthonormal spatial basis U (distributed the
// same way), a small replicated rotation matrix L, the singular values S and,
// optionally, the right singular vectors W, so that the snapshots seen so far
// are approximated by (U·L)·diag(S)·Wᵗ.
//
// # Quick Start
//
// Single process:
//
//	inc, _ := isvd.New(dim, isvd.WithRedundancyTolerance(1e-8))
//	for step, snapshot := range snapshots {
//	    res, err := inc.Increment(ctx, snapshot, float64(step)*dt)
//	    ...
//	}
//	basis := inc.Basis()          // dim × k
//	sv := inc.SingularValues()    // k, descending
//
// Several workers in one process:
//
//	err := collective.Run(ctx, 4, func(ctx context.Context, comm collective.Communicator) error {
//	    lo, hi := collective.Partition(n, comm.Size(), comm.Rank())
//	    inc, err := isvd.New(hi-lo, isvd.WithCommunicator(comm))
//	    if err != nil {
//	        return err
//	    }
//	    for step, snapshot := range snapshots {
//	        if _, err := inc.Increment(ctx, snapshot[lo:hi], float64(step)*dt); err != nil {
//	            return err
//	        }
//	    }
//	    return nil
//	})
//
// # Increments
//
// A sample is projected onto the current basis. If the residual is small
// relative to the sample norm the sample is redundant: it only rotates the
// basis and updates the singular values (or is dropped entirely with
// WithSkipRedundant). Otherwise the normalized residual becomes a new basis
// vector. Both cases factor a (k+1)×(k+1) bordered matrix with the
// configured linalg.SVDSolver.
//
// # Time Intervals
//
// The basis rank of an interval is capped by WithIncrementsPerInterval.
// When an interval is full, the next sample closes it and opens a new
// interval seeded from that sample. Closed intervals are immutable and can
// be persisted with package persistence.
//
// # Orthogonality
//
// Under ReorthAuto the orthogonality of U·L is checked after every update
// and repaired with a distributed Gram-Schmidt pass when it drifts beyond
// the orthogonality tolerance. ReorthManual leaves this to the caller.
//
// # Errors
//
// Invalid samples return typed errors before any communication. Degenerate
// samples return *NumericalError; the sample is dropped and the state is
// unchanged.
package isvd

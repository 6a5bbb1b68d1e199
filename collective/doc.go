// Package collective defines the collective-communication facility the
// incremental basis core runs on.
//
// Workers execute in lock-step (SPMD). Every worker owns a disjoint,
// contiguous slice of each state vector and calls the same sequence of
// collective operations. Control-flow decisions must only depend on values
// produced by those collectives, so Communicator implementations guarantee
// that a reduction yields bit-identical results on every rank.
//
// # Implementations
//
//   - Self: a single worker; every collective is a local no-op.
//   - Group: an in-process group of goroutine workers, useful for tests and
//     for shared-memory runs. Run launches one goroutine per rank.
//
// Message-passing transports (MPI, gRPC, ...) can be plugged in by
// implementing Communicator.
//
// # Example
//
//	err := collective.Run(ctx, 4, func(ctx context.Context, comm collective.Communicator) error {
//	    lo, hi := collective.Partition(n, comm.Size(), comm.Rank())
//	    buf := []float64{localSum(data[lo:hi])}
//	    return comm.AllReduceSum(ctx, buf) // buf[0] is the global sum on every rank
//	})
package collective

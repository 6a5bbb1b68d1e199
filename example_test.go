package isvd_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/isvd"
	"github.com/hupe1980/isvd/collective"
)

// Example demonstrates feeding a small snapshot stream into a single-process
// decomposition.
func Example() {
	ctx := context.Background()

	inc, err := isvd.New(3, isvd.WithRedundancyTolerance(1e-6))
	if err != nil {
		log.Fatal(err)
	}

	samples := [][]float64{{1, 0, 0}, {0, 1, 0}, {1, 0, 0}}
	for i, u := range samples {
		res, err := inc.Increment(ctx, u, float64(i))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("t=%d %s k=%d\n", i, res.Outcome, res.Rank)
	}

	for _, sv := range inc.SingularValues() {
		fmt.Printf("%.4f\n", sv)
	}
	// Output:
	// t=0 initial k=1
	// t=1 new k=2
	// t=2 redundant k=2
	// 1.4142
	// 1.0000
}

// Example_distributed demonstrates four in-process workers sharing one
// decomposition, each owning a block of rows.
func Example_distributed() {
	const dim = 8
	samples := [][]float64{
		{1, 1, 0, 0, 0, 0, 0, 0},
		{0, 0, 1, 1, 0, 0, 0, 0},
		{0, 0, 0, 0, 2, 0, 0, 0},
	}

	ranks := make([]int, 4)
	err := collective.Run(context.Background(), 4, func(ctx context.Context, comm collective.Communicator) error {
		lo, hi := collective.Partition(dim, comm.Size(), comm.Rank())
		inc, err := isvd.New(hi-lo, isvd.WithCommunicator(comm))
		if err != nil {
			return err
		}
		for i, u := range samples {
			if _, err := inc.Increment(ctx, u[lo:hi], float64(i)); err != nil {
				return err
			}
		}
		ranks[comm.Rank()] = inc.Rank()
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(ranks)
	// Output: [3 3 3 3]
}

// Example_intervals demonstrates the interval capacity.
func Example_intervals() {
	ctx := context.Background()

	inc, _ := isvd.New(3, isvd.WithIncrementsPerInterval(2))
	for i, u := range [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
		if _, err := inc.Increment(ctx, u, float64(i)); err != nil {
			log.Fatal(err)
		}
	}

	for _, iv := range inc.Intervals() {
		fmt.Printf("interval %d start=%g k=%d closed=%t\n", iv.Index(), iv.StartTime(), iv.Rank(), iv.Closed())
	}
	// Output:
	// interval 0 start=0 k=2 closed=true
	// interval 1 start=2 k=1 closed=false
}

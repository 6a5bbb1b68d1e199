package collective

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSelf(t *testing.T) {
	ctx := context.Background()
	c := Self()

	assert.Equal(t, 0, c.Rank())
	assert.Equal(t, 1, c.Size())

	buf := []float64{1, 2, 3}
	require.NoError(t, c.AllReduceSum(ctx, buf))
	assert.Equal(t, []float64{1, 2, 3}, buf)

	require.NoError(t, c.Broadcast(ctx, 0, buf))
	assert.ErrorIs(t, c.Broadcast(ctx, 1, buf), ErrInvalidRank)
	require.NoError(t, c.Barrier(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, c.AllReduceSum(cancelled, buf), context.Canceled)
}

func TestNewGroup_InvalidSize(t *testing.T) {
	_, err := NewGroup(0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	g, err := NewGroup(2)
	require.NoError(t, err)
	_, err = g.Member(2)
	assert.ErrorIs(t, err, ErrInvalidRank)
	_, err = g.Member(-1)
	assert.ErrorIs(t, err, ErrInvalidRank)
}

func TestRun_AllReduceSum(t *testing.T) {
	const size = 4
	results := make([][]float64, size)

	err := Run(context.Background(), size, func(ctx context.Context, comm Communicator) error {
		buf := []float64{float64(comm.Rank()), 1, float64(comm.Rank() * comm.Rank())}
		if err := comm.AllReduceSum(ctx, buf); err != nil {
			return err
		}
		results[comm.Rank()] = buf
		return nil
	})
	require.NoError(t, err)

	for rank := range size {
		assert.Equal(t, []float64{6, 4, 14}, results[rank], "rank %d", rank)
	}
}

func TestRun_ManyRounds(t *testing.T) {
	const (
		size   = 3
		rounds = 200
	)
	sums := make([][]float64, size)

	err := Run(context.Background(), size, func(ctx context.Context, comm Communicator) error {
		out := make([]float64, 0, rounds)
		for i := range rounds {
			buf := []float64{float64(i + comm.Rank())}
			if err := comm.AllReduceSum(ctx, buf); err != nil {
				return err
			}
			out = append(out, buf[0])
		}
		sums[comm.Rank()] = out
		return nil
	})
	require.NoError(t, err)

	for i := range rounds {
		want := float64(3*i + 3)
		for rank := range size {
			assert.Equal(t, want, sums[rank][i])
		}
	}
}

func TestRun_ReductionIsBitIdentical(t *testing.T) {
	// Values chosen so that summation order changes the rounding.
	contrib := []float64{1e16, 1, -1e16, 1}
	got := make([]float64, len(contrib))

	err := Run(context.Background(), len(contrib), func(ctx context.Context, comm Communicator) error {
		buf := []float64{contrib[comm.Rank()]}
		if err := comm.AllReduceSum(ctx, buf); err != nil {
			return err
		}
		got[comm.Rank()] = buf[0]
		return nil
	})
	require.NoError(t, err)

	for rank := 1; rank < len(got); rank++ {
		assert.Equal(t, got[0], got[rank])
	}
}

func TestRun_Broadcast(t *testing.T) {
	const size = 3
	got := make([][]float64, size)

	err := Run(context.Background(), size, func(ctx context.Context, comm Communicator) error {
		buf := make([]float64, 2)
		if comm.Rank() == 2 {
			buf[0], buf[1] = 7, 9
		}
		if err := comm.Broadcast(ctx, 2, buf); err != nil {
			return err
		}
		if err := comm.Barrier(ctx); err != nil {
			return err
		}
		got[comm.Rank()] = buf
		return nil
	})
	require.NoError(t, err)

	for rank := range size {
		assert.Equal(t, []float64{7, 9}, got[rank])
	}
}

func TestRun_MismatchAbortsAllRanks(t *testing.T) {
	err := Run(context.Background(), 2, func(ctx context.Context, comm Communicator) error {
		buf := make([]float64, 1+comm.Rank())
		return comm.AllReduceSum(ctx, buf)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestRun_FailingRankReleasesOthers(t *testing.T) {
	boom := errors.New("boom")

	err := Run(context.Background(), 3, func(ctx context.Context, comm Communicator) error {
		if comm.Rank() == 1 {
			return boom
		}
		return comm.AllReduceSum(ctx, []float64{1})
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestGroup_ContextCancelAborts(t *testing.T) {
	g, err := NewGroup(2)
	require.NoError(t, err)
	m0, err := g.Member(0)
	require.NoError(t, err)
	m1, err := g.Member(1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = m0.AllReduceSum(ctx, []float64{1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = m1.AllReduceSum(context.Background(), []float64{1})
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, g.Err(), context.DeadlineExceeded)
}

func TestGroup_ConcurrentMembers(t *testing.T) {
	const size = 8
	g, err := NewGroup(size)
	require.NoError(t, err)

	var wg sync.WaitGroup
	out := make([]float64, size)
	for rank := range size {
		m, err := g.Member(rank)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := []float64{1}
			if err := m.AllReduceSum(context.Background(), buf); err == nil {
				out[rank] = buf[0]
			}
		}()
	}
	wg.Wait()

	for rank := range size {
		assert.Equal(t, float64(size), out[rank])
	}
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		n, size   int
		wantSizes []int
	}{
		{"Even", 12, 4, []int{3, 3, 3, 3}},
		{"Remainder", 10, 4, []int{3, 3, 2, 2}},
		{"SingleRank", 7, 1, []int{7}},
		{"MoreRanksThanRows", 2, 3, []int{1, 1, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next := 0
			for rank := range tc.size {
				lo, hi := Partition(tc.n, tc.size, rank)
				assert.Equal(t, next, lo, "rank %d must start where the previous ended", rank)
				assert.Equal(t, tc.wantSizes[rank], hi-lo, "rank %d", rank)
				next = hi
			}
			assert.Equal(t, tc.n, next)
		})
	}

	lo, hi := Partition(10, 4, 4)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 0, hi)
}

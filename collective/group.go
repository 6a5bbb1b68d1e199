package collective

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

type opKind uint8

const (
	opAllReduce opKind = iota + 1
	opBroadcast
	opBarrier
)

func (k opKind) String() string {
	switch k {
	case opAllReduce:
		return "allreduce"
	case opBroadcast:
		return "broadcast"
	case opBarrier:
		return "barrier"
	default:
		return "unknown"
	}
}

// round is one collective operation in flight. Ranks are matched into rounds
// by call order.
type round struct {
	kind    opKind
	n       int
	root    int
	contrib [][]float64
	arrived int
	result  []float64
	done    chan struct{}
}

// Group is an in-process SPMD group. Each rank is driven by its own goroutine
// and talks to the others through Member communicators.
//
// A Group is aborted when a rank observes a mismatch, when a member's context
// is cancelled while waiting, or when Abort is called. Once aborted every
// collective on every rank fails with ErrAborted wrapping the cause.
type Group struct {
	size int

	mu       sync.Mutex
	cur      *round
	abortErr error
	aborted  chan struct{}
}

// NewGroup creates a group of size ranks.
func NewGroup(size int) (*Group, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	return &Group{
		size:    size,
		aborted: make(chan struct{}),
	}, nil
}

// Size returns the number of ranks in the group.
func (g *Group) Size() int {
	return g.size
}

// Member returns the communicator of the given rank.
func (g *Group) Member(rank int) (*Member, error) {
	if rank < 0 || rank >= g.size {
		return nil, ErrInvalidRank
	}
	return &Member{group: g, rank: rank}, nil
}

// Abort fails all pending and future collectives of the group.
// Only the first cause is kept.
func (g *Group) Abort(cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.abortLocked(cause)
}

// Err returns the abort error, or nil while the group is healthy.
func (g *Group) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.abortErr
}

func (g *Group) abortLocked(cause error) {
	if g.abortErr != nil {
		return
	}
	if cause == nil {
		g.abortErr = ErrAborted
	} else {
		g.abortErr = fmt.Errorf("%w: %w", ErrAborted, cause)
	}
	close(g.aborted)
}

func (g *Group) exchange(ctx context.Context, rank int, kind opKind, root int, buf []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	if g.abortErr != nil {
		err := g.abortErr
		g.mu.Unlock()
		return err
	}

	r := g.cur
	if r == nil {
		r = &round{
			kind:    kind,
			n:       len(buf),
			root:    root,
			contrib: make([][]float64, g.size),
			done:    make(chan struct{}),
		}
		g.cur = r
	}

	if r.kind != kind || r.n != len(buf) || r.root != root {
		g.abortLocked(fmt.Errorf("%w: rank %d entered %s(len=%d, root=%d) while round is %s(len=%d, root=%d)",
			ErrMismatch, rank, kind, len(buf), root, r.kind, r.n, r.root))
		err := g.abortErr
		g.mu.Unlock()
		return err
	}

	switch kind {
	case opAllReduce:
		r.contrib[rank] = append([]float64(nil), buf...)
	case opBroadcast:
		if rank == root {
			r.contrib[rank] = append([]float64(nil), buf...)
		}
	}
	r.arrived++

	if r.arrived == g.size {
		r.result = r.reduce()
		g.cur = nil
		close(r.done)
	}
	g.mu.Unlock()

	select {
	case <-r.done:
	case <-g.aborted:
		return g.Err()
	case <-ctx.Done():
		g.Abort(ctx.Err())
		return ctx.Err()
	}

	if r.result != nil {
		copy(buf, r.result)
	}
	return nil
}

// reduce sums the contributions in rank order so that the rounding is the same
// no matter in which order the ranks arrived.
func (r *round) reduce() []float64 {
	switch r.kind {
	case opAllReduce:
		out := make([]float64, r.n)
		for _, c := range r.contrib {
			for i, v := range c {
				out[i] += v
			}
		}
		return out
	case opBroadcast:
		return r.contrib[r.root]
	default:
		return nil
	}
}

// Member is the Communicator of one rank of a Group.
type Member struct {
	group *Group
	rank  int
}

// Rank implements Communicator.
func (m *Member) Rank() int { return m.rank }

// Size implements Communicator.
func (m *Member) Size() int { return m.group.size }

// AllReduceSum implements Communicator.
func (m *Member) AllReduceSum(ctx context.Context, buf []float64) error {
	return m.group.exchange(ctx, m.rank, opAllReduce, 0, buf)
}

// Broadcast implements Communicator.
func (m *Member) Broadcast(ctx context.Context, root int, buf []float64) error {
	if root < 0 || root >= m.group.size {
		return ErrInvalidRank
	}
	return m.group.exchange(ctx, m.rank, opBroadcast, root, buf)
}

// Barrier implements Communicator.
func (m *Member) Barrier(ctx context.Context) error {
	return m.group.exchange(ctx, m.rank, opBarrier, 0, nil)
}

// Run starts size workers on a fresh Group and waits for all of them.
// The first failing worker aborts the group so that ranks blocked in a
// collective return instead of waiting forever; the returned error is the
// first one reported.
func Run(ctx context.Context, size int, fn func(ctx context.Context, comm Communicator) error) error {
	g, err := NewGroup(size)
	if err != nil {
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for rank := range size {
		member, _ := g.Member(rank)
		eg.Go(func() error {
			if err := fn(egCtx, member); err != nil {
				g.Abort(fmt.Errorf("rank %d: %w", rank, err))
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

package collective

// Partition returns the half-open row range [lo, hi) owned by rank when n rows
// are split into size contiguous blocks. The first n%size ranks own one extra
// row, so the local lengths differ by at most one and sum to n.
func Partition(n, size, rank int) (lo, hi int) {
	if n <= 0 || size <= 0 || rank < 0 || rank >= size {
		return 0, 0
	}
	base, rem := n/size, n%size
	lo = rank*base + min(rank, rem)
	hi = lo + base
	if rank < rem {
		hi++
	}
	return lo, hi
}

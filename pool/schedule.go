package pool

// Schedule computes the order in which a run's blocks should be hinted to
// the prefetch pool. The STXXL original solves an assignment problem that
// interleaves hints across disks to keep every disk's queue busy; this
// identity schedule (hint in stream order) is a correct but unoptimized
// baseline — every block still gets prefetched, just without the
// disk-interleaving reordering the optimal schedule would apply.
func Schedule(n int) []int {
	seq := make([]int, n)
	for i := range seq {
		seq[i] = i
	}
	return seq
}

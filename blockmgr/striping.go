package blockmgr

import "math/rand"

// Strategy maps a position within a run to a target disk index in
// [begin, end). Striping and SimpleRandom depend only on position;
// FullyRandom and RandomizedCycling keep internal state and ignore it.
// Callers never mutate
// the allocator's free list directly, only through Manager (spec §5, "The
// block manager is the only entity allowed to call allocator methods").
type Strategy func(pos int) int

// Striping returns `begin + (i mod D)`.
func Striping(begin, end int) Strategy {
	d := end - begin
	return func(pos int) int {
		return begin + pos%d
	}
}

// FullyRandom returns a uniform random disk in [begin, end) on every call.
// Not reproducible across calls by design (spec §4.3); use SimpleRandom for
// a fixed-phase reproducible variant.
func FullyRandom(begin, end int, rng *rand.Rand) Strategy {
	d := end - begin
	return func(int) int {
		return begin + rng.Intn(d)
	}
}

// SimpleRandom returns `begin + ((i + phase) mod D)` where phase is drawn
// once at construction time.
func SimpleRandom(begin, end int, rng *rand.Rand) Strategy {
	d := end - begin
	phase := rng.Intn(d)
	return func(pos int) int {
		return begin + (pos+phase)%d
	}
}

// RandomizedCycling hands out disks from a freshly shuffled permutation of
// [begin, end); once the permutation is consumed it is reshuffled.
func RandomizedCycling(begin, end int, rng *rand.Rand) Strategy {
	d := end - begin
	perm := make([]int, d)
	idx := d // force an initial shuffle on first call
	reshuffle := func() {
		for i := range perm {
			perm[i] = begin + i
		}
		rng.Shuffle(d, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		idx = 0
	}
	return func(int) int {
		if idx >= d {
			reshuffle()
		}
		disk := perm[idx]
		idx++
		return disk
	}
}

// InterleavedStriping adapts Striping so that consecutive blocks of *each*
// of nRuns concurrently-allocated runs land on distinct disks: run r's
// position i is mapped through the base striping sequence at slot
// r + i*nRuns instead of i alone, per spec §4.3's interleaved_* row.
func InterleavedStriping(begin, end, nRuns, run int) Strategy {
	d := end - begin
	base := Striping(0, nRuns*d)
	return func(pos int) int {
		return begin + base(pos*nRuns+run)%d
	}
}

// InterleavedFullyRandom is the interleaved variant of FullyRandom: each
// run gets its own independent random stream so two runs' i-th blocks are
// not correlated.
func InterleavedFullyRandom(begin, end int, rng *rand.Rand) Strategy {
	return FullyRandom(begin, end, rng)
}

// InterleavedSimpleRandom is the interleaved variant of SimpleRandom: each
// run draws its own phase so consecutive runs don't share a phase offset.
func InterleavedSimpleRandom(begin, end int, rng *rand.Rand) Strategy {
	return SimpleRandom(begin, end, rng)
}

// InterleavedRandomizedCycling is the interleaved variant of
// RandomizedCycling: each run gets its own permutation stream.
func InterleavedRandomizedCycling(begin, end int, rng *rand.Rand) Strategy {
	return RandomizedCycling(begin, end, rng)
}

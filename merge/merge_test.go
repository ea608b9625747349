package merge

import (
	"encoding/binary"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xsortlib/go-xsort/blockmgr"
	"github.com/xsortlib/go-xsort/diskqueue"
	"github.com/xsortlib/go-xsort/file"
	"github.com/xsortlib/go-xsort/file/simdisk"
	"github.com/xsortlib/go-xsort/pool"
)

const testBlockSize = 64 // 8 uint64s per block

type uint64Codec struct{}

func (uint64Codec) Size() int { return 8 }
func (uint64Codec) Encode(v uint64, dst []byte) {
	binary.LittleEndian.PutUint64(dst, v)
}
func (uint64Codec) Decode(src []byte) uint64 {
	return binary.LittleEndian.Uint64(src)
}

var uint64Cmp = Comparator[uint64]{
	Less: func(a, b uint64) bool { return a < b },
	Max:  func() uint64 { return ^uint64(0) },
}

type testEnv struct {
	mgr      *blockmgr.Manager
	disks    *pool.Disks
	write    *pool.Write
	prefetch *pool.Prefetch
}

func newTestEnv(t *testing.T, nDisks int) *testEnv {
	t.Helper()
	files := make([]file.File, nDisks)
	sizers := make([]blockmgr.Sizer, nDisks)
	autogrow := make([]bool, nDisks)
	initial := make([]int64, nDisks)
	for i := range files {
		d := simdisk.New(0)
		files[i] = d
		sizers[i] = d
		autogrow[i] = true
	}
	mgr := blockmgr.NewManager(testBlockSize, initial, autogrow, sizers)
	disks := pool.NewDisks(files, diskqueue.PriorityNone)
	write := pool.NewWrite(disks, testBlockSize, 4)
	prefetch := pool.NewPrefetch(disks, testBlockSize, 4)
	t.Cleanup(disks.Stop)
	return &testEnv{mgr: mgr, disks: disks, write: write, prefetch: prefetch}
}

func (e *testEnv) strategy() func() blockmgr.Strategy {
	return func() blockmgr.Strategy { return blockmgr.Striping(0, e.mgr.NumDisks()) }
}

func collectSource(t *testing.T, s Source[uint64]) []uint64 {
	t.Helper()
	var out []uint64
	for {
		v, ok := s.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func TestFormRuns_SortsAndPreservesAllElements(t *testing.T) {
	env := newTestEnv(t, 2)

	const n = 500
	rng := rand.New(rand.NewSource(1))
	input := make([]uint64, n)
	for i := range input {
		input[i] = rng.Uint64() % 1_000_000
	}
	idx := 0
	next := func() (uint64, bool) {
		if idx >= len(input) {
			return 0, false
		}
		v := input[idx]
		idx++
		return v, true
	}

	runs, err := FormRuns(next, 37, testBlockSize/8, uint64Cmp, env.mgr, env.strategy(), env.write, uint64Codec{})
	require.NoError(t, err)
	require.NotEmpty(t, runs)

	total := 0
	for _, r := range runs {
		src := sourceFor(r, testBlockSize, uint64Codec{}, env.prefetch, 2)
		vals := collectSource(t, src)
		require.Equal(t, r.NumElems, len(vals))
		require.True(t, sort.SliceIsSorted(vals, func(i, j int) bool { return vals[i] < vals[j] }))
		total += len(vals)
	}
	require.Equal(t, n, total)
}

func TestFormRuns_SmallInputStaysInMemory(t *testing.T) {
	env := newTestEnv(t, 1)

	input := []uint64{5, 4, 3, 2, 1}
	idx := 0
	next := func() (uint64, bool) {
		if idx >= len(input) {
			return 0, false
		}
		v := input[idx]
		idx++
		return v, true
	}

	runs, err := FormRuns(next, 100, testBlockSize/8, uint64Cmp, env.mgr, env.strategy(), env.write, uint64Codec{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Nil(t, runs[0].BIDs)
	require.Equal(t, []uint64{1, 2, 3, 4, 5}, runs[0].InMemory)
}

func TestFormRuns_ExactlyOneBlockStaysInMemory(t *testing.T) {
	env := newTestEnv(t, 1)
	elemsPerBlock := testBlockSize / 8 // 8

	input := make([]uint64, elemsPerBlock)
	for i := range input {
		input[i] = uint64(elemsPerBlock - i)
	}
	idx := 0
	next := func() (uint64, bool) {
		if idx >= len(input) {
			return 0, false
		}
		v := input[idx]
		idx++
		return v, true
	}

	runs, err := FormRuns(next, 100, elemsPerBlock, uint64Cmp, env.mgr, env.strategy(), env.write, uint64Codec{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Nil(t, runs[0].BIDs, "a run that exactly fills one block must stay resident, not be externalized")
}

func TestFormRuns_OneMoreThanOneBlockIsExternalized(t *testing.T) {
	env := newTestEnv(t, 1)
	elemsPerBlock := testBlockSize / 8 // 8

	input := make([]uint64, elemsPerBlock+1)
	for i := range input {
		input[i] = uint64(len(input) - i)
	}
	idx := 0
	next := func() (uint64, bool) {
		if idx >= len(input) {
			return 0, false
		}
		v := input[idx]
		idx++
		return v, true
	}

	runs, err := FormRuns(next, 100, elemsPerBlock, uint64Cmp, env.mgr, env.strategy(), env.write, uint64Codec{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].BIDs, "a run one element past one block's capacity must be externalized to BIDs")
}

func TestMergeRuns_TwoResidentRunsProduceExternalSortedOutput(t *testing.T) {
	env := newTestEnv(t, 2)
	elemsPerBlock := testBlockSize / 8

	makeRun := func(vals []uint64) Run[uint64] {
		sorted := append([]uint64(nil), vals...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		idx := 0
		next := func() (uint64, bool) {
			if idx >= len(sorted) {
				return 0, false
			}
			v := sorted[idx]
			idx++
			return v, true
		}
		runs, err := FormRuns(next, len(sorted), elemsPerBlock, uint64Cmp, env.mgr, env.strategy(), env.write, uint64Codec{})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		return runs[0]
	}

	runA := makeRun([]uint64{1, 5, 9, 20, 40})
	runB := makeRun([]uint64{2, 3, 8, 25, 30, 35})

	merged, err := MergeRuns([]Run[uint64]{runA, runB}, elemsPerBlock, uint64Cmp, env.mgr, env.strategy(), env.write, env.prefetch, uint64Codec{}, testBlockSize)
	require.NoError(t, err)
	require.Equal(t, 11, merged.NumElems)

	src := sourceFor(merged, testBlockSize, uint64Codec{}, env.prefetch, 2)
	vals := collectSource(t, src)
	require.Equal(t, []uint64{1, 2, 3, 5, 8, 9, 20, 25, 30, 35, 40}, vals)
}

// TestMergeRuns_ArityExceedsPrefetchBufferCount merges more external runs
// at once than the prefetch pool has buffers for (env.prefetch is built
// with 4 buffers in newTestEnv), forcing sourceFor's per-run streams to
// contend for — and evict each other from — a pool smaller than the
// merge's fan-in. The merge must still produce correct, fully sorted
// output instead of deadlocking or corrupting data.
func TestMergeRuns_ArityExceedsPrefetchBufferCount(t *testing.T) {
	env := newTestEnv(t, 2)
	elemsPerBlock := testBlockSize / 8 // 8

	const numRuns = 10                // > the prefetch pool's 4 buffers
	perRun := elemsPerBlock * 3 // each run spans multiple blocks

	rng := rand.New(rand.NewSource(7))
	var want []uint64
	runsToMerge := make([]Run[uint64], numRuns)
	for r := 0; r < numRuns; r++ {
		vals := make([]uint64, perRun)
		for i := range vals {
			vals[i] = rng.Uint64() % 1_000_000
		}
		want = append(want, vals...)
		sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })

		idx := 0
		next := func() (uint64, bool) {
			if idx >= len(vals) {
				return 0, false
			}
			v := vals[idx]
			idx++
			return v, true
		}
		runs, err := FormRuns(next, perRun, elemsPerBlock, uint64Cmp, env.mgr, env.strategy(), env.write, uint64Codec{})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		require.NotNil(t, runs[0].BIDs, "run must be externalized to actually exercise prefetch buffers")
		runsToMerge[r] = runs[0]
	}

	merged, err := MergeRuns(runsToMerge, elemsPerBlock, uint64Cmp, env.mgr, env.strategy(), env.write, env.prefetch, uint64Codec{}, testBlockSize)
	require.NoError(t, err)
	require.Equal(t, numRuns*perRun, merged.NumElems)

	src := sourceFor(merged, testBlockSize, uint64Codec{}, env.prefetch, 2)
	got := collectSource(t, src)

	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	require.Equal(t, want, got)
}

func TestCascade_ManySmallRunsConvergeToOneSortedRun(t *testing.T) {
	env := newTestEnv(t, 3)
	elemsPerBlock := testBlockSize / 8

	const n = 2000
	rng := rand.New(rand.NewSource(42))
	input := make([]uint64, n)
	for i := range input {
		input[i] = rng.Uint64() % 1_000_000
	}
	idx := 0
	next := func() (uint64, bool) {
		if idx >= len(input) {
			return 0, false
		}
		v := input[idx]
		idx++
		return v, true
	}

	runs, err := FormRuns(next, 40, elemsPerBlock, uint64Cmp, env.mgr, env.strategy(), env.write, uint64Codec{})
	require.NoError(t, err)
	require.Greater(t, len(runs), 1)

	final, err := Cascade(runs, 4, elemsPerBlock, uint64Cmp, env.mgr, env.strategy(), env.write, env.prefetch, uint64Codec{}, testBlockSize)
	require.NoError(t, err)
	require.Equal(t, n, final.NumElems)

	src := sourceFor(final, testBlockSize, uint64Codec{}, env.prefetch, 2)
	got := collectSource(t, src)
	require.Len(t, got, n)

	want := append([]uint64(nil), input...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	require.Equal(t, want, got)
}

func TestOptimalMergeFactor_SingleRunNeedsNoMerge(t *testing.T) {
	require.Equal(t, 1, OptimalMergeFactor(1, 4))
	require.Equal(t, 0, OptimalMergeFactor(0, 4))
}

func TestMergeGroups_SplitsSequentialIndices(t *testing.T) {
	groups := MergeGroups(10, 4)
	require.Equal(t, [][2]int{{0, 4}, {4, 8}, {8, 10}}, groups)
}

package pqueue

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
	"github.com/xsortlib/go-xsort/merge"
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

var uint64Cmp = merge.Comparator[uint64]{
	Less: func(a, b uint64) bool { return a < b },
	Max:  func() uint64 { return ^uint64(0) },
}

func newTestQueue(t *testing.T, nDisks, insertCap, arity int) *PriorityQueue[uint64] {
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

	strategy := func() blockmgr.Strategy { return blockmgr.Striping(0, mgr.NumDisks()) }
	return New(uint64Cmp, insertCap, arity, testBlockSize/8, testBlockSize, mgr, strategy, write, prefetch, uint64Codec{})
}

func TestPriorityQueue_PushPopReturnsDescendingOrder(t *testing.T) {
	pq := newTestQueue(t, 2, 8, 3)

	input := []uint64{5, 1, 9, 3, 7, 2, 8, 4, 6}
	for _, v := range input {
		require.NoError(t, pq.Push(v))
	}
	require.Equal(t, len(input), pq.Size())

	want := append([]uint64(nil), input...)
	sort.Slice(want, func(i, j int) bool { return want[i] > want[j] })

	var got []uint64
	for !pq.Empty() {
		v, err := pq.Pop()
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, want, got)
}

func TestPriorityQueue_TopDoesNotRemove(t *testing.T) {
	pq := newTestQueue(t, 1, 4, 2)
	require.NoError(t, pq.Push(10))
	require.NoError(t, pq.Push(20))

	top, ok := pq.Top()
	require.True(t, ok)
	require.Equal(t, uint64(20), top)
	require.Equal(t, 2, pq.Size())

	v, err := pq.Pop()
	require.NoError(t, err)
	require.Equal(t, uint64(20), v)
}

func TestPriorityQueue_EmptyPopErrors(t *testing.T) {
	pq := newTestQueue(t, 1, 4, 2)
	_, err := pq.Pop()
	require.Error(t, err)
}

func TestPriorityQueue_CascadesAcrossLevels(t *testing.T) {
	pq := newTestQueue(t, 3, 4, 2)

	const n = 300
	rng := rand.New(rand.NewSource(7))
	input := make([]uint64, n)
	for i := range input {
		input[i] = rng.Uint64() % 100000
		require.NoError(t, pq.Push(input[i]))
	}

	want := append([]uint64(nil), input...)
	sort.Slice(want, func(i, j int) bool { return want[i] > want[j] })

	var got []uint64
	for !pq.Empty() {
		v, err := pq.Pop()
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, want, got)
}

func TestPriorityQueue_InterleavedPushPopTracksRunningMax(t *testing.T) {
	pq := newTestQueue(t, 2, 6, 2)
	rng := rand.New(rand.NewSource(99))

	var resident []uint64
	for i := 0; i < 2000; i++ {
		if len(resident) == 0 || rng.Intn(3) != 0 {
			v := rng.Uint64() % 1_000_000
			require.NoError(t, pq.Push(v))
			resident = append(resident, v)
		} else {
			sort.Slice(resident, func(i, j int) bool { return resident[i] > resident[j] })
			want := resident[0]
			resident = resident[1:]

			got, err := pq.Pop()
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
	}
}

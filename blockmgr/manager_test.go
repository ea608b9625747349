package blockmgr

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, nDisks int, sizePerDisk int64) *Manager {
	t.Helper()
	sizes := make([]int64, nDisks)
	grow := make([]bool, nDisks)
	sizers := make([]Sizer, nDisks)
	for i := range sizes {
		sizes[i] = sizePerDisk
	}
	return NewManager(4096, sizes, grow, sizers)
}

func TestStriping_DiskAssignment(t *testing.T) {
	m := newTestManager(t, 4, 1<<20)
	strat := Striping(0, 4)
	bids, err := m.NewBlocks(strat, 100)
	require.NoError(t, err)
	for k, b := range bids {
		assert.Equal(t, k%4, b.Disk, "disk_id(k) = k mod 4 for all k")
	}
}

func TestManager_FreeAllocatedInvariant(t *testing.T) {
	m := newTestManager(t, 2, 1<<16)
	strat := Striping(0, 2)
	bids, err := m.NewBlocks(strat, 8)
	require.NoError(t, err)

	assert.Equal(t, m.TotalBytes(), m.FreeBytes()+int64(len(bids))*m.BlockSize())

	require.NoError(t, m.DeleteBlocks(bids))
	assert.Equal(t, m.TotalBytes(), m.FreeBytes(), "all bytes should be free again")
}

func TestManager_DoubleFreeIsFatal(t *testing.T) {
	m := newTestManager(t, 1, 1<<16)
	bids, err := m.NewBlocks(Striping(0, 1), 1)
	require.NoError(t, err)

	require.NoError(t, m.DeleteBlock(bids[0]))
	err = m.DeleteBlock(bids[0])
	require.Error(t, err)
	var inv *InvariantError
	assert.ErrorAs(t, err, &inv)
}

func TestManager_OutOfSpaceWithoutAutogrow(t *testing.T) {
	m := newTestManager(t, 1, 4096) // exactly one block
	_, err := m.NewBlocks(Striping(0, 1), 1)
	require.NoError(t, err)

	_, err = m.NewBlocks(Striping(0, 1), 1)
	require.Error(t, err)
	var allocErr *AllocError
	assert.ErrorAs(t, err, &allocErr)
}

type growableSizer struct{ size int64 }

func (g *growableSizer) Size() int64       { return g.size }
func (g *growableSizer) SetSize(n int64) error {
	g.size = n
	return nil
}

func TestManager_Autogrow(t *testing.T) {
	sizer := &growableSizer{size: 4096}
	m := NewManager(4096, []int64{4096}, []bool{true}, []Sizer{sizer})

	bids, err := m.NewBlocks(Striping(0, 1), 3)
	require.NoError(t, err)
	assert.Len(t, bids, 3)
	assert.Equal(t, int64(3*4096), sizer.size)
}

func TestAllocator_CoalescesAdjacentFree(t *testing.T) {
	a := newFileAllocator(3*4096, false, nil)
	off1, err := a.allocate(4096)
	require.NoError(t, err)
	off2, err := a.allocate(4096)
	require.NoError(t, err)

	require.NoError(t, a.release(off1, 4096))
	require.NoError(t, a.release(off2, 4096))

	assert.Len(t, a.free, 1, "adjacent released regions must coalesce into one")
	assert.Equal(t, int64(3*4096), a.freeBytes())
}

func TestRandomizedCycling_ConsumesFullPermutationBeforeRepeat(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	strat := RandomizedCycling(0, 4, rng)
	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		seen[strat(i)] = true
	}
	assert.Len(t, seen, 4, "a full cycle must touch every disk exactly once")
}

func TestInterleavedStriping_ConsecutiveRunBlocksDistinctDisks(t *testing.T) {
	const nRuns, d = 3, 4
	for run := 0; run < nRuns; run++ {
		strat := InterleavedStriping(0, d, nRuns, run)
		seen := map[int]bool{}
		for i := 0; i < d; i++ {
			seen[strat(i)] = true
		}
		assert.Len(t, seen, d)
	}
}

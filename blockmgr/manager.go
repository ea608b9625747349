package blockmgr

import "sync"

// Sizer is the minimal contract Manager needs from a backing file to
// support autogrow: its current logical size and the ability to extend it.
// file.File satisfies this directly.
type Sizer interface {
	Size() int64
	SetSize(n int64) error
}

// Manager owns per-disk address space and hands out BIDs of a fixed block
// size under a caller-chosen Strategy. One Manager is created per process
// and outlives every block it allocates (spec §3, "Lifecycles"); its
// internal map is mutex-protected and it is the only entity allowed to
// manipulate the free-region lists directly (spec §5).
type Manager struct {
	mu         sync.Mutex
	blockSize  int64
	allocators []*fileAllocator
}

// NewManager creates a block manager over nDisks backing files, each
// starting at initialSizes[i] bytes (0 is legal; it means "empty, grows on
// first allocation" when autogrow[i] is true). sizers[i] may be nil if
// autogrow[i] is false.
func NewManager(blockSize int64, initialSizes []int64, autogrow []bool, sizers []Sizer) *Manager {
	m := &Manager{
		blockSize:  blockSize,
		allocators: make([]*fileAllocator, len(initialSizes)),
	}
	for i := range initialSizes {
		var grow func(int64) error
		if autogrow[i] && sizers[i] != nil {
			s := sizers[i]
			grow = func(n int64) error { return s.SetSize(n) }
		}
		m.allocators[i] = newFileAllocator(initialSizes[i], autogrow[i], grow)
	}
	return m
}

// BlockSize returns the fixed block size this manager allocates in.
func (m *Manager) BlockSize() int64 { return m.blockSize }

// NumDisks returns the number of backing files this manager spans.
func (m *Manager) NumDisks() int { return len(m.allocators) }

// NewBlocks allocates n blocks, dispatching block i to disk strategy(i),
// then to that disk's allocator (spec §4.3, "Bulk-new"). Each disk is
// filled via allocateRun so blocks destined for the same disk get a shot at
// a single contiguous span before falling back to per-block allocation.
func (m *Manager) NewBlocks(strategy Strategy, n int) ([]BID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	perDisk := map[int][]int{} // disk -> positions, in call order
	order := make([]int, n)
	for i := 0; i < n; i++ {
		d := strategy(i)
		order[i] = d
		perDisk[d] = append(perDisk[d], i)
	}

	out := make([]BID, n)
	for disk, positions := range perDisk {
		if disk < 0 || disk >= len(m.allocators) {
			return nil, &AllocError{Disk: disk, Reason: "strategy returned an out-of-range disk index"}
		}
		bids, err := m.allocateRun(disk, len(positions))
		if err != nil {
			return nil, err
		}
		for i, pos := range positions {
			out[pos] = bids[i]
		}
	}
	return out, nil
}

// allocateRun tries to satisfy a request for `count` blocks on one disk as
// a single contiguous span; on failure it recursively halves the request
// per spec §4.3 ("if unavailable, the range is split in half recursively").
func (m *Manager) allocateRun(disk, count int) ([]BID, error) {
	if count == 0 {
		return nil, nil
	}
	a := m.allocators[disk]
	if off, err := a.allocate(int64(count) * m.blockSize); err == nil {
		bids := make([]BID, count)
		for i := 0; i < count; i++ {
			bids[i] = BID{Disk: disk, Offset: off + int64(i)*m.blockSize}
		}
		return bids, nil
	} else if count == 1 {
		return nil, err
	}

	left := count / 2
	right := count - left
	leftBIDs, err := m.allocateRun(disk, left)
	if err != nil {
		return nil, err
	}
	rightBIDs, err := m.allocateRun(disk, right)
	if err != nil {
		for _, b := range leftBIDs {
			_ = a.release(b.Offset, m.blockSize)
		}
		return nil, err
	}
	return append(leftBIDs, rightBIDs...), nil
}

// DeleteBlock frees one previously allocated block.
func (m *Manager) DeleteBlock(bid BID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bid.Disk < 0 || bid.Disk >= len(m.allocators) {
		return &InvariantError{Disk: bid.Disk, Offset: bid.Offset, Length: m.blockSize, Reason: "disk index out of range"}
	}
	return m.allocators[bid.Disk].release(bid.Offset, m.blockSize)
}

// DeleteBlocks frees a slice of blocks. It does not stop at the first
// error; it accumulates and returns the first one seen so callers get a
// complete best-effort free even under a corrupted BID list.
func (m *Manager) DeleteBlocks(bids []BID) error {
	var first error
	for _, b := range bids {
		if err := m.DeleteBlock(b); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FreeBytes returns total free bytes across all disks, for the
// free+allocated=size invariant check (spec §8).
func (m *Manager) FreeBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, a := range m.allocators {
		total += a.freeBytes()
	}
	return total
}

// TotalBytes returns the sum of the current logical sizes of all disks.
func (m *Manager) TotalBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, a := range m.allocators {
		total += a.fileSize
	}
	return total
}

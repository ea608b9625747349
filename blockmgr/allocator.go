package blockmgr

import "sort"

// region is a free byte range [Offset, Offset+Length) within one file.
type region struct {
	Offset int64
	Length int64
}

// fileAllocator sub-allocates the address space of a single backing file.
// free holds disjoint, non-adjacent regions sorted by Offset; adjacent
// regions are always coalesced on Free so the invariant
// "free regions are pairwise disjoint and non-adjacent" (spec §8) holds
// after every call.
type fileAllocator struct {
	free     []region
	fileSize int64
	autogrow bool
	grow     func(newSize int64) error
}

func newFileAllocator(initialSize int64, autogrow bool, grow func(int64) error) *fileAllocator {
	a := &fileAllocator{
		fileSize: initialSize,
		autogrow: autogrow,
		grow:     grow,
	}
	if initialSize > 0 {
		a.free = []region{{Offset: 0, Length: initialSize}}
	}
	return a
}

// allocate reserves a contiguous span of size bytes, first-fit over the
// free-region list, growing the file if autogrow is enabled and no region
// is large enough.
func (a *fileAllocator) allocate(size int64) (int64, error) {
	if idx, ok := a.firstFit(size); ok {
		r := a.free[idx]
		offset := r.Offset
		if r.Length == size {
			a.free = append(a.free[:idx], a.free[idx+1:]...)
		} else {
			a.free[idx] = region{Offset: r.Offset + size, Length: r.Length - size}
		}
		return offset, nil
	}

	if !a.autogrow {
		return 0, &AllocError{Requested: size, Reason: "no free region large enough and autogrow disabled"}
	}

	growBy := size
	if tail := a.trailingFree(); tail != nil {
		growBy = size - tail.Length
	}
	newSize := a.fileSize + growBy
	if a.grow != nil {
		if err := a.grow(newSize); err != nil {
			return 0, &AllocError{Requested: size, Reason: "autogrow failed: " + err.Error()}
		}
	}
	offset := a.fileSize
	if tail := a.trailingFree(); tail != nil {
		offset = tail.Offset
		a.free = a.free[:len(a.free)-1]
	}
	a.fileSize = newSize
	return offset, nil
}

// trailingFree returns the free region abutting end-of-file, if any, so
// autogrow can extend it rather than leaving a gap.
func (a *fileAllocator) trailingFree() *region {
	for i := range a.free {
		if a.free[i].Offset+a.free[i].Length == a.fileSize {
			r := a.free[i]
			return &r
		}
	}
	return nil
}

// firstFit returns the index of the first free region at least size bytes
// long, in offset order.
func (a *fileAllocator) firstFit(size int64) (int, bool) {
	for i, r := range a.free {
		if r.Length >= size {
			return i, true
		}
	}
	return 0, false
}

// release returns [offset, offset+size) back to the pool, coalescing with an
// adjacent predecessor/successor region. A double-free or a free
// overlapping an already-free region is a fatal InvariantError (spec §4.3).
func (a *fileAllocator) release(offset, size int64) error {
	idx := sort.Search(len(a.free), func(i int) bool { return a.free[i].Offset >= offset })

	if idx < len(a.free) && a.free[idx].Offset < offset+size {
		return &InvariantError{Offset: offset, Length: size, Reason: "free overlaps an already-free region"}
	}
	if idx > 0 {
		prev := a.free[idx-1]
		if prev.Offset+prev.Length > offset {
			return &InvariantError{Offset: offset, Length: size, Reason: "double free or overlap with predecessor"}
		}
	}

	merged := region{Offset: offset, Length: size}
	insertAt := idx

	if idx > 0 && a.free[idx-1].Offset+a.free[idx-1].Length == offset {
		merged.Offset = a.free[idx-1].Offset
		merged.Length += a.free[idx-1].Length
		insertAt = idx - 1
		a.free = append(a.free[:idx-1], a.free[idx:]...)
		idx = insertAt
	}
	if idx < len(a.free) && merged.Offset+merged.Length == a.free[idx].Offset {
		merged.Length += a.free[idx].Length
		a.free = append(a.free[:idx], a.free[idx+1:]...)
	}

	a.free = append(a.free, region{})
	copy(a.free[insertAt+1:], a.free[insertAt:])
	a.free[insertAt] = merged
	return nil
}

// freeBytes returns the sum of all free region lengths, for the
// "free + allocated = file size" invariant check in tests.
func (a *fileAllocator) freeBytes() int64 {
	var total int64
	for _, r := range a.free {
		total += r.Length
	}
	return total
}

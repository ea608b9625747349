// Package wbtl implements a write-buffered translation-layer decorator over
// another file.File: logical block offsets are remapped to physical
// locations on the underlying storage, so every write lands in a freshly
// allocated physical slot instead of overwriting in place. This turns
// random-offset block rewrites into append-style physical writes, which is
// cheap on media that dislikes in-place overwrite. The remap table is
// private to the wbtl.File and never exposed to blockmgr: callers address
// blocks by logical offset exactly as they would any other file.File.
package wbtl

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xsortlib/go-xsort/file"
)

type extent struct {
	physical int64
	length   int64
}

type region struct {
	offset int64
	length int64
}

// File is a write-buffered translation-layer file.File. All reads and
// writes must be aligned to blockSize and exactly blockSize bytes long,
// mirroring the block-granular access pattern blockmgr issues.
type File struct {
	mu        sync.Mutex
	storage   file.File
	blockSize int64

	mapping  map[int64]extent // logical block offset -> physical extent
	free     []region         // sorted, non-overlapping free physical regions
	physEnd  int64
	logicalN int64 // highest logical offset + blockSize ever addressed
}

// New wraps storage with a translation layer using the given block size.
func New(storage file.File, blockSize int64) *File {
	return &File{
		storage:   storage,
		blockSize: blockSize,
		mapping:   make(map[int64]extent),
	}
}

func (wf *File) checkAligned(off int64, n int) error {
	if off%wf.blockSize != 0 || int64(n) != wf.blockSize {
		return fmt.Errorf("wbtl: access at off=%d len=%d not block-aligned (block=%d)", off, n, wf.blockSize)
	}
	return nil
}

// allocatePhysical returns a fresh physical offset for one block, first-fit
// over the free list, growing the backing storage if none fits.
func (wf *File) allocatePhysical() (int64, error) {
	for i, r := range wf.free {
		if r.length >= wf.blockSize {
			phys := r.offset
			if r.length == wf.blockSize {
				wf.free = append(wf.free[:i], wf.free[i+1:]...)
			} else {
				wf.free[i] = region{offset: r.offset + wf.blockSize, length: r.length - wf.blockSize}
			}
			return phys, nil
		}
	}
	phys := wf.physEnd
	wf.physEnd += wf.blockSize
	if err := wf.storage.SetSize(wf.physEnd); err != nil {
		wf.physEnd -= wf.blockSize
		return 0, fmt.Errorf("wbtl: grow storage: %w", err)
	}
	return phys, nil
}

func (wf *File) releasePhysical(phys int64) {
	idx := sort.Search(len(wf.free), func(i int) bool { return wf.free[i].offset >= phys })
	wf.free = append(wf.free, region{})
	copy(wf.free[idx+1:], wf.free[idx:])
	wf.free[idx] = region{offset: phys, length: wf.blockSize}
	wf.coalesce(idx)
}

func (wf *File) coalesce(idx int) {
	if idx+1 < len(wf.free) && wf.free[idx].offset+wf.free[idx].length == wf.free[idx+1].offset {
		wf.free[idx].length += wf.free[idx+1].length
		wf.free = append(wf.free[:idx+1], wf.free[idx+2:]...)
	}
	if idx > 0 && wf.free[idx-1].offset+wf.free[idx-1].length == wf.free[idx].offset {
		wf.free[idx-1].length += wf.free[idx].length
		wf.free = append(wf.free[:idx], wf.free[idx+1:]...)
	}
}

// ReadAt implements file.File. A logical block with no mapping yet reads as
// zero, matching the semantics of an unwritten region.
func (wf *File) ReadAt(p []byte, off int64) (int, error) {
	if err := wf.checkAligned(off, len(p)); err != nil {
		return 0, err
	}
	wf.mu.Lock()
	ext, ok := wf.mapping[off]
	wf.mu.Unlock()
	if !ok {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	return wf.storage.ReadAt(p, ext.physical)
}

// WriteAt implements file.File: the logical block is redirected to a fresh
// physical slot, and any previous physical slot for this logical offset is
// released back to the free list.
func (wf *File) WriteAt(p []byte, off int64) (int, error) {
	if err := wf.checkAligned(off, len(p)); err != nil {
		return 0, err
	}
	wf.mu.Lock()
	old, hadOld := wf.mapping[off]
	phys, err := wf.allocatePhysical()
	if err != nil {
		wf.mu.Unlock()
		return 0, err
	}
	wf.mu.Unlock()

	n, err := wf.storage.WriteAt(p, phys)
	if err != nil {
		return n, err
	}

	wf.mu.Lock()
	wf.mapping[off] = extent{physical: phys, length: wf.blockSize}
	if off+wf.blockSize > wf.logicalN {
		wf.logicalN = off + wf.blockSize
	}
	if hadOld {
		wf.releasePhysical(old.physical)
	}
	wf.mu.Unlock()
	return n, nil
}

// Size implements file.File: the logical size is the high-water mark of
// addressed blocks, not the (larger) physical backing size.
func (wf *File) Size() int64 {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	return wf.logicalN
}

// SetSize implements file.File. Shrinking releases mappings beyond the new
// size; growing just raises the high-water mark (blocks read as zero until
// written).
func (wf *File) SetSize(n int64) error {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	if n < wf.logicalN {
		for off, ext := range wf.mapping {
			if off >= n {
				wf.releasePhysical(ext.physical)
				delete(wf.mapping, off)
			}
		}
	}
	wf.logicalN = n
	return nil
}

// Lock implements file.File by delegating to the underlying storage.
func (wf *File) Lock() error { return wf.storage.Lock() }

// DeleteRegion releases the physical extents of every logical block fully
// contained in [offset, offset+size).
func (wf *File) DeleteRegion(offset, size int64) error {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	end := offset + size
	for off, ext := range wf.mapping {
		if off >= offset && off+wf.blockSize <= end {
			wf.releasePhysical(ext.physical)
			delete(wf.mapping, off)
		}
	}
	return nil
}

// Close closes the underlying storage.
func (wf *File) Close() error { return wf.storage.Close() }

// Package mmap provides an mmap-based file.File backend: the whole file is
// mapped once and ReadAt/WriteAt become plain memory copies, avoiding a
// syscall per operation at the cost of remapping on every SetSize.
package mmap

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// File is an mmap-backed file.File implementation.
type File struct {
	mu   sync.RWMutex
	f    *os.File
	path string
	data []byte // mmap'd region, length == current size
}

// Open opens (creating if necessary) the file at path and maps it.
func Open(path string, initialSize int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mmap: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap: stat %s: %w", path, err)
	}
	size := st.Size()
	if size < initialSize {
		size = initialSize
	}
	mf := &File{f: f, path: path}
	if err := mf.remap(size); err != nil {
		f.Close()
		return nil, err
	}
	return mf, nil
}

// remap resizes the backing file to n bytes and remaps it. Caller must hold mu.
func (mf *File) remap(n int64) error {
	if mf.data != nil {
		if err := unix.Munmap(mf.data); err != nil {
			return fmt.Errorf("mmap: munmap %s: %w", mf.path, err)
		}
		mf.data = nil
	}
	if err := mf.f.Truncate(n); err != nil {
		return fmt.Errorf("mmap: truncate %s to %d: %w", mf.path, n, err)
	}
	if n == 0 {
		return nil
	}
	data, err := unix.Mmap(int(mf.f.Fd()), 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap: mmap %s (%d bytes): %w", mf.path, n, err)
	}
	mf.data = data
	return nil
}

// ReadAt implements file.File.
func (mf *File) ReadAt(p []byte, off int64) (int, error) {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	if off < 0 {
		return 0, fmt.Errorf("mmap: negative offset %d", off)
	}
	if off >= int64(len(mf.data)) {
		return 0, nil
	}
	n := copy(p, mf.data[off:])
	return n, nil
}

// WriteAt implements file.File.
func (mf *File) WriteAt(p []byte, off int64) (int, error) {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	if off < 0 {
		return 0, fmt.Errorf("mmap: negative offset %d", off)
	}
	if off+int64(len(p)) > int64(len(mf.data)) {
		return 0, fmt.Errorf("mmap: write beyond mapped size (off=%d len=%d size=%d)", off, len(p), len(mf.data))
	}
	n := copy(mf.data[off:], p)
	return n, nil
}

// Size implements file.File.
func (mf *File) Size() int64 {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	return int64(len(mf.data))
}

// SetSize implements file.File by unmapping, truncating, and remapping.
func (mf *File) SetSize(n int64) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return mf.remap(n)
}

// Lock implements file.File via flock(2) on the underlying fd.
func (mf *File) Lock() error {
	if err := unix.Flock(int(mf.f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("mmap: lock %s: %w", mf.path, err)
	}
	return nil
}

// DeleteRegion zeroes the range in the mapped memory. It doesn't shrink the
// file; callers that want space reclaimed use SetSize instead.
func (mf *File) DeleteRegion(offset, size int64) error {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	end := offset + size
	if offset < 0 || end > int64(len(mf.data)) {
		return fmt.Errorf("mmap: delete region out of bounds [%d,%d) size=%d", offset, end, len(mf.data))
	}
	for i := offset; i < end; i++ {
		mf.data[i] = 0
	}
	return nil
}

// Close unmaps and closes the backing file.
func (mf *File) Close() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.data != nil {
		if err := unix.Munmap(mf.data); err != nil {
			return fmt.Errorf("mmap: munmap %s: %w", mf.path, err)
		}
		mf.data = nil
	}
	return mf.f.Close()
}

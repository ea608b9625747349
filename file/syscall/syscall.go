// Package syscall provides a buffered-syscall file.File backend over a
// regular *os.File, using positioned pread/pwrite so concurrent
// ReadAt/WriteAt calls need no shared offset or external locking.
package syscall

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a buffered-syscall backend: every read/write goes through the
// kernel page cache, with no alignment requirements.
type File struct {
	f    *os.File
	path string
}

// Open opens (creating if necessary) the file at path for a buffered
// backend.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("syscall: open %s: %w", path, err)
	}
	return &File{f: f, path: path}, nil
}

// ReadAt implements file.File via pread(2).
func (bf *File) ReadAt(p []byte, off int64) (int, error) {
	n, err := unix.Pread(int(bf.f.Fd()), p, off)
	if err != nil {
		return n, fmt.Errorf("syscall: pread %s at %d: %w", bf.path, off, err)
	}
	return n, nil
}

// WriteAt implements file.File via pwrite(2).
func (bf *File) WriteAt(p []byte, off int64) (int, error) {
	n, err := unix.Pwrite(int(bf.f.Fd()), p, off)
	if err != nil {
		return n, fmt.Errorf("syscall: pwrite %s at %d: %w", bf.path, off, err)
	}
	return n, nil
}

// Size implements file.File.
func (bf *File) Size() int64 {
	st, err := bf.f.Stat()
	if err != nil {
		return 0
	}
	return st.Size()
}

// SetSize implements file.File; shrinking truncates, growing is lazy
// (ftruncate extends a sparse hole, materialized by the filesystem on
// first write).
func (bf *File) SetSize(n int64) error {
	if err := bf.f.Truncate(n); err != nil {
		return fmt.Errorf("syscall: truncate %s to %d: %w", bf.path, n, err)
	}
	return nil
}

// Lock takes an advisory whole-file exclusive lock via flock(2); it fails
// if another process holds an incompatible lock.
func (bf *File) Lock() error {
	if err := unix.Flock(int(bf.f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("syscall: lock %s: %w", bf.path, err)
	}
	return nil
}

// DeleteRegion is a best-effort hint; a buffered backend has no way to
// reclaim arbitrary byte ranges from a regular file, so this is a no-op.
func (bf *File) DeleteRegion(offset, size int64) error {
	return nil
}

// Close implements file.File.
func (bf *File) Close() error {
	return bf.f.Close()
}

//go:build !linux

// Package iouring provides an io_uring-backed file.File on Linux. On other
// platforms io_uring doesn't exist, so Open always fails; callers select a
// different backend (syscall, mmap) there.
package iouring

import "fmt"

// File is the non-Linux stand-in; it can never be constructed.
type File struct{}

// Open always fails on non-Linux platforms.
func Open(path string) (*File, error) {
	return nil, fmt.Errorf("iouring: not supported on this platform")
}

func (uf *File) ReadAt(p []byte, off int64) (int, error)  { return 0, errUnsupported() }
func (uf *File) WriteAt(p []byte, off int64) (int, error) { return 0, errUnsupported() }
func (uf *File) Size() int64                              { return 0 }
func (uf *File) SetSize(n int64) error                    { return errUnsupported() }
func (uf *File) Lock() error                              { return errUnsupported() }
func (uf *File) DeleteRegion(offset, size int64) error    { return errUnsupported() }
func (uf *File) Close() error                             { return nil }

func errUnsupported() error {
	return fmt.Errorf("iouring: not supported on this platform")
}

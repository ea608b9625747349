// Package simdisk provides an in-memory simulated disk backend, useful for
// tests and the CLI demo. Its sharded-locking design generalizes the
// teacher's backend.Memory RAM-disk implementation.
package simdisk

import (
	"fmt"
	"sync"
)

// ShardSize is the size of each locking shard. Sharding lets reads and
// writes to disjoint regions of the simulated disk proceed in parallel
// instead of serializing behind one mutex.
const ShardSize = 64 * 1024

// Disk is an in-memory backend implementing file.File.
type Disk struct {
	mu     sync.Mutex // guards data/size during SetSize
	data   []byte
	size   int64
	shards []sync.RWMutex
}

// New creates a simulated disk of the given initial size in bytes.
func New(size int64) *Disk {
	return &Disk{
		data:   make([]byte, size),
		size:   size,
		shards: newShards(size),
	}
}

func newShards(size int64) []sync.RWMutex {
	n := (size + ShardSize - 1) / ShardSize
	if n == 0 {
		n = 1
	}
	return make([]sync.RWMutex, n)
}

func (d *Disk) shardRange(off, length int64) (start, end int) {
	start = int(off / ShardSize)
	end = int((off + length - 1) / ShardSize)
	if end >= len(d.shards) {
		end = len(d.shards) - 1
	}
	if end < start {
		end = start
	}
	return start, end
}

// ReadAt implements file.File.
func (d *Disk) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("simdisk: negative offset %d", off)
	}
	if off >= d.size {
		return 0, nil
	}
	if int64(len(p)) > d.size-off {
		p = p[:d.size-off]
	}

	start, end := d.shardRange(off, int64(len(p)))
	for i := start; i <= end; i++ {
		d.shards[i].RLock()
	}
	n := copy(p, d.data[off:off+int64(len(p))])
	for i := start; i <= end; i++ {
		d.shards[i].RUnlock()
	}
	return n, nil
}

// WriteAt implements file.File.
func (d *Disk) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("simdisk: negative offset %d", off)
	}
	if off >= d.size {
		return 0, fmt.Errorf("simdisk: write beyond end of disk (off=%d size=%d)", off, d.size)
	}
	if int64(len(p)) > d.size-off {
		p = p[:d.size-off]
	}

	start, end := d.shardRange(off, int64(len(p)))
	for i := start; i <= end; i++ {
		d.shards[i].Lock()
	}
	n := copy(d.data[off:off+int64(len(p))], p)
	for i := start; i <= end; i++ {
		d.shards[i].Unlock()
	}
	return n, nil
}

// Size implements file.File.
func (d *Disk) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// SetSize implements file.File. Growing extends with zero bytes; shrinking
// truncates and discards the tail.
func (d *Disk) SetSize(n int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n < 0 {
		return fmt.Errorf("simdisk: negative size %d", n)
	}
	if n == d.size {
		return nil
	}
	grown := make([]byte, n)
	copy(grown, d.data)
	d.data = grown
	d.size = n
	d.shards = newShards(n)
	return nil
}

// Lock is a no-op: a single in-process Disk has no other holder to
// conflict with.
func (d *Disk) Lock() error { return nil }

// DeleteRegion zeroes the given range. A simulated disk has nowhere to
// reclaim space to, so this only clears the bytes (useful for tests that
// assert discarded regions read back as zero).
func (d *Disk) DeleteRegion(offset, size int64) error {
	if offset < 0 || size < 0 {
		return fmt.Errorf("simdisk: negative offset/size")
	}
	end := offset + size
	if offset >= d.Size() {
		return nil
	}
	if end > d.Size() {
		end = d.Size()
	}
	start, last := d.shardRange(offset, end-offset)
	for i := start; i <= last; i++ {
		d.shards[i].Lock()
	}
	for i := offset; i < end; i++ {
		d.data[i] = 0
	}
	for i := start; i <= last; i++ {
		d.shards[i].Unlock()
	}
	return nil
}

// Close releases the backing memory.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = nil
	return nil
}

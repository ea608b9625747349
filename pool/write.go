package pool

import (
	"fmt"
	"sync"

	"github.com/xsortlib/go-xsort/blockmgr"
	"github.com/xsortlib/go-xsort/diskqueue"
)

type busyBlock struct {
	bid blockmgr.BID
	buf []byte
	req *diskqueue.Request
}

// Write is the write-back pool: a small, fixed set of block-sized buffers
// get filled by the caller and handed off for asynchronous writing, so the
// next block can be filled while the previous one is still draining to
// disk. Mirrors the free/busy split of the original write pool. The pool
// never manufactures a buffer beyond the capacity fixed at construction:
// Steal blocks until one is free instead, giving the library its bounded-
// memory guarantee.
type Write struct {
	mu        sync.Mutex
	cond      *sync.Cond
	disks     *Disks
	cache     *bufferCache
	blockSize int64

	freeBufs [][]byte
	busy     []busyBlock
}

// NewWrite creates a write pool backed by disks, with initialBuffers
// block buffers preallocated. That count is the pool's fixed capacity;
// Steal never exceeds it.
func NewWrite(disks *Disks, blockSize int64, initialBuffers int) *Write {
	w := &Write{
		disks:     disks,
		cache:     newBufferCache(),
		blockSize: blockSize,
	}
	w.cond = sync.NewCond(&w.mu)
	for i := 0; i < initialBuffers; i++ {
		w.freeBufs = append(w.freeBufs, w.cache.get(blockSize))
	}
	return w
}

// checkAllBusyLocked opportunistically reclaims any busy buffers whose
// write has already completed. Caller must hold mu.
func (w *Write) checkAllBusyLocked() {
	kept := w.busy[:0]
	for _, b := range w.busy {
		if done, _ := b.req.Poll(); done {
			w.freeBufs = append(w.freeBufs, b.buf)
		} else {
			kept = append(kept, b)
		}
	}
	w.busy = kept
}

// Steal returns a free block buffer. If none is immediately free, it
// reclaims the oldest in-flight write's buffer, awaiting it if it hasn't
// landed yet. If every buffer the pool owns is currently checked out by
// another caller (neither free nor yet submitted via Write), Steal blocks
// until one is returned — the pool's capacity is a hard cap, not a
// starting point for growth.
func (w *Write) Steal() []byte {
	w.mu.Lock()
	for {
		w.checkAllBusyLocked()
		if len(w.freeBufs) > 0 {
			buf := w.freeBufs[len(w.freeBufs)-1]
			w.freeBufs = w.freeBufs[:len(w.freeBufs)-1]
			w.mu.Unlock()
			return buf
		}
		if len(w.busy) > 0 {
			oldest := w.busy[0]
			w.busy = w.busy[1:]
			w.mu.Unlock()
			_ = oldest.req.Wait()
			return oldest.buf
		}
		w.cond.Wait()
	}
}

// Write hands buf (sized blockSize, written at bid) off for asynchronous
// writing and returns its in-flight request.
func (w *Write) Write(buf []byte, bid blockmgr.BID) (*diskqueue.Request, error) {
	req, err := w.disks.Awrite(bid, buf)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.busy = append(w.busy, busyBlock{bid: bid, buf: buf, req: req})
	w.cond.Broadcast()
	w.mu.Unlock()
	return req, nil
}

// GetRequest returns the in-flight request for bid, if any is still busy.
func (w *Write) GetRequest(bid blockmgr.BID) (*diskqueue.Request, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range w.busy {
		if b.bid == bid {
			return b.req, true
		}
	}
	return nil, false
}

// StealBID waits for bid's write to complete, removes it from the busy
// list, and returns its buffer without returning it to the free list
// (callers typically hand the buffer straight to a reader that needs the
// just-written data).
func (w *Write) StealBID(bid blockmgr.BID) ([]byte, error) {
	w.mu.Lock()
	idx := -1
	for i, b := range w.busy {
		if b.bid == bid {
			idx = i
			break
		}
	}
	if idx < 0 {
		w.mu.Unlock()
		return nil, fmt.Errorf("pool: no in-flight write for %s", bid)
	}
	b := w.busy[idx]
	w.busy = append(w.busy[:idx], w.busy[idx+1:]...)
	w.cond.Broadcast()
	w.mu.Unlock()

	if err := b.req.Wait(); err != nil {
		return nil, err
	}
	return b.buf, nil
}

// Add pushes buf onto the free list directly, for callers returning a
// buffer obtained outside Steal.
func (w *Write) Add(buf []byte) {
	w.mu.Lock()
	w.freeBufs = append(w.freeBufs, buf)
	w.cond.Broadcast()
	w.mu.Unlock()
}

// Resize grows or shrinks the pool's free-buffer count to n, reclaiming
// completed busy buffers first when shrinking would otherwise discard
// still-useful capacity. Growing raises the pool's effective capacity;
// Steal still never allocates beyond whatever Resize last set.
func (w *Write) Resize(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checkAllBusyLocked()
	for len(w.freeBufs) < n {
		w.freeBufs = append(w.freeBufs, w.cache.get(w.blockSize))
	}
	for len(w.freeBufs) > n {
		w.freeBufs = w.freeBufs[:len(w.freeBufs)-1]
	}
	w.cond.Broadcast()
}

// Size returns the number of free buffers currently held.
func (w *Write) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.freeBufs)
}

package pool

import (
	"fmt"
	"sync"

	"github.com/xsortlib/go-xsort/blockmgr"
	"github.com/xsortlib/go-xsort/diskqueue"
)

type prefetchEntry struct {
	buf []byte
	req *diskqueue.Request
}

// Prefetch issues reads ahead of when the data is actually consumed, so by
// the time a caller asks for a block the I/O is already done (or at least
// already in flight) instead of blocking cold. Its buffers are a fixed
// pool fixed at construction: once every buffer is either free or backing
// an outstanding hint, a new Hint evicts (awaits) the oldest outstanding
// one rather than growing the pool, so total prefetch memory never
// exceeds the configured buffer count.
type Prefetch struct {
	disks *Disks
	cache *bufferCache

	mu    sync.Mutex
	cond  *sync.Cond
	free  [][]byte
	hints map[blockmgr.BID]*prefetchEntry
	order []blockmgr.BID // FIFO of outstanding hints, oldest first
}

// NewPrefetch creates a prefetch pool with initialBuffers free block
// buffers preallocated. That count is the pool's fixed capacity.
func NewPrefetch(disks *Disks, blockSize int64, initialBuffers int) *Prefetch {
	p := &Prefetch{
		disks: disks,
		cache: newBufferCache(),
		hints: make(map[blockmgr.BID]*prefetchEntry),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < initialBuffers; i++ {
		p.free = append(p.free, p.cache.get(blockSize))
	}
	return p
}

// takeBuffer returns a buffer for a new read: a free one if available,
// otherwise the oldest outstanding hint's buffer, awaited first if its
// read hasn't landed yet. If neither exists — every buffer the pool owns
// is checked out by a caller that hasn't registered it as a hint yet — it
// blocks until one is returned, rather than allocating beyond capacity.
func (p *Prefetch) takeBuffer(size int64) ([]byte, error) {
	p.mu.Lock()
	for {
		if len(p.free) > 0 {
			buf := p.free[len(p.free)-1]
			p.free = p.free[:len(p.free)-1]
			p.mu.Unlock()
			return buf, nil
		}
		if len(p.order) > 0 {
			bid := p.order[0]
			p.order = p.order[1:]
			entry, ok := p.hints[bid]
			if ok {
				delete(p.hints, bid)
			}
			p.mu.Unlock()
			if !ok {
				p.mu.Lock()
				continue
			}
			if err := entry.req.Wait(); err != nil {
				return nil, fmt.Errorf("pool: awaiting evicted prefetch for %s: %w", bid, err)
			}
			return entry.buf, nil
		}
		p.cond.Wait()
	}
}

func (p *Prefetch) returnFree(buf []byte) {
	p.mu.Lock()
	p.free = append(p.free, buf)
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Hint issues an asynchronous read-ahead for bid. If writePool has a
// pending (not yet completed) write for the same bid, Hint waits for it
// first: reading a block whose write hasn't landed yet would race the
// write and return stale data. If the pool's buffers are all in use, the
// oldest outstanding hint is evicted (awaited and reclaimed) to make room,
// per the bounded-pool backpressure policy.
func (p *Prefetch) Hint(bid blockmgr.BID, blockSize int64, writePool *Write) error {
	if writePool != nil {
		if req, pending := writePool.GetRequest(bid); pending {
			if err := req.Wait(); err != nil {
				return fmt.Errorf("pool: pending write for %s failed before prefetch: %w", bid, err)
			}
		}
	}

	p.mu.Lock()
	if _, already := p.hints[bid]; already {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	buf, err := p.takeBuffer(blockSize)
	if err != nil {
		return err
	}
	req, err := p.disks.Aread(bid, buf)
	if err != nil {
		p.returnFree(buf)
		return err
	}

	p.mu.Lock()
	p.hints[bid] = &prefetchEntry{buf: buf, req: req}
	p.order = append(p.order, bid)
	p.mu.Unlock()
	return nil
}

// Read waits for bid's prefetch (issuing one synchronously first if Hint
// was never called for it), copies the block into target, and returns the
// buffer to the free list.
func (p *Prefetch) Read(target []byte, bid blockmgr.BID) error {
	p.mu.Lock()
	entry, ok := p.hints[bid]
	if ok {
		delete(p.hints, bid)
		p.removeFromOrderLocked(bid)
	}
	p.mu.Unlock()

	if !ok {
		buf, err := p.takeBuffer(int64(len(target)))
		if err != nil {
			return err
		}
		req, err := p.disks.Aread(bid, buf)
		if err != nil {
			p.returnFree(buf)
			return err
		}
		entry = &prefetchEntry{buf: buf, req: req}
	}

	err := entry.req.Wait()
	copy(target, entry.buf)
	p.returnFree(entry.buf)
	return err
}

// removeFromOrderLocked drops bid from the outstanding-hint FIFO. Caller
// must hold mu.
func (p *Prefetch) removeFromOrderLocked(bid blockmgr.BID) {
	for i, b := range p.order {
		if b == bid {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

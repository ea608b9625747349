package pool

import "sync"

// bufferCache recycles fixed-size block buffers via size-bucketed
// sync.Pools, generalizing the teacher's power-of-2 byte-slice pool to
// whatever block size the caller configures (external-memory algorithms
// run with one block size per device, not a fixed small set of HTTP
// payload sizes).
type bufferCache struct {
	mu    sync.Mutex
	pools map[int64]*sync.Pool
}

func newBufferCache() *bufferCache {
	return &bufferCache{pools: make(map[int64]*sync.Pool)}
}

func (c *bufferCache) poolFor(size int64) *sync.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pools[size]
	if !ok {
		p = &sync.Pool{New: func() any {
			b := make([]byte, size)
			return &b
		}}
		c.pools[size] = p
	}
	return p
}

// get returns a buffer of exactly size bytes, possibly reused.
func (c *bufferCache) get(size int64) []byte {
	p := c.poolFor(size)
	bp := p.Get().(*[]byte)
	return (*bp)[:size]
}

// put returns buf to its size's pool for reuse.
func (c *bufferCache) put(buf []byte) {
	size := int64(cap(buf))
	if size == 0 {
		return
	}
	p := c.poolFor(size)
	full := buf[:cap(buf)]
	p.Put(&full)
}

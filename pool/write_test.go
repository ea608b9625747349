package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xsortlib/go-xsort/blockmgr"
	"github.com/xsortlib/go-xsort/diskqueue"
	"github.com/xsortlib/go-xsort/file"
	"github.com/xsortlib/go-xsort/file/simdisk"
)

const testBlockSize = 128

func newTestDisks(n int) *Disks {
	files := make([]file.File, n)
	for i := range files {
		files[i] = simdisk.New(testBlockSize * 16)
	}
	return NewDisks(files, diskqueue.PriorityNone)
}

func TestWritePool_StealWriteRoundTrip(t *testing.T) {
	disks := newTestDisks(1)
	defer disks.Stop()
	w := NewWrite(disks, testBlockSize, 2)

	buf := w.Steal()
	require.Len(t, buf, testBlockSize)
	for i := range buf {
		buf[i] = 42
	}

	bid := blockmgr.BID{Disk: 0, Offset: 0}
	req, err := w.Write(buf, bid)
	require.NoError(t, err)
	require.NoError(t, req.Wait())
}

func TestWritePool_GetRequestAndStealBID(t *testing.T) {
	disks := newTestDisks(1)
	defer disks.Stop()
	w := NewWrite(disks, testBlockSize, 1)

	buf := w.Steal()
	bid := blockmgr.BID{Disk: 0, Offset: testBlockSize}
	_, err := w.Write(buf, bid)
	require.NoError(t, err)

	_, pending := w.GetRequest(bid)
	assert.True(t, pending)

	got, err := w.StealBID(bid)
	require.NoError(t, err)
	assert.Len(t, got, testBlockSize)

	_, pending = w.GetRequest(bid)
	assert.False(t, pending)
}

func TestWritePool_Resize(t *testing.T) {
	disks := newTestDisks(1)
	defer disks.Stop()
	w := NewWrite(disks, testBlockSize, 2)

	assert.Equal(t, 2, w.Size())
	w.Resize(5)
	assert.Equal(t, 5, w.Size())
	w.Resize(1)
	assert.Equal(t, 1, w.Size())
}

func TestWritePool_Add(t *testing.T) {
	disks := newTestDisks(1)
	defer disks.Stop()
	w := NewWrite(disks, testBlockSize, 0)

	w.Add(make([]byte, testBlockSize))
	assert.Equal(t, 1, w.Size())
}

// TestWritePool_StealBlocksUntilCapacityFrees exercises the pool's
// backpressure: with only one buffer configured, a second Steal must
// block (not manufacture a new buffer) until the first is written and
// reclaimable.
func TestWritePool_StealBlocksUntilCapacityFrees(t *testing.T) {
	disks := newTestDisks(1)
	defer disks.Stop()
	w := NewWrite(disks, testBlockSize, 1)

	first := w.Steal() // the pool's only buffer, not yet written back

	done := make(chan []byte, 1)
	go func() {
		done <- w.Steal()
	}()

	select {
	case <-done:
		t.Fatal("Steal returned before the only buffer was freed; pool grew past capacity")
	case <-time.After(50 * time.Millisecond):
		// still blocked, as expected
	}

	bid := blockmgr.BID{Disk: 0, Offset: 0}
	_, err := w.Write(first, bid)
	require.NoError(t, err)

	select {
	case second := <-done:
		require.Len(t, second, testBlockSize)
	case <-time.After(time.Second):
		t.Fatal("Steal never unblocked after the held buffer was written back")
	}
}

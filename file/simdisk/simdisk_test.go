package simdisk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisk_WriteReadRoundTrip(t *testing.T) {
	d := New(1 << 20)
	want := []byte("hello external memory")
	n, err := d.WriteAt(want, 4096)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)

	got := make([]byte, len(want))
	n, err = d.ReadAt(got, 4096)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, got)
}

func TestDisk_ReadPastEndReturnsZero(t *testing.T) {
	d := New(4096)
	buf := make([]byte, 16)
	n, err := d.ReadAt(buf, 8192)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDisk_WritePastEndErrors(t *testing.T) {
	d := New(4096)
	_, err := d.WriteAt([]byte("x"), 8192)
	assert.Error(t, err)
}

func TestDisk_SetSizeGrowZeroFillsTail(t *testing.T) {
	d := New(4096)
	_, err := d.WriteAt([]byte{1, 2, 3, 4}, 0)
	require.NoError(t, err)
	require.NoError(t, d.SetSize(8192))

	buf := make([]byte, 4)
	_, err = d.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)

	tail := make([]byte, 4)
	_, err = d.ReadAt(tail, 4096)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, tail)
}

func TestDisk_DeleteRegionZeroes(t *testing.T) {
	d := New(4096)
	_, err := d.WriteAt([]byte{1, 2, 3, 4}, 0)
	require.NoError(t, err)
	require.NoError(t, d.DeleteRegion(0, 4))

	buf := make([]byte, 4)
	_, _ = d.ReadAt(buf, 0)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)
}

func TestDisk_ConcurrentShardedAccess(t *testing.T) {
	d := New(4 * ShardSize)
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(shard int) {
			buf := make([]byte, 16)
			for j := 0; j < 100; j++ {
				_, _ = d.WriteAt(buf, int64(shard)*ShardSize)
				_, _ = d.ReadAt(buf, int64(shard)*ShardSize)
			}
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}
}

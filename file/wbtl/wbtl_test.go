package wbtl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xsortlib/go-xsort/file/simdisk"
)

const blockSize = 4096

func block(b byte) []byte {
	buf := make([]byte, blockSize)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestFile_WriteReadRoundTrip(t *testing.T) {
	wf := New(simdisk.New(0), blockSize)
	require.NoError(t, wf.SetSize(blockSize*4))

	_, err := wf.WriteAt(block(7), 0)
	require.NoError(t, err)

	got := make([]byte, blockSize)
	_, err = wf.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, block(7), got)
}

func TestFile_UnmappedBlockReadsZero(t *testing.T) {
	wf := New(simdisk.New(0), blockSize)
	require.NoError(t, wf.SetSize(blockSize*2))

	got := make([]byte, blockSize)
	_, err := wf.ReadAt(got, blockSize)
	require.NoError(t, err)
	assert.Equal(t, block(0), got)
}

func TestFile_RewriteRelocatesAndFreesOldSlot(t *testing.T) {
	wf := New(simdisk.New(0), blockSize)
	require.NoError(t, wf.SetSize(blockSize))

	_, err := wf.WriteAt(block(1), 0)
	require.NoError(t, err)
	firstPhys := wf.mapping[0].physical

	_, err = wf.WriteAt(block(2), 0)
	require.NoError(t, err)
	secondPhys := wf.mapping[0].physical
	assert.NotEqual(t, firstPhys, secondPhys)

	got := make([]byte, blockSize)
	_, err = wf.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, block(2), got)

	// the freed first slot should be reused by the next allocation
	_, err = wf.WriteAt(block(3), blockSize)
	require.NoError(t, err)
	assert.Equal(t, firstPhys, wf.mapping[blockSize].physical)
	require.NoError(t, wf.SetSize(blockSize*2))
}

func TestFile_MisalignedAccessRejected(t *testing.T) {
	wf := New(simdisk.New(0), blockSize)
	_, err := wf.WriteAt(make([]byte, 10), 0)
	assert.Error(t, err)
}

func TestFile_DeleteRegionReleasesMapping(t *testing.T) {
	wf := New(simdisk.New(0), blockSize)
	require.NoError(t, wf.SetSize(blockSize*2))
	_, err := wf.WriteAt(block(5), 0)
	require.NoError(t, err)

	require.NoError(t, wf.DeleteRegion(0, blockSize))
	_, ok := wf.mapping[0]
	assert.False(t, ok)
}

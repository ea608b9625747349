//go:build linux

package iouring

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_WriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ur0.dat")
	f, err := Open(path)
	if err != nil {
		t.Skipf("io_uring unavailable in this environment: %v", err)
	}
	defer f.Close()

	require.NoError(t, f.SetSize(4096))
	want := []byte("uring backed block")
	n, err := f.WriteAt(want, 0)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)

	got := make([]byte, len(want))
	n, err = f.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, got)
}

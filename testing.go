package xsort

import (
	"errors"
	"sync"

	"github.com/xsortlib/go-xsort/file"
)

var (
	errMockFileClosed    = errors.New("mockfile: closed")
	errMockFileOutOfRange = errors.New("mockfile: write out of range")
)

// MockFile is a file.File implementation for unit tests: an in-memory
// byte slice plus call counters, so callers can assert on how many
// times each method fired without standing up a real backend.
type MockFile struct {
	mu   sync.RWMutex
	data []byte
	size int64

	closed bool

	readCalls         int
	writeCalls        int
	deleteRegionCalls int
	lockCalls         int
	setSizeCalls      int
}

// NewMockFile creates a mock file of the given initial size.
func NewMockFile(size int64) *MockFile {
	return &MockFile{data: make([]byte, size), size: size}
}

func (m *MockFile) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++

	if m.closed {
		return 0, NewIOError("MockFile.ReadAt", errMockFileClosed)
	}
	if off >= m.size {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, m.data[off:])
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (m *MockFile) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++

	if m.closed {
		return 0, NewIOError("MockFile.WriteAt", errMockFileClosed)
	}
	end := off + int64(len(p))
	if end > m.size {
		return 0, NewIOError("MockFile.WriteAt", errMockFileOutOfRange)
	}
	n := copy(m.data[off:end], p)
	return n, nil
}

func (m *MockFile) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MockFile) SetSize(n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setSizeCalls++

	if n < 0 {
		return NewConfigError("MockFile.SetSize", "negative size")
	}
	grown := make([]byte, n)
	copy(grown, m.data)
	m.data = grown
	m.size = n
	return nil
}

func (m *MockFile) Lock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockCalls++
	return nil
}

func (m *MockFile) DeleteRegion(offset, length int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteRegionCalls++

	end := offset + length
	if end > m.size {
		end = m.size
	}
	if offset >= end {
		return nil
	}
	for i := offset; i < end; i++ {
		m.data[i] = 0
	}
	return nil
}

func (m *MockFile) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// CallCounts returns how many times each method has been invoked.
func (m *MockFile) CallCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"read":          m.readCalls,
		"write":         m.writeCalls,
		"delete_region": m.deleteRegionCalls,
		"lock":          m.lockCalls,
		"set_size":      m.setSizeCalls,
	}
}

// IsClosed reports whether Close has been called.
func (m *MockFile) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

var _ file.File = (*MockFile)(nil)

package merge

import "github.com/xsortlib/go-xsort/pool"

type sliceSource[T any] struct {
	data []T
	i    int
}

func (s *sliceSource[T]) Next() (T, bool) {
	if s.i >= len(s.data) {
		var zero T
		return zero, false
	}
	v := s.data[s.i]
	s.i++
	return v, true
}

type streamSource[T any] struct {
	stream    *pool.BufferedInput[T]
	remaining int
}

func (s *streamSource[T]) Next() (T, bool) {
	if s.remaining <= 0 {
		var zero T
		return zero, false
	}
	v := s.stream.Next()
	s.remaining--
	return v, true
}

// sourceFor adapts a Run into a merge Source, reading from memory directly
// for small runs or through a prefetching block stream for external ones.
func sourceFor[T any](run Run[T], blockSize int64, codec pool.Codec[T], prefetch *pool.Prefetch, lookahead int) Source[T] {
	if run.BIDs == nil {
		return &sliceSource[T]{data: run.InMemory}
	}
	stream := pool.NewBufferedInput[T](run.BIDs, blockSize, codec, prefetch, lookahead)
	return &streamSource[T]{stream: stream, remaining: run.NumElems}
}

// SourceFor is the exported form of sourceFor, for callers outside this
// package (pqueue's top-buffer refill) that need to stream a Run's
// elements without reimplementing the in-memory/external split.
func SourceFor[T any](run Run[T], blockSize int64, codec pool.Codec[T], prefetch *pool.Prefetch, lookahead int) Source[T] {
	return sourceFor(run, blockSize, codec, prefetch, lookahead)
}

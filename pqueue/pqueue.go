// Package pqueue implements an external priority queue over the same
// block manager, write pool and prefetch pool the sort package uses: a
// bounded insert heap absorbs pushes, which cascade down a sequence of
// merge levels once the heap fills, and a top delete buffer answers
// Top/Pop by merging across whatever levels are currently populated.
package pqueue

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/xsortlib/go-xsort/blockmgr"
	"github.com/xsortlib/go-xsort/merge"
	"github.com/xsortlib/go-xsort/pool"
)

// refillLookahead is the prefetch window used while draining level runs
// into the top delete buffer.
const refillLookahead = 2

// PriorityQueue holds elements under cmp, with Top/Pop always returning the
// maximum (the last element under cmp.Less, matching the original's
// max(insert_heap.top, top_delete_buffer.current) rule).
//
// Levels cascade the way the original's free-level rule does: pushing a
// run into a level that's already at capacity forces all of that level's
// runs to be merged into one and pushed a level up, recursively. Unlike
// the original's persistent per-level multi_merge cursors, the top buffer
// here refills by merging every run across every level (plus whatever is
// left of the top buffer) in one pass and clearing the levels afterward,
// whenever the buffer runs empty or new runs have reached the levels —
// simpler to reason about at the cost of
// redoing that merge work on every refill instead of streaming it
// incrementally (see DESIGN.md).
type PriorityQueue[T any] struct {
	cmp           merge.Comparator[T]
	arity         int
	insertCap     int
	elemsPerBlock int
	blockSize     int64

	mgr         *blockmgr.Manager
	newStrategy func() blockmgr.Strategy
	write       *pool.Write
	prefetch    *pool.Prefetch
	codec       pool.Codec[T]

	heap      maxHeap[T]
	levels    [][]merge.Run[T]
	topBuffer []T // ascending by cmp.Less; Pop takes the tail
	size      int
}

// New creates a priority queue. insertCap bounds the in-memory insert
// heap; arity bounds how many runs accumulate at a level before they're
// merged and promoted to the next one.
func New[T any](
	cmp merge.Comparator[T],
	insertCap int,
	arity int,
	elemsPerBlock int,
	blockSize int64,
	mgr *blockmgr.Manager,
	newStrategy func() blockmgr.Strategy,
	write *pool.Write,
	prefetch *pool.Prefetch,
	codec pool.Codec[T],
) *PriorityQueue[T] {
	if insertCap < 1 {
		insertCap = 1
	}
	if arity < 2 {
		arity = 2
	}
	return &PriorityQueue[T]{
		cmp:           cmp,
		arity:         arity,
		insertCap:     insertCap,
		elemsPerBlock: elemsPerBlock,
		blockSize:     blockSize,
		mgr:           mgr,
		newStrategy:   newStrategy,
		write:         write,
		prefetch:      prefetch,
		codec:         codec,
		heap:          maxHeap[T]{less: cmp.Less},
	}
}

// Size returns the number of elements pushed and not yet popped.
func (pq *PriorityQueue[T]) Size() int { return pq.size }

// Empty reports whether the queue holds no elements.
func (pq *PriorityQueue[T]) Empty() bool { return pq.size == 0 }

// Push inserts v, flushing the insert heap into level 0 once it holds more
// than insertCap elements.
func (pq *PriorityQueue[T]) Push(v T) error {
	heap.Push(&pq.heap, v)
	pq.size++
	if pq.heap.Len() > pq.insertCap {
		return pq.flush()
	}
	return nil
}

// flush sorts the insert heap's contents into a single run and inserts it
// at level 0, cascading as needed.
func (pq *PriorityQueue[T]) flush() error {
	vals := append([]T(nil), pq.heap.data...)
	pq.heap.data = pq.heap.data[:0]
	sort.Slice(vals, func(i, j int) bool { return pq.cmp.Less(vals[i], vals[j]) })

	idx := 0
	next := func() (T, bool) {
		if idx >= len(vals) {
			var zero T
			return zero, false
		}
		v := vals[idx]
		idx++
		return v, true
	}

	runs, err := merge.FormRuns(next, len(vals), pq.elemsPerBlock, pq.cmp, pq.mgr, pq.newStrategy, pq.write, pq.codec)
	if err != nil {
		return err
	}
	for _, r := range runs {
		if err := pq.insertIntoLevel(0, r); err != nil {
			return err
		}
	}
	return nil
}

// insertIntoLevel adds run to levels[i], merging and promoting to i+1 if
// that brings the level to capacity. This is the free-level cascade: the
// first level with room after a promotion absorbs the run without
// cascading further.
func (pq *PriorityQueue[T]) insertIntoLevel(i int, run merge.Run[T]) error {
	for len(pq.levels) <= i {
		pq.levels = append(pq.levels, nil)
	}
	pq.levels[i] = append(pq.levels[i], run)
	if len(pq.levels[i]) < pq.arity {
		return nil
	}

	merged, err := merge.MergeRuns(pq.levels[i], pq.elemsPerBlock, pq.cmp, pq.mgr, pq.newStrategy, pq.write, pq.prefetch, pq.codec, pq.blockSize)
	if err != nil {
		return err
	}
	pq.levels[i] = nil
	return pq.insertIntoLevel(i+1, merged)
}

// Top returns the maximum element under cmp without removing it.
func (pq *PriorityQueue[T]) Top() (T, bool) {
	v, _, err := pq.peek()
	return v, err == nil
}

// Pop removes and returns the maximum element under cmp.
func (pq *PriorityQueue[T]) Pop() (T, error) {
	v, fromHeap, err := pq.peek()
	if err != nil {
		var zero T
		return zero, err
	}
	if fromHeap {
		heap.Pop(&pq.heap)
	} else {
		pq.topBuffer = pq.topBuffer[:len(pq.topBuffer)-1]
	}
	pq.size--
	return v, nil
}

// peek resolves the current maximum, refilling the top buffer from the
// levels if it's empty or if runs have been flushed into the levels since
// the last refill (the remaining top buffer is then merged back in with
// them). Returns fromHeap=true when the winner came from the insert heap.
func (pq *PriorityQueue[T]) peek() (T, bool, error) {
	var zero T
	if len(pq.levels) > 0 && len(pq.topBuffer) > 0 {
		pq.levels[0] = append(pq.levels[0], merge.Run[T]{InMemory: pq.topBuffer, NumElems: len(pq.topBuffer)})
		pq.topBuffer = nil
	}
	if len(pq.topBuffer) == 0 {
		if err := pq.refill(); err != nil {
			return zero, false, err
		}
	}

	hasHeap := pq.heap.Len() > 0
	hasBuf := len(pq.topBuffer) > 0
	if !hasHeap && !hasBuf {
		return zero, false, fmt.Errorf("pqueue: empty")
	}
	if hasHeap && hasBuf {
		hv := pq.heap.data[0]
		bv := pq.topBuffer[len(pq.topBuffer)-1]
		if pq.cmp.Less(bv, hv) {
			return hv, true, nil
		}
		return bv, false, nil
	}
	if hasHeap {
		return pq.heap.data[0], true, nil
	}
	return pq.topBuffer[len(pq.topBuffer)-1], false, nil
}

// refill drains every run across every level into the top buffer in
// sorted order and clears the levels. A no-op if no level holds data.
func (pq *PriorityQueue[T]) refill() error {
	var sources []merge.Source[T]
	var toRelease []merge.Run[T]
	for _, lvl := range pq.levels {
		for _, r := range lvl {
			sources = append(sources, merge.SourceFor(r, pq.blockSize, pq.codec, pq.prefetch, refillLookahead))
			toRelease = append(toRelease, r)
		}
	}
	if len(sources) == 0 {
		return nil
	}

	lt := merge.NewLoserTree(sources, pq.cmp)
	buf := make([]T, 0)
	for {
		v, ok := lt.MultiMerge()
		if !ok {
			break
		}
		buf = append(buf, v)
	}
	pq.topBuffer = buf

	for _, r := range toRelease {
		if len(r.BIDs) > 0 {
			if err := pq.mgr.DeleteBlocks(r.BIDs); err != nil {
				return err
			}
		}
	}
	pq.levels = nil
	return nil
}

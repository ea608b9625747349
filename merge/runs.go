package merge

import (
	"sort"

	"github.com/xsortlib/go-xsort/blockmgr"
	"github.com/xsortlib/go-xsort/diskqueue"
	"github.com/xsortlib/go-xsort/pool"
)

// Run is one sorted run. Runs whose element count exceeds one block's
// capacity hold their data in BIDs on external storage; runs that fit in
// a single block are kept directly in InMemory, since writing and
// immediately re-reading back a run that never even filled one block has
// no benefit over keeping it resident (spec's small-input boundary case).
type Run[T any] struct {
	BIDs     []blockmgr.BID
	InMemory []T
	NumElems int
}

// fitsInOneBlock reports whether n elements fit within a single block of
// elemsPerBlock capacity, the threshold FormRuns/MergeRuns use to skip
// block allocation entirely and keep a run resident in memory.
func fitsInOneBlock(n, elemsPerBlock int) bool {
	return n <= elemsPerBlock
}

// FormRuns reads elements one at a time from next (which returns ok=false
// once exhausted), partitions them into runs of up to runSizeElems
// elements, sorts each run in memory, and flushes it to freshly allocated
// blocks. It double-buffers: while one run's blocks are still being
// written back, the next run is already being filled and sorted, the same
// overlap the original run-formation pass achieves with two block arrays.
func FormRuns[T any](
	next func() (T, bool),
	runSizeElems int,
	elemsPerBlock int,
	cmp Comparator[T],
	mgr *blockmgr.Manager,
	newStrategy func() blockmgr.Strategy,
	writePool *pool.Write,
	codec pool.Codec[T],
) ([]Run[T], error) {
	var runs []Run[T]
	var pending []*diskqueue.Request

	for {
		buf := make([]T, 0, runSizeElems)
		for len(buf) < runSizeElems {
			v, ok := next()
			if !ok {
				break
			}
			buf = append(buf, v)
		}
		if len(buf) == 0 {
			break
		}

		sort.Slice(buf, func(i, j int) bool { return cmp.Less(buf[i], buf[j]) })

		if fitsInOneBlock(len(buf), elemsPerBlock) {
			runs = append(runs, Run[T]{InMemory: buf, NumElems: len(buf)})
			continue
		}

		numBlocks := divRoundUp(len(buf), elemsPerBlock)
		bids, err := mgr.NewBlocks(newStrategy(), numBlocks)
		if err != nil {
			return nil, err
		}

		if len(pending) > 0 {
			if err := diskqueue.WaitAll(pending); err != nil {
				return nil, err
			}
			pending = nil
		}

		for b := 0; b < numBlocks; b++ {
			block := writePool.Steal()
			start := b * elemsPerBlock
			end := start + elemsPerBlock
			for i := start; i < end; i++ {
				off := (i - start) * codec.Size()
				if i < len(buf) {
					codec.Encode(buf[i], block[off:off+codec.Size()])
				} else {
					codec.Encode(cmp.Max(), block[off:off+codec.Size()])
				}
			}
			req, err := writePool.Write(block, bids[b])
			if err != nil {
				return nil, err
			}
			pending = append(pending, req)
		}

		runs = append(runs, Run[T]{BIDs: bids, NumElems: len(buf)})
	}

	if len(pending) > 0 {
		if err := diskqueue.WaitAll(pending); err != nil {
			return nil, err
		}
	}

	return runs, nil
}

package merge

import (
	"fmt"

	"github.com/xsortlib/go-xsort/blockmgr"
	"github.com/xsortlib/go-xsort/diskqueue"
	"github.com/xsortlib/go-xsort/pool"
)

// mergeLookahead is the prefetch window, in blocks, each input run keeps
// hinted ahead of its read cursor during a merge pass.
const mergeLookahead = 2

// MergeRuns merges runsToMerge into a single sorted Run using a LoserTree
// over one Source per input run. Small combined results are kept resident;
// larger ones are written out to freshly allocated blocks the same way
// FormRuns flushes a sorted buffer.
func MergeRuns[T any](
	runsToMerge []Run[T],
	elemsPerBlock int,
	cmp Comparator[T],
	mgr *blockmgr.Manager,
	newStrategy func() blockmgr.Strategy,
	writePool *pool.Write,
	prefetchPool *pool.Prefetch,
	codec pool.Codec[T],
	blockSize int64,
) (Run[T], error) {
	if len(runsToMerge) == 1 {
		return runsToMerge[0], nil
	}

	total := 0
	sources := make([]Source[T], len(runsToMerge))
	for i, r := range runsToMerge {
		sources[i] = sourceFor(r, blockSize, codec, prefetchPool, mergeLookahead)
		total += r.NumElems
	}
	lt := NewLoserTree(sources, cmp)

	if fitsInOneBlock(total, elemsPerBlock) {
		out := make([]T, 0, total)
		for {
			v, ok := lt.MultiMerge()
			if !ok {
				break
			}
			out = append(out, v)
		}
		if err := releaseRuns(mgr, runsToMerge); err != nil {
			return Run[T]{}, err
		}
		return Run[T]{InMemory: out, NumElems: total}, nil
	}

	numBlocks := divRoundUp(total, elemsPerBlock)
	bids, err := mgr.NewBlocks(newStrategy(), numBlocks)
	if err != nil {
		return Run[T]{}, err
	}

	var pending []*diskqueue.Request
	written := 0
	for b := 0; b < numBlocks; b++ {
		block := writePool.Steal()
		for i := 0; i < elemsPerBlock; i++ {
			off := i * codec.Size()
			if written < total {
				v, ok := lt.MultiMerge()
				if !ok {
					return Run[T]{}, fmt.Errorf("merge: loser tree exhausted early at element %d of %d", written, total)
				}
				codec.Encode(v, block[off:off+codec.Size()])
				written++
			} else {
				codec.Encode(cmp.Max(), block[off:off+codec.Size()])
			}
		}
		req, err := writePool.Write(block, bids[b])
		if err != nil {
			return Run[T]{}, err
		}
		pending = append(pending, req)
	}

	if err := diskqueue.WaitAll(pending); err != nil {
		return Run[T]{}, err
	}
	if err := releaseRuns(mgr, runsToMerge); err != nil {
		return Run[T]{}, err
	}

	return Run[T]{BIDs: bids, NumElems: total}, nil
}

func releaseRuns[T any](mgr *blockmgr.Manager, runs []Run[T]) error {
	for _, r := range runs {
		if len(r.BIDs) > 0 {
			if err := mgr.DeleteBlocks(r.BIDs); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cascade repeatedly merges runs in groups of OptimalMergeFactor(len(runs), m)
// until a single run remains, the same multi-pass structure the original
// cascade merge phase uses once the number of runs exceeds the number of
// streams that fit in memory at once.
func Cascade[T any](
	runs []Run[T],
	m int,
	elemsPerBlock int,
	cmp Comparator[T],
	mgr *blockmgr.Manager,
	newStrategy func() blockmgr.Strategy,
	writePool *pool.Write,
	prefetchPool *pool.Prefetch,
	codec pool.Codec[T],
	blockSize int64,
) (Run[T], error) {
	if len(runs) == 0 {
		return Run[T]{}, nil
	}

	for len(runs) > 1 {
		factor := OptimalMergeFactor(len(runs), m)
		groups := MergeGroups(len(runs), factor)
		next := make([]Run[T], 0, len(groups))
		for _, g := range groups {
			merged, err := MergeRuns(runs[g[0]:g[1]], elemsPerBlock, cmp, mgr, newStrategy, writePool, prefetchPool, codec, blockSize)
			if err != nil {
				return Run[T]{}, err
			}
			next = append(next, merged)
		}
		runs = next
	}

	return runs[0], nil
}

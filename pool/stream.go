package pool

import (
	"github.com/xsortlib/go-xsort/blockmgr"
)

// Codec marshals fixed-size elements to and from block-sized byte buffers,
// so BufferedInput can work generically over any element type.
type Codec[T any] interface {
	// Size is the encoded size of one element, in bytes.
	Size() int
	Encode(v T, dst []byte)
	Decode(src []byte) T
}

// BufferedInput reads a sequence of blocks (a run) element by element,
// with reads overlapped against consumption via a Prefetch pool: by the
// time the caller finishes the elements of one block, the next block's
// read is already in flight.
type BufferedInput[T any] struct {
	prefetch      *Prefetch
	codec         Codec[T]
	bids          []blockmgr.BID
	blockSize     int64
	elemsPerBlock int
	lookahead     int

	blockIdx   int
	elemIdx    int
	curBlock   []byte
	hintedUpTo int
	exhausted  bool
}

// NewBufferedInput creates a stream over bids, each holding
// blockSize/codec.Size() elements, using prefetch for read-ahead with the
// given lookahead window (number of blocks hinted in advance).
func NewBufferedInput[T any](bids []blockmgr.BID, blockSize int64, codec Codec[T], prefetch *Prefetch, lookahead int) *BufferedInput[T] {
	elemSize := codec.Size()
	elemsPerBlock := int(blockSize) / elemSize
	bi := &BufferedInput[T]{
		prefetch:      prefetch,
		codec:         codec,
		bids:          bids,
		blockSize:     blockSize,
		elemsPerBlock: elemsPerBlock,
		lookahead:     lookahead,
	}
	bi.hintAhead()
	if len(bids) > 0 {
		bi.loadBlock(0)
	} else {
		bi.exhausted = true
	}
	return bi
}

func (bi *BufferedInput[T]) hintAhead() {
	for bi.hintedUpTo < len(bi.bids) && bi.hintedUpTo < bi.blockIdx+bi.lookahead+1 {
		_ = bi.prefetch.Hint(bi.bids[bi.hintedUpTo], bi.blockSize, nil)
		bi.hintedUpTo++
	}
}

func (bi *BufferedInput[T]) loadBlock(idx int) {
	buf := make([]byte, bi.blockSize)
	if err := bi.prefetch.Read(buf, bi.bids[idx]); err != nil {
		bi.exhausted = true
		return
	}
	bi.curBlock = buf
	bi.blockIdx = idx
	bi.elemIdx = 0
	bi.hintAhead()
}

// Empty reports whether the stream has been fully consumed.
func (bi *BufferedInput[T]) Empty() bool { return bi.exhausted }

// Current returns the current element without advancing.
func (bi *BufferedInput[T]) Current() T {
	off := bi.elemIdx * bi.codec.Size()
	return bi.codec.Decode(bi.curBlock[off : off+bi.codec.Size()])
}

// Next returns the current element and advances to the following one,
// loading the next block (via the already-hinted prefetch) when the
// current one is exhausted.
func (bi *BufferedInput[T]) Next() T {
	v := bi.Current()
	bi.elemIdx++
	if bi.elemIdx >= bi.elemsPerBlock {
		if bi.blockIdx+1 < len(bi.bids) {
			bi.loadBlock(bi.blockIdx + 1)
		} else {
			bi.exhausted = true
		}
	}
	return v
}

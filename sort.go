package xsort

import (
	"github.com/xsortlib/go-xsort/blockmgr"
	"github.com/xsortlib/go-xsort/config"
	"github.com/xsortlib/go-xsort/diskqueue"
	"github.com/xsortlib/go-xsort/file"
	"github.com/xsortlib/go-xsort/internal/logging"
	"github.com/xsortlib/go-xsort/merge"
	"github.com/xsortlib/go-xsort/pool"
	"github.com/xsortlib/go-xsort/pqueue"
)

// Options configures a Runtime. The zero value is not valid; use
// DefaultOptions and override individual fields.
type Options struct {
	// BlockSize is the fixed block size, in bytes, every disk is
	// allocated in.
	BlockSize int64

	// MergeArity bounds how many runs a single LoserTree pass merges
	// before Cascade needs another pass.
	MergeArity int

	// PrefetchBuffers and WriteBuffers size the read-ahead and
	// write-back pools. A k-way merge needs at least two of each to
	// overlap I/O with computation; NewRuntime rejects fewer.
	PrefetchBuffers int
	WriteBuffers    int

	// Logger receives progress messages. Nil disables logging.
	Logger *logging.Logger

	// Metrics, if non-nil, is left for the caller to wire into an
	// Observer and pass down to its own file.File implementations;
	// Runtime does not touch it directly.
	Metrics *Metrics
}

// DefaultOptions returns the tuning constants from constants.go.
func DefaultOptions() Options {
	return Options{
		BlockSize:       DefaultBlockSize,
		MergeArity:      DefaultMergeArity,
		PrefetchBuffers: DefaultPrefetchBuffers,
		WriteBuffers:    DefaultWriteBuffers,
	}
}

// Runtime wires a block manager and its prefetch/write pools over a set
// of opened disks. Build one with NewRuntime or OpenConfig, then call
// Sort or NewPriorityQueue any number of times over it.
type Runtime struct {
	mgr        *blockmgr.Manager
	disks      *pool.Disks
	write      *pool.Write
	prefetch   *pool.Prefetch
	blockSize  int64
	mergeArity int
	strategy   func() blockmgr.Strategy
	logger     *logging.Logger
}

// NewRuntime opens files as disks backing a fresh block manager. Each
// files[i] is paired with initialSizes[i] and autogrow[i]; all three
// slices must be the same length.
func NewRuntime(files []file.File, initialSizes []int64, autogrow []bool, opts Options) (*Runtime, error) {
	if opts.WriteBuffers < 2 || opts.PrefetchBuffers < 2 {
		return nil, NewResourceError("NewRuntime", "need at least 2 write and 2 prefetch buffers to overlap a k-way merge")
	}
	if len(files) == 0 {
		return nil, NewConfigError("NewRuntime", "no disks given")
	}
	if len(files) != len(initialSizes) || len(files) != len(autogrow) {
		return nil, NewConfigError("NewRuntime", "files, initialSizes and autogrow must have equal length")
	}

	sizers := make([]blockmgr.Sizer, len(files))
	for i, f := range files {
		sizers[i] = f
	}

	mgr := blockmgr.NewManager(opts.BlockSize, initialSizes, autogrow, sizers)
	disks := pool.NewDisks(files, diskqueue.PriorityNone)
	write := pool.NewWrite(disks, opts.BlockSize, opts.WriteBuffers)
	prefetch := pool.NewPrefetch(disks, opts.BlockSize, opts.PrefetchBuffers)

	return &Runtime{
		mgr:        mgr,
		disks:      disks,
		write:      write,
		prefetch:   prefetch,
		blockSize:  opts.BlockSize,
		mergeArity: opts.MergeArity,
		strategy:   func() blockmgr.Strategy { return blockmgr.Striping(0, mgr.NumDisks()) },
		logger:     opts.Logger,
	}, nil
}

// BackendOpener opens one configured disk as a file.File, sized to d's
// capacity (or an implementation-defined starting size when d.Autogrow()
// is true).
type BackendOpener func(d config.Disk) (file.File, error)

// OpenConfig opens every disk named in disks using the opener registered
// for its Backend token, then builds a Runtime over them. Callers
// register openers per backend (e.g. "simdisk" -> a wrapper around simdisk.New) since
// this package doesn't import every file backend unconditionally.
func OpenConfig(disks []config.Disk, openers map[string]BackendOpener, opts Options) (*Runtime, error) {
	files := make([]file.File, 0, len(disks))
	initialSizes := make([]int64, 0, len(disks))
	autogrow := make([]bool, 0, len(disks))

	for _, d := range disks {
		opener, ok := openers[d.Backend]
		if !ok {
			return nil, NewConfigError("OpenConfig", "no opener registered for backend "+d.Backend)
		}
		f, err := opener(d)
		if err != nil {
			return nil, WrapError("OpenConfig", err)
		}
		files = append(files, f)
		initialSizes = append(initialSizes, d.CapacityBytes())
		autogrow = append(autogrow, d.Autogrow())
	}

	return NewRuntime(files, initialSizes, autogrow, opts)
}

// Close stops all per-disk queues. It does not close the underlying
// file.File handles, since the Runtime doesn't own them.
func (rt *Runtime) Close() {
	rt.disks.Stop()
}

// Manager exposes the underlying block manager, for callers that need
// direct access (e.g. to report FreeBytes/TotalBytes).
func (rt *Runtime) Manager() *blockmgr.Manager { return rt.mgr }

func elemsPerBlock(blockSize int64, codec interface{ Size() int }) int {
	n := int(blockSize) / codec.Size()
	if n < 1 {
		n = 1
	}
	return n
}

// Sort drains next (which returns ok=false once exhausted) into sorted
// runs of up to runSizeElems elements each, then cascades them through
// Runtime's merge arity until a single sorted Run remains. The result
// may be external (spilled to blocks) or in-memory, depending on total
// element count; use Collect to read it back as a slice or merge.SourceFor
// to stream it.
func Sort[T any](rt *Runtime, next func() (T, bool), runSizeElems int, cmp merge.Comparator[T], codec pool.Codec[T]) (merge.Run[T], error) {
	epb := elemsPerBlock(rt.blockSize, codec)

	runs, err := merge.FormRuns(next, runSizeElems, epb, cmp, rt.mgr, rt.strategy, rt.write, codec)
	if err != nil {
		return merge.Run[T]{}, WrapError("Sort", err)
	}
	if rt.logger != nil {
		rt.logger.Info("formed runs", "count", len(runs))
	}

	final, err := merge.Cascade(runs, rt.mergeArity, epb, cmp, rt.mgr, rt.strategy, rt.write, rt.prefetch, codec, rt.blockSize)
	if err != nil {
		return merge.Run[T]{}, WrapError("Sort", err)
	}
	return final, nil
}

// SortSlice is Sort over an in-memory slice, for callers that already
// hold their input resident.
func SortSlice[T any](rt *Runtime, values []T, runSizeElems int, cmp merge.Comparator[T], codec pool.Codec[T]) (merge.Run[T], error) {
	i := 0
	next := func() (T, bool) {
		if i >= len(values) {
			var zero T
			return zero, false
		}
		v := values[i]
		i++
		return v, true
	}
	return Sort(rt, next, runSizeElems, cmp, codec)
}

// Collect drains run fully into a slice, freeing any external blocks it
// held once read. Intended for tests and demos; large results should
// instead be streamed via merge.SourceFor.
func Collect[T any](rt *Runtime, run merge.Run[T], codec pool.Codec[T]) ([]T, error) {
	src := merge.SourceFor(run, rt.blockSize, codec, rt.prefetch, 2)
	out := make([]T, 0, run.NumElems)
	for {
		v, ok := src.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	if len(run.BIDs) > 0 {
		if err := rt.mgr.DeleteBlocks(run.BIDs); err != nil {
			return out, WrapError("Collect", err)
		}
	}
	return out, nil
}

// NewPriorityQueue builds an external priority queue over rt's block
// manager and pools, using Runtime's merge arity and insertCap as the
// in-memory insert buffer size before it's spilled into level 0.
func NewPriorityQueue[T any](rt *Runtime, cmp merge.Comparator[T], codec pool.Codec[T], insertCap int) *pqueue.PriorityQueue[T] {
	epb := elemsPerBlock(rt.blockSize, codec)
	return pqueue.New(cmp, insertCap, rt.mergeArity, epb, rt.blockSize, rt.mgr, rt.strategy, rt.write, rt.prefetch, codec)
}

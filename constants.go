package xsort

// Default tuning constants for Sort and NewPriorityQueue. Callers
// building their own block manager / pools are free to pick different
// values; these are what the top-level convenience constructors use.
const (
	// DefaultBlockSize is the fixed block size, in bytes, used when a
	// caller doesn't specify one.
	DefaultBlockSize = 2 << 20 // 2 MiB

	// DefaultMergeArity bounds how many runs a single LoserTree pass
	// merges together before another cascade pass is needed.
	DefaultMergeArity = 64

	// DefaultInsertHeapCapacity bounds the priority queue's in-memory
	// insert buffer before it's sorted into a run and pushed to level 0.
	DefaultInsertHeapCapacity = 1024

	// DefaultPrefetchBuffers and DefaultWriteBuffers size the prefetch
	// and write pools by default.
	DefaultPrefetchBuffers = 4
	DefaultWriteBuffers    = 4
)

package pqueue

// maxHeap is a bounded in-memory max-heap over container/heap, used as the
// priority queue's top-level insert buffer: recently pushed elements live
// here until the buffer fills and gets sorted into a run.
type maxHeap[T any] struct {
	data []T
	less func(a, b T) bool
}

func (h *maxHeap[T]) Len() int { return len(h.data) }

// Less is inverted so container/heap's min-heap machinery gives us a
// max-heap: the root (data[0]) is always the largest element under less.
func (h *maxHeap[T]) Less(i, j int) bool { return h.less(h.data[j], h.data[i]) }

func (h *maxHeap[T]) Swap(i, j int) { h.data[i], h.data[j] = h.data[j], h.data[i] }

func (h *maxHeap[T]) Push(x any) { h.data = append(h.data, x.(T)) }

func (h *maxHeap[T]) Pop() any {
	old := h.data
	n := len(old)
	v := old[n-1]
	h.data = old[:n-1]
	return v
}

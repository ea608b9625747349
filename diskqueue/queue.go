package diskqueue

import (
	"sync"

	"github.com/xsortlib/go-xsort/file"
)

// PriorityOp controls which of a disk's read/write FIFOs the worker favors
// when both have pending work, mirroring the three policies the merge core
// and block manager choose between depending on workload shape.
type PriorityOp int

const (
	// PriorityNone alternates strictly between read and write each turn.
	PriorityNone PriorityOp = iota
	// PriorityRead always drains the read queue first, serving at most one
	// write per turn only when reads are momentarily empty.
	PriorityRead
	// PriorityWrite is the write-favoring mirror of PriorityRead.
	PriorityWrite
)

// Queue is one disk's asynchronous request dispatcher: a single worker
// goroutine serially drains independent read and write FIFOs against the
// underlying file.File, so reads and writes to the same disk are never
// served concurrently (a file.File implementation need not be reentrant),
// while requests against different disks run in parallel on their own
// queues.
type Queue struct {
	f          file.File
	priorityOp PriorityOp

	mu         sync.Mutex
	cond       *sync.Cond
	readQueue  []*Request
	writeQueue []*Request
	terminate  bool

	wg sync.WaitGroup
}

// New creates a queue over f and starts its worker goroutine.
func New(f file.File, priorityOp PriorityOp) *Queue {
	q := &Queue{f: f, priorityOp: priorityOp}
	q.cond = sync.NewCond(&q.mu)
	q.wg.Add(1)
	go q.worker()
	return q
}

// Aread submits an asynchronous read.
func (q *Queue) Aread(buf []byte, offset int64) *Request {
	req := newRequest(Read, buf, offset)
	q.mu.Lock()
	q.readQueue = append(q.readQueue, req)
	q.cond.Signal()
	q.mu.Unlock()
	return req
}

// Awrite submits an asynchronous write.
func (q *Queue) Awrite(buf []byte, offset int64) *Request {
	req := newRequest(Write, buf, offset)
	q.mu.Lock()
	q.writeQueue = append(q.writeQueue, req)
	q.cond.Signal()
	q.mu.Unlock()
	return req
}

// CancelRequest removes req from its queue if it hasn't been dispatched
// yet. It returns ErrInFlight (and leaves the request running) if the
// worker has already picked it up.
func (q *Queue) CancelRequest(req *Request) error {
	q.mu.Lock()
	var queue *[]*Request
	if req.Op == Read {
		queue = &q.readQueue
	} else {
		queue = &q.writeQueue
	}
	for i, r := range *queue {
		if r == req {
			*queue = append((*queue)[:i], (*queue)[i+1:]...)
			q.mu.Unlock()
			req.complete(ErrCanceled)
			return nil
		}
	}
	q.mu.Unlock()
	if req.State() == StateOp {
		return ErrInFlight
	}
	return nil
}

// Stop signals the worker to exit once its queues drain and waits for it.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.terminate = true
	q.cond.Broadcast()
	q.mu.Unlock()
	q.wg.Wait()
}

// worker implements the qwqr (queue-with-queue, read/write) dispatch
// policy: under PriorityNone it alternates phases unconditionally each
// turn; under PriorityRead/PriorityWrite it keeps serving the favored
// queue and only steps aside for a single request from the other queue
// when the favored one is momentarily empty.
func (q *Queue) worker() {
	defer q.wg.Done()
	// PriorityWrite starts in the write-favoring phase; PriorityRead and
	// PriorityNone both start read-first (PriorityNone alternates anyway,
	// so its starting phase only fixes which queue the very first turn
	// prefers).
	writePhase := q.priorityOp == PriorityWrite

	for {
		q.mu.Lock()
		for len(q.readQueue) == 0 && len(q.writeQueue) == 0 && !q.terminate {
			q.cond.Wait()
		}
		if len(q.readQueue) == 0 && len(q.writeQueue) == 0 && q.terminate {
			q.mu.Unlock()
			return
		}

		var req *Request
		if writePhase {
			if len(q.writeQueue) > 0 {
				req = q.writeQueue[0]
				q.writeQueue = q.writeQueue[1:]
			} else if q.priorityOp == PriorityWrite {
				writePhase = false
			}
			if q.priorityOp == PriorityNone || q.priorityOp == PriorityRead {
				writePhase = false
			}
		} else {
			if len(q.readQueue) > 0 {
				req = q.readQueue[0]
				q.readQueue = q.readQueue[1:]
			} else if q.priorityOp == PriorityRead {
				writePhase = true
			}
			if q.priorityOp == PriorityNone || q.priorityOp == PriorityWrite {
				writePhase = true
			}
		}
		q.mu.Unlock()

		if req != nil {
			q.serve(req)
		}
	}
}

func (q *Queue) serve(req *Request) {
	var err error
	switch req.Op {
	case Read:
		_, err = q.f.ReadAt(req.Buf, req.Offset)
	case Write:
		_, err = q.f.WriteAt(req.Buf, req.Offset)
	}
	req.complete(err)
}

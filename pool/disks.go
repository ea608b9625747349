// Package pool implements the prefetch and write-back buffer pools that sit
// between the block manager's BIDs and the per-disk diskqueue.Queue
// workers, overlapping I/O with computation the way the merge core and
// external priority queue both need.
package pool

import (
	"fmt"

	"github.com/xsortlib/go-xsort/blockmgr"
	"github.com/xsortlib/go-xsort/diskqueue"
	"github.com/xsortlib/go-xsort/file"
)

// Disks fans a BID out to the diskqueue.Queue owning its disk index.
type Disks struct {
	queues []*diskqueue.Queue
}

// NewDisks wraps one file.File per disk with its own diskqueue.Queue.
func NewDisks(files []file.File, priorityOp diskqueue.PriorityOp) *Disks {
	queues := make([]*diskqueue.Queue, len(files))
	for i, f := range files {
		queues[i] = diskqueue.New(f, priorityOp)
	}
	return &Disks{queues: queues}
}

func (d *Disks) queueFor(bid blockmgr.BID) (*diskqueue.Queue, error) {
	if bid.Disk < 0 || bid.Disk >= len(d.queues) {
		return nil, fmt.Errorf("pool: bid %s references unknown disk (have %d disks)", bid, len(d.queues))
	}
	return d.queues[bid.Disk], nil
}

// Aread issues an asynchronous read for bid.
func (d *Disks) Aread(bid blockmgr.BID, buf []byte) (*diskqueue.Request, error) {
	q, err := d.queueFor(bid)
	if err != nil {
		return nil, err
	}
	return q.Aread(buf, bid.Offset), nil
}

// Awrite issues an asynchronous write for bid.
func (d *Disks) Awrite(bid blockmgr.BID, buf []byte) (*diskqueue.Request, error) {
	q, err := d.queueFor(bid)
	if err != nil {
		return nil, err
	}
	return q.Awrite(buf, bid.Offset), nil
}

// Stop shuts down every disk's queue.
func (d *Disks) Stop() {
	for _, q := range d.queues {
		q.Stop()
	}
}

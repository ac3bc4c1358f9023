package workflow

import (
	"container/heap"
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// WorkItem is one unit of scheduled work: deliver Envelope to ExecutorID.
// OrderKey gives every item a deterministic position in the frontier's
// min-heap so that two runs fed identical inputs dispatch executors in the
// same order regardless of goroutine scheduling, the same role OrderKey
// plays in the teacher's scheduler.
type WorkItem struct {
	StepID            int
	OrderKey          uint64
	ExecutorID        string
	Envelope          Envelope
	Attempt           int
	ParentExecutorID  string
	EdgeIndex         int
}

// computeOrderKey derives a deterministic ordering key from the parent
// executor ID and the index of the edge that produced this item: the first
// eight bytes of SHA-256(parentExecutorID || big-endian(edgeIndex)).
func computeOrderKey(parentExecutorID string, edgeIndex int) uint64 {
	h := sha256.New()
	h.Write([]byte(parentExecutorID))
	var idxBytes [8]byte
	binary.BigEndian.PutUint64(idxBytes[:], uint64(edgeIndex))
	h.Write(idxBytes[:])
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// workHeap is a min-heap of WorkItem ordered by OrderKey, breaking ties by
// StepID then ExecutorID so heap.Pop is fully deterministic.
type workHeap []WorkItem

func (h workHeap) Len() int { return len(h) }
func (h workHeap) Less(i, j int) bool {
	if h[i].OrderKey != h[j].OrderKey {
		return h[i].OrderKey < h[j].OrderKey
	}
	if h[i].StepID != h[j].StepID {
		return h[i].StepID < h[j].StepID
	}
	return h[i].ExecutorID < h[j].ExecutorID
}
func (h workHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *workHeap) Push(x any)   { *h = append(*h, x.(WorkItem)) }
func (h *workHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Frontier is the scheduler's bounded, deterministically ordered work
// queue. Producers (the superstep loop routing an executor's outgoing
// messages) Enqueue items; workers Dequeue them in OrderKey order. The
// backing channel bounds memory use and applies backpressure to producers
// when consumers fall behind.
type Frontier struct {
	h        workHeap
	notify   chan struct{}
	capacity int
}

// NewFrontier creates an empty Frontier with the given capacity, used only
// to size the notification channel; the heap itself grows unbounded since
// items must be held somewhere once accepted; capacity instead governs how
// many Enqueue calls can be outstanding without blocking.
func NewFrontier(capacity int) *Frontier {
	if capacity <= 0 {
		capacity = 256
	}
	return &Frontier{
		h:        make(workHeap, 0),
		notify:   make(chan struct{}, capacity),
		capacity: capacity,
	}
}

// Enqueue adds item to the frontier, blocking until there is room in the
// notification channel or ctx is done; it has no timeout of its own.
func (f *Frontier) Enqueue(ctx context.Context, item WorkItem) error {
	select {
	case f.notify <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	f.push(item)
	return nil
}

func (f *Frontier) push(item WorkItem) {
	heap.Push(&f.h, item)
}

// Dequeue blocks until an item is available or ctx is cancelled.
func (f *Frontier) Dequeue(ctx context.Context) (WorkItem, bool) {
	select {
	case <-f.notify:
	case <-ctx.Done():
		return WorkItem{}, false
	}
	item := heap.Pop(&f.h).(WorkItem)
	return item, true
}

// Len returns the number of items currently queued.
func (f *Frontier) Len() int { return len(f.h) }

// Snapshot returns a copy of the queued items in heap order, for
// checkpointing. The order is not guaranteed to match Dequeue order for
// items with equal OrderKey ties broken by insertion, but replaying the
// snapshot through a fresh Frontier reproduces identical behavior since
// ties are broken deterministically by StepID/ExecutorID, not insertion
// order.
func (f *Frontier) Snapshot() []WorkItem {
	out := make([]WorkItem, len(f.h))
	copy(out, f.h)
	return out
}

// Restore replaces the frontier's contents with items, re-establishing the
// heap invariant and the notification channel's pending count.
func (f *Frontier) Restore(items []WorkItem) {
	f.h = make(workHeap, len(items))
	copy(f.h, items)
	heap.Init(&f.h)
	f.notify = make(chan struct{}, f.capacity)
	for range items {
		f.notify <- struct{}{}
	}
}

package core

import (
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't shrink below this capacity
	compactShrinkFactor = 4  // Shrink when len < cap/4
)

// TaskQueue is the work list behind a TaskScheduler.
type TaskQueue interface {
	Push(item TaskItem)
	Pop() (TaskItem, bool)
	Drain() []TaskItem // Remove and return every queued item
}

// =============================================================================
// FIFOTaskQueue
// =============================================================================

// FIFOTaskQueue is a growable ring buffer of TaskItems.
type FIFOTaskQueue struct {
	mu   sync.Mutex
	buf  []TaskItem
	head int
	n    int
}

func NewFIFOTaskQueue() *FIFOTaskQueue {
	return &FIFOTaskQueue{
		buf: make([]TaskItem, defaultQueueCap),
	}
}

func (q *FIFOTaskQueue) Push(item TaskItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == len(q.buf) {
		q.resizeLocked(len(q.buf) * 2)
	}
	q.buf[(q.head+q.n)%len(q.buf)] = item
	q.n++
}

func (q *FIFOTaskQueue) Pop() (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.n == 0 {
		return TaskItem{}, false
	}

	item := q.buf[q.head]
	// Drop the reference so the closure can be collected
	q.buf[q.head] = TaskItem{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--

	if len(q.buf) >= compactMinCap && q.n*compactShrinkFactor < len(q.buf) {
		q.resizeLocked(max(len(q.buf)/2, defaultQueueCap))
	}
	return item, true
}

// Drain removes every queued item and returns them in FIFO order.
// The queue keeps no references to the returned items.
func (q *FIFOTaskQueue) Drain() []TaskItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.orderedLocked(q.n)
	q.buf = make([]TaskItem, defaultQueueCap)
	q.head, q.n = 0, 0
	return items
}

func (q *FIFOTaskQueue) resizeLocked(size int) {
	q.buf = q.orderedLocked(size)[:size]
	q.head = 0
}

// orderedLocked copies the queued items, oldest first, into a new slice of
// length q.n and capacity size.
func (q *FIFOTaskQueue) orderedLocked(size int) []TaskItem {
	out := make([]TaskItem, q.n, size)
	if q.n == 0 {
		return out
	}
	end := q.head + q.n
	if end <= len(q.buf) {
		copy(out, q.buf[q.head:end])
	} else {
		k := copy(out, q.buf[q.head:])
		copy(out[k:], q.buf[:end-len(q.buf)])
	}
	return out
}

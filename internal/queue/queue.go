// Package queue provides the FIFO ring buffer used between the transport and
// the dispatcher, and for commands held while the connection is down.
package queue

import (
	"sync"
)

// Queue is a thread-safe FIFO that doubles its capacity when it reaches 70%
// full. A Queue built with NewBounded never holds more than its limit.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []T
	head   int // read position
	tail   int // write position
	count  int
	limit  int // 0 = unbounded
	closed bool

	// Stats
	pushed   int64
	popped   int64
	rejected int64
	resizes  int
}

// Stats contains queue statistics.
type Stats struct {
	Len      int
	Cap      int
	Limit    int
	Pushed   int64
	Popped   int64
	Rejected int64
	Resizes  int
}

// New creates an unbounded queue with the given initial capacity.
func New[T any](initialCapacity int) *Queue[T] {
	return NewBounded[T](initialCapacity, 0)
}

// NewBounded creates a queue that rejects pushes beyond limit items.
// A limit <= 0 means unbounded.
func NewBounded[T any](initialCapacity, limit int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 0 && initialCapacity > limit {
		initialCapacity = limit
	}
	q := &Queue[T]{
		buf:   make([]T, initialCapacity),
		limit: limit,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item. Returns false if the queue is closed or at its limit.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.limit > 0 && q.count >= q.limit {
		q.rejected++
		return false
	}

	q.maybeGrow()

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.pushed++

	q.cond.Signal()
	return true
}

// Pop removes the oldest item, blocking until one is available or the queue
// is closed. Returns false once the queue is closed and empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// TryPop removes the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// Drain removes up to max items in FIFO order (all items if max <= 0).
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	n := q.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	for i := range out {
		out[i] = q.take()
	}
	return out
}

// Close stops accepting pushes and wakes blocked Pop calls.
// Items already queued can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Len:      q.count,
		Cap:      len(q.buf),
		Limit:    q.limit,
		Pushed:   q.pushed,
		Popped:   q.popped,
		Rejected: q.rejected,
		Resizes:  q.resizes,
	}
}

// take removes the head item. Must be called with lock held and count > 0.
func (q *Queue[T]) take() T {
	item := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero // Clear reference for GC
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.popped++
	return item
}

// maybeGrow doubles capacity at 70% fill, capped at limit. Must be called
// with lock held.
func (q *Queue[T]) maybeGrow() {
	capacity := len(q.buf)
	threshold := (capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 < threshold && q.count < capacity {
		return
	}

	newCapacity := capacity * 2
	if q.limit > 0 && newCapacity > q.limit {
		newCapacity = q.limit
	}
	if newCapacity <= capacity {
		return
	}

	newBuf := make([]T, newCapacity)
	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.resizes++
}

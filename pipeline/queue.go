package pipeline

import (
	"sync"

	"github.com/hb9tf/rfiflag/artifacts"
)

// queue is the bounded buffer between the reader and the workers. Push blocks
// while the queue holds limit sets, Pop blocks while it is empty. Fail poisons
// the queue: every waiter wakes up and no further set is handed out.
type queue struct {
	mu      sync.Mutex
	hasData *sync.Cond
	hasRoom *sync.Cond

	items  []*artifacts.Set
	limit  int
	closed bool
	err    error
}

func newQueue(limit int) *queue {
	if limit < 1 {
		limit = 1
	}
	q := &queue{limit: limit}
	q.hasData = sync.NewCond(&q.mu)
	q.hasRoom = sync.NewCond(&q.mu)
	return q
}

// Push appends set and reports whether it was accepted.
func (q *queue) Push(set *artifacts.Set) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) >= q.limit && q.err == nil {
		q.hasRoom.Wait()
	}
	if q.err != nil || q.closed {
		return false
	}
	q.items = append(q.items, set)
	queueDepth.Set(float64(len(q.items)))
	q.hasData.Signal()
	return true
}

// Pop returns the oldest set. It returns false once the queue is closed and
// drained, or as soon as it is poisoned.
func (q *queue) Pop() (*artifacts.Set, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed && q.err == nil {
		q.hasData.Wait()
	}
	if q.err != nil || len(q.items) == 0 {
		return nil, false
	}
	set := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	queueDepth.Set(float64(len(q.items)))
	q.hasRoom.Signal()
	return set, true
}

// Close marks the end of input. Queued sets are still handed out.
func (q *queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.hasData.Broadcast()
}

// Fail poisons the queue with err. Only the first error is kept.
func (q *queue) Fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err == nil {
		q.err = err
	}
	q.items = nil
	queueDepth.Set(0)
	q.hasData.Broadcast()
	q.hasRoom.Broadcast()
}

func (q *queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

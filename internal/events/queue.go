package events

import (
	"context"
	"sync"
)

// DefaultCapacity bounds how many events a queue buffers before it
// starts evicting old log events.
const DefaultCapacity = 1024

// Queue is the delivery channel between a running job and its stream
// subscriber. Producers never block: when the buffer is full the oldest
// log event is evicted to make room. Status, result and error events
// are never evicted, so a slow or absent subscriber still observes
// every state transition. Close marks the end of the stream; buffered
// events remain readable until drained.
type Queue struct {
	mu       sync.Mutex
	items    []Event
	capacity int
	closed   bool
	dropped  int

	// signal wakes a blocked Next without holding the lock.
	signal chan struct{}
}

func NewQueue() *Queue {
	return NewQueueWithCapacity(DefaultCapacity)
}

func NewQueueWithCapacity(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Push appends an event to the queue. Pushing to a closed queue is a
// no-op.
func (q *Queue) Push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if len(q.items) >= q.capacity {
		if i := q.oldestLogIndex(); i >= 0 {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.dropped++
		}
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.notify()
}

// Close ends the stream. Events pushed before Close stay readable;
// Next reports false once they are drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// Next blocks until an event is available, the queue is closed and
// drained, or the context is cancelled. It reports false when no more
// events will be delivered.
func (q *Queue) Next(ctx context.Context) (Event, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Event{}, false
		}
		select {
		case <-q.signal:
		case <-ctx.Done():
			return Event{}, false
		}
	}
}

// Len reports the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped reports how many log events were evicted due to the
// capacity bound.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Queue) oldestLogIndex() int {
	for i, ev := range q.items {
		if ev.Type == TypeLog {
			return i
		}
	}
	return -1
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

package stream

import (
	"sync"
	"time"
)

// CommandRecord is a raw bus payload plus its arrival time. The bus
// callback creates it; the dispatcher consumes it.
type CommandRecord struct {
	Payload []byte
	At      time.Time
}

// Queue is the bounded FIFO between the bus callback and the dispatcher.
// Push never blocks: on overflow the oldest command is discarded and
// counted, because a stalled dispatcher must not back-pressure the bus
// client's callback goroutine. Arrival order is preserved.
type Queue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	items    []CommandRecord
	limit    int
	closed   bool
	onDrop   func()
}

// NewQueue creates a queue holding at most limit commands. onDrop, when
// non-nil, is called once per overflow discard.
func NewQueue(limit int, onDrop func()) *Queue {
	q := &Queue{limit: limit, onDrop: onDrop}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends a record, discarding the oldest entry when full.
func (q *Queue) Push(rec CommandRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	if len(q.items) == q.limit {
		q.items = q.items[1:]
		if q.onDrop != nil {
			q.onDrop()
		}
	}
	q.items = append(q.items, rec)
	q.nonEmpty.Signal()
}

// Pop blocks until a record is available or the queue is closed. ok is
// false only after close with the queue drained.
func (q *Queue) Pop() (rec CommandRecord, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.nonEmpty.Wait()
	}
	if len(q.items) == 0 {
		return CommandRecord{}, false
	}
	rec = q.items[0]
	q.items = q.items[1:]
	return rec, true
}

// Len reports the queued command count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes any blocked Pop. Queued commands may still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.nonEmpty.Broadcast()
}

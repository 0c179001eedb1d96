package dictation

import "sync"

// QueueCapacity bounds the committed transcript queue.
const QueueCapacity = 128

// CommittedTranscript is a final transcript waiting to be injected.
type CommittedTranscript struct {
	Text        string
	Confidence  float64
	CreatedAtMs int64
}

// CommittedQueue is a bounded FIFO that drops the oldest item when full.
type CommittedQueue struct {
	mu       sync.Mutex
	items    []CommittedTranscript
	capacity int
	notify   chan struct{}
}

// NewCommittedQueue returns an empty queue. A non-positive capacity means
// QueueCapacity.
func NewCommittedQueue(capacity int) *CommittedQueue {
	if capacity <= 0 {
		capacity = QueueCapacity
	}
	return &CommittedQueue{
		items:    make([]CommittedTranscript, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Push appends item and returns how many old items were dropped to make room.
func (q *CommittedQueue) Push(item CommittedTranscript) int {
	q.mu.Lock()
	q.items = append(q.items, item)
	dropped := 0
	if over := len(q.items) - q.capacity; over > 0 {
		clear(q.items[:over])
		q.items = q.items[over:]
		dropped = over
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}

// Pop removes the oldest item without blocking.
func (q *CommittedQueue) Pop() (CommittedTranscript, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return CommittedTranscript{}, false
	}
	item := q.items[0]
	q.items[0] = CommittedTranscript{}
	q.items = q.items[1:]
	return item, true
}

// Wait returns a channel that receives after a Push.
func (q *CommittedQueue) Wait() <-chan struct{} {
	return q.notify
}

// Len returns the number of queued items.
func (q *CommittedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every queued item and returns how many there were.
func (q *CommittedQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = q.items[:0]
	return n
}

package arena

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Push after Close
var ErrQueueClosed = errors.New("queue closed")

// QueueEntry is one pending join request
type QueueEntry struct {
	// Identity is the caller's connection or client id, used by Remove
	Identity  string
	AgentName string
	Strategy  Strategy
}

// Queue holds pending joins and releases them in fixed-size batches.
// onChange is called with the new size after every mutation, while the
// queue lock is held, so observers see sizes in mutation order.
type Queue struct {
	mu        sync.Mutex
	entries   []QueueEntry
	batchSize int
	onChange  func(size int)
	closed    bool
}

// NewQueue creates a queue that releases batches of batchSize entries
func NewQueue(batchSize int, onChange func(size int)) *Queue {
	if batchSize < 1 {
		batchSize = 1
	}
	if onChange == nil {
		onChange = func(int) {}
	}
	return &Queue{batchSize: batchSize, onChange: onChange}
}

// Push appends an entry. When the queue reaches the batch size the oldest
// batchSize entries are drained and returned in join order. A closed queue
// refuses the entry with ErrQueueClosed.
func (q *Queue) Push(e QueueEntry) (int, []QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, nil, ErrQueueClosed
	}

	q.entries = append(q.entries, e)
	var batch []QueueEntry
	if len(q.entries) >= q.batchSize {
		batch = make([]QueueEntry, q.batchSize)
		copy(batch, q.entries[:q.batchSize])
		q.entries = append(q.entries[:0], q.entries[q.batchSize:]...)
	}
	q.onChange(len(q.entries))
	return len(q.entries), batch, nil
}

// Remove drops the most recent entry queued by identity. The size is
// reported either way; the bool tells whether anything was removed.
func (q *Queue) Remove(identity string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := len(q.entries) - 1; i >= 0; i-- {
		if q.entries[i].Identity == identity {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.onChange(len(q.entries))
			return len(q.entries), true
		}
	}
	q.onChange(len(q.entries))
	return len(q.entries), false
}

// Len returns the number of pending entries
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close drops every pending entry without notifying and refuses later pushes
func (q *Queue) Close() {
	q.mu.Lock()
	q.entries = nil
	q.closed = true
	q.mu.Unlock()
}

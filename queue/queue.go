// Package queue provides the outbound user-message queue.
//
// The queue is an unbounded ordered FIFO: pushes never block or drop while
// the queue is open, and the consumer drains in submission order. Once
// closed, further pushes are silently dropped and every waiting consumer
// observes end-of-stream exactly once.
package queue

import (
	"context"
	"sync"

	"github.com/linanwx/surfbot/logger"
)

// Queue is an unbounded FIFO of outbound message text.
type Queue struct {
	mu     sync.Mutex
	items  []string
	closed bool

	wake      chan struct{} // pulsed on push
	done      chan struct{} // closed on Close
	closeOnce sync.Once
}

// New creates an open queue.
func New() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Push appends text to the queue. Returns false if the queue is closed,
// in which case the message is dropped.
func (q *Queue) Push(text string) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		logger.Debug("queue closed, message dropped")
		return false
	}
	q.items = append(q.items, text)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until a message is available, the queue is closed, or ctx is
// cancelled. After Close, buffered messages are still drained in order;
// the final call returns ("", false) exactly once per waiting consumer.
func (q *Queue) Next(ctx context.Context) (string, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return "", false
		}

		select {
		case <-q.wake:
		case <-q.done:
		case <-ctx.Done():
			return "", false
		}
	}
}

// Close marks the queue closed and wakes all waiting consumers. Idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of buffered messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Package msgqueue provides the inbound message queue shared by every
// connection of a node. Receive goroutines push lines as they arrive and the
// application drains them with Pop or PopWait.
package msgqueue

import (
	"context"
	"sync"
)

// Message is one line received from a peer.
type Message struct {
	// Text holds the line exactly as received, including the trailing '\n'.
	Text []byte
	// SenderID is the client id of the connection the line arrived on. A
	// client node reports 0 for lines sent by its server.
	SenderID uint32
}

// String returns the message text.
func (m Message) String() string {
	return string(m.Text)
}

// Queue is a FIFO of Messages that is safe for concurrent use by multiple
// producers and consumers. The order of Pop follows the order in which Push
// calls completed; there is no per-sender ordering beyond that.
//
// Queue is unbounded: if nothing drains it, it grows without limit.
type Queue struct {
	mu    sync.Mutex
	items []Message
	wake  chan struct{}
}

// New returns an empty Queue.
//
// Returns:
//   - A pointer to a new Queue
func New() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Push appends msg to the back of the queue. It never blocks beyond the
// in-memory append.
//
// Parameters:
//   - msg: The message to enqueue; ownership passes to the queue
func (q *Queue) Push(msg Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()

	q.signal()
}

// Pop removes and returns the oldest message.
//
// Returns:
//   - The oldest message; ownership passes to the caller
//   - false if the queue is empty
func (q *Queue) Pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Message{}, false
	}

	msg := q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}

	return msg, true
}

// PopWait removes and returns the oldest message, blocking until one is
// available or ctx is done.
//
// Parameters:
//   - ctx: Context bounding the wait
//
// Returns:
//   - The oldest message
//   - ctx.Err() if the context ends before a message arrives
func (q *Queue) PopWait(ctx context.Context) (Message, error) {
	for {
		if msg, ok := q.Pop(); ok {
			// Pass the wakeup on to other waiters if more is queued.
			if q.Len() > 0 {
				q.signal()
			}
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-q.wake:
		}
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

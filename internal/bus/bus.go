// Package bus carries extraction messages from producers to the
// extraction worker loop.
package bus

import (
	"sync"
	"time"
)

// Recognized message types. Unknown types are ignored by consumers,
// not rejected.
const (
	TypeExtractNLP = "extract_nlp"
	TypeShutdown   = "shutdown"
)

// Message is one unit of work on the bus.
type Message struct {
	Type      string `json:"type"`
	Index     string `json:"index,omitempty"`
	DocID     string `json:"docId,omitempty"`
	RoutingID string `json:"routingId,omitempty"`
}

// Queue is an unbounded blocking message queue with a bounded-timeout
// Poll and a cooperative "queue became empty" signal for drain-and-wait
// coordination. The empty signal is advisory only; it must not be
// relied upon as a lock around queue mutation.
type Queue struct {
	mu      sync.Mutex
	items   []*Message
	arrival chan struct{}
	drained chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		arrival: make(chan struct{}),
		drained: make(chan struct{}),
	}
}

// Offer appends a message and wakes one polling consumer.
func (q *Queue) Offer(msg *Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	close(q.arrival)
	q.arrival = make(chan struct{})
	q.mu.Unlock()
}

// Poll returns the next message, blocking up to timeout. A nil return
// means the timeout elapsed with no message, which is not an error.
func (q *Queue) Poll(timeout time.Duration) *Message {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return msg
		}
		arrival := q.arrival
		q.mu.Unlock()

		select {
		case <-arrival:
		case <-timer.C:
			return nil
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// SignalIfEmpty wakes every WaitUntilEmpty caller if the queue holds
// no messages. Consumers call it after handling each message.
func (q *Queue) SignalIfEmpty() {
	q.mu.Lock()
	if len(q.items) == 0 {
		close(q.drained)
		q.drained = make(chan struct{})
	}
	q.mu.Unlock()
}

// WaitUntilEmpty blocks until the queue is observed empty and signaled
// so, or the timeout elapses. It reports whether the queue drained.
func (q *Queue) WaitUntilEmpty(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			return true
		}
		drained := q.drained
		q.mu.Unlock()

		select {
		case <-drained:
		case <-timer.C:
			return false
		}
	}
}

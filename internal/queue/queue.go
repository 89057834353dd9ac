// Package queue implements the inbound delivery queue of a session: an
// unbounded FIFO with many producers and exactly one consumer.
//
// There is no backpressure. A consumer that stops reading makes the
// queue grow without limit until it is closed.
package queue

import (
	"context"
	"errors"
	"sync"

	"messenger/internal/models"
)

// ErrClosed is returned by Send and Recv once the consumer side is gone.
var ErrClosed = errors.New("queue: consumer closed")

type state struct {
	mu      sync.Mutex
	items   []models.Message
	parked  []models.Message
	held    bool
	closed  bool
	ready   chan struct{}
	closedC chan struct{}
}

// Sender is the producer half. Any number of goroutines may use it.
type Sender struct{ s *state }

// Receiver is the consumer half. It must be used by one goroutine.
type Receiver struct{ s *state }

// New returns the two halves of an empty queue.
func New() (*Sender, *Receiver) {
	s := &state{ready: make(chan struct{}, 1), closedC: make(chan struct{})}
	return &Sender{s: s}, &Receiver{s: s}
}

// NewHeld returns a queue whose live traffic is parked until Release.
// Messages pushed with Replay go straight to the consumer, so a replay
// performed while held is always observed before any parked message.
func NewHeld() (*Sender, *Receiver) {
	tx, rx := New()
	tx.s.held = true
	return tx, rx
}

// Send appends m. It fails only when the receiver has been closed.
func (q *Sender) Send(m models.Message) error {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.held {
		s.parked = append(s.parked, m)
		return nil
	}
	s.items = append(s.items, m)
	s.signal()
	return nil
}

// Replay appends m ahead of any parked live traffic.
func (q *Sender) Replay(m models.Message) error {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.items = append(s.items, m)
	s.signal()
	return nil
}

// Release stops parking live traffic and moves what was parked behind
// the replayed messages. It is a no-op on a queue that is not held.
func (q *Sender) Release() {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.held {
		return
	}
	s.held = false
	if s.closed {
		s.parked = nil
		return
	}
	if len(s.parked) > 0 {
		s.items = append(s.items, s.parked...)
		s.parked = nil
		s.signal()
	}
}

// Closed reports whether the consumer side has been dropped.
func (q *Sender) Closed() bool {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Len is the number of messages waiting for the consumer, parked
// messages included.
func (q *Sender) Len() int {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) + len(s.parked)
}

// signal requires s.mu.
func (s *state) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Ready fires when messages may be available. Call Drain after it fires.
func (q *Receiver) Ready() <-chan struct{} { return q.s.ready }

// Done is closed when the receiver is closed.
func (q *Receiver) Done() <-chan struct{} { return q.s.closedC }

// Drain removes and returns everything currently queued, in order.
func (q *Receiver) Drain() []models.Message {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.items
	s.items = nil
	return out
}

// Recv blocks until a message is available, the receiver is closed or
// ctx is done.
func (q *Receiver) Recv(ctx context.Context) (models.Message, error) {
	s := q.s
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return models.Message{}, ErrClosed
		}
		if len(s.items) > 0 {
			m := s.items[0]
			s.items[0] = models.Message{}
			s.items = s.items[1:]
			if len(s.items) > 0 {
				s.signal()
			}
			s.mu.Unlock()
			return m, nil
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-s.closedC:
		case <-ctx.Done():
			return models.Message{}, ctx.Err()
		}
	}
}

// Close drops the consumer side. Pending messages are discarded and
// every later Send fails. Close is idempotent.
func (q *Receiver) Close() {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.items = nil
	s.parked = nil
	close(s.closedC)
}

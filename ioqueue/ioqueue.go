// Package ioqueue implements the bounded single-producer/single-consumer
// message queue that crosses the control-thread/IO-thread boundary
// (§5): Send is a blocking rendezvous used for control-thread calls
// that need an IO-thread answer (set port, set mute, set volume); Post
// is fire-and-forget, used for the IO thread's own
// hardware-originated notifications upward.
//
// The queue itself is a thin wrapper around a buffered channel; the
// blocking/non-blocking distinction and the drain loop are grounded on
// the same channel-as-rendezvous pattern the reference library uses for
// its mixer and repeater sinks.
package ioqueue

import "context"

// Message is one unit of cross-thread work. The consumer's goroutine
// ("the IO thread") receives it from Drain and, for Send, passes its
// result to Reply, which delivers it back to the sender.
type Message struct {
	Kind  string
	Value any
	reply chan any
}

// Queue is a bounded FIFO from one sender to one consumer.
type Queue struct {
	ch chan Message
}

// New returns a queue with the given capacity for fire-and-forget
// Posts; Sends always occupy one slot regardless of capacity since they
// block until acknowledged.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan Message, capacity)}
}

// Post enqueues msg without waiting for a reply. Returns false if ctx
// is done before the message could be enqueued (queue full).
func (q *Queue) Post(ctx context.Context, kind string, value any) bool {
	select {
	case q.ch <- Message{Kind: kind, Value: value}:
		return true
	case <-ctx.Done():
		return false
	}
}

// Send enqueues msg and blocks until the consumer calls Reply on it, or
// ctx is canceled. The consumer must call Reply exactly once for every
// message it receives through Drain when reply is non-nil.
func (q *Queue) Send(ctx context.Context, kind string, value any) (any, error) {
	reply := make(chan any, 1)
	msg := Message{Kind: kind, Value: value, reply: reply}
	select {
	case q.ch <- msg:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply acknowledges a message received from Drain that was sent with
// Send; a no-op for messages sent with Post.
func (m Message) Reply(v any) {
	if m.reply != nil {
		m.reply <- v
	}
}

// Drain blocks until a message is available or ctx is canceled, and is
// the consumer-side ("IO thread") receive call: messages are processed
// strictly in FIFO order (§5).
func (q *Queue) Drain(ctx context.Context) (Message, bool) {
	select {
	case msg := <-q.ch:
		return msg, true
	case <-ctx.Done():
		return Message{}, false
	}
}

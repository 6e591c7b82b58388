// Package broadcast fans a source's captured chunks out to every
// attached consumer (§2 "for each attached output: ... then
// output.push(chunk)"), grounded on the reference repeater's
// one-sink/many-sources channel fan-out (repeat.go): each posted chunk
// is copied once into a pooled buffer and handed to every tap with a
// shared reference count, freed back to the pool once the last tap has
// read it.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"

	"pipelined.dev/signal"
)

// Frame is one posted chunk, shared by every tap it was broadcast to.
type Frame struct {
	buffer   signal.Floating
	refs     int32
	pool     *signal.PoolAllocator
}

// Buffer returns the frame's payload. Callers must not retain it past
// the call to Tap.Recv that returns the following frame.
func (f *Frame) Buffer() signal.Floating { return f.buffer }

func (f *Frame) release() {
	if atomic.AddInt32(&f.refs, -1) == 0 {
		f.buffer.Free(f.pool)
	}
}

// Hub is the attachment point on the capture side (source.post in
// §4.3's push contract): one Hub per source, one Tap per attached
// source output.
type Hub struct {
	mu       sync.Mutex
	channels int
	pool     *signal.PoolAllocator
	taps     []chan *Frame
}

// NewHub returns a hub that pools buffers of the given channel count
// and capacity (the device's buffer size).
func NewHub(channels, capacity int) *Hub {
	return &Hub{
		channels: channels,
		pool:     signal.GetPoolAllocator(channels, capacity, capacity),
	}
}

// Tap is one attached consumer's receive end; Source Output.push reads
// from it.
type Tap struct {
	ch chan *Frame
}

// Attach registers a new tap. Streams attach exactly once, at creation
// (§3 "outputs: ordered set").
func (h *Hub) Attach() *Tap {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan *Frame, 1)
	h.taps = append(h.taps, ch)
	return &Tap{ch: ch}
}

// Detach removes a tap, closing its channel so a pending Recv returns
// false; used by the two-phase move's start_move (§4.3).
func (h *Hub) Detach(t *Tap) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, ch := range h.taps {
		if ch == t.ch {
			h.taps = append(h.taps[:i], h.taps[i+1:]...)
			close(ch)
			return
		}
	}
}

// Post copies in into a pooled buffer and hands it to every currently
// attached tap (§2 "source.post(chunk)").
func (h *Hub) Post(in signal.Floating) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.taps) == 0 {
		return
	}
	out := h.pool.Float64()
	signal.FloatingAsFloating(in, out)
	f := &Frame{buffer: out, refs: int32(len(h.taps)), pool: h.pool}
	for _, ch := range h.taps {
		ch <- f
	}
}

// Close shuts down every tap, signalling EOF to any blocked Recv.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.taps {
		close(ch)
	}
	h.taps = nil
}

// Recv blocks for the next broadcast frame, releasing the frame
// previously returned (if any) back toward the shared pool. Returns
// false once the hub has detached or closed this tap.
func (t *Tap) Recv(ctx context.Context, prev *Frame) (*Frame, bool) {
	if prev != nil {
		prev.release()
	}
	select {
	case f, ok := <-t.ch:
		return f, ok
	case <-ctx.Done():
		return nil, false
	}
}

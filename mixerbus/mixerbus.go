// Package mixerbus mixes every attached sink input's rendered chunk into
// one hardware playback buffer per IO tick, each output sample being the
// mean of the inputs' samples (§2; §4.4's peek/render-queue/device loop).
//
// Grounded directly on the reference mixer (mixer.go): the same
// double-buffered frame accumulation (expected/added/flushed counters,
// two frames in flight so a slow input doesn't stall the next tick)
// and the same semaphore-gated channel backpressure, generalized so
// inputs attach and detach at runtime the way sink inputs attach to and
// move away from a device, rather than being fixed for the pipeline's
// lifetime.
package mixerbus

import (
	"context"
	"errors"
	"sync"

	"github.com/pipelined/device/internal/semaphore"

	"pipelined.dev/signal"
)

// ErrChannelMismatch is returned when a contribution's channel count
// does not match the bus.
var ErrChannelMismatch = errors.New("mixerbus: channel count mismatch")

const numFrames = 2

type frame struct {
	buffer   signal.Floating
	expected int
	added    int
	flushed  int
	length   int
}

// Bus averages contributions from any number of attached sink inputs
// into one buffer per tick.
type Bus struct {
	mu       sync.Mutex
	channels int
	pool     *signal.PoolAllocator
	frames   [numFrames]frame
	head     int
	inputs   []*inputState
	feed     chan contribution
	out      chan signal.Floating
}

type inputState struct {
	frame int
	sema  semaphore.Semaphore
	gone  bool
}

type contribution struct {
	input  int
	buffer signal.Floating // nil means this input flushed (detached)
}

// Input is the sink input's handle for contributing to the bus.
type Input struct {
	bus   *Bus
	index int
	sema  *semaphore.Semaphore
}

// NewBus returns a bus for buffers of the given channel count and
// per-tick sample capacity.
func NewBus(channels, bufferSize int) *Bus {
	b := &Bus{
		channels: channels,
		pool:     signal.GetPoolAllocator(channels, bufferSize, bufferSize),
		feed:     make(chan contribution, 1),
	}
	b.frames[0].buffer = b.pool.Float64()
	return b
}

// Attach registers a new sink input as a contributor; every tick after
// this call must include a Contribute from it until Detach.
func (b *Bus) Attach() *Input {
	b.mu.Lock()
	defer b.mu.Unlock()
	sema := semaphore.New(numFrames - 1)
	st := &inputState{frame: b.head, sema: sema}
	b.inputs = append(b.inputs, st)
	idx := len(b.inputs) - 1
	b.frames[st.frame].expected++
	return &Input{bus: b, index: idx, sema: &st.sema}
}

// Contribute submits one tick's rendered chunk.
func (in *Input) Contribute(ctx context.Context, buf signal.Floating) error {
	if buf.Channels() != in.bus.channels {
		return ErrChannelMismatch
	}
	select {
	case in.bus.feed <- contribution{input: in.index, buffer: buf}:
		in.sema.Acquire(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Detach stops this input from contributing; the bus treats it as
// permanently flushed, matching a sink input's move/kill.
func (in *Input) Detach(ctx context.Context) {
	select {
	case in.bus.feed <- contribution{input: in.index}:
	case <-ctx.Done():
	}
}

// Run drives the accumulation loop, emitting one summed buffer per
// completed frame on the returned channel until ctx is done or every
// attached input has detached.
func (b *Bus) Run(ctx context.Context) <-chan signal.Floating {
	out := make(chan signal.Floating, 1)
	b.out = out
	go b.run(ctx, out)
	return out
}

func (b *Bus) run(ctx context.Context, out chan<- signal.Floating) {
	defer close(out)
	sinking := len(b.inputs)
	head := 0
	for sinking > 0 {
		var c contribution
		select {
		case c = <-b.feed:
		case <-ctx.Done():
			return
		}
		st := b.inputs[c.input]
		f := &b.frames[st.frame]

		if c.buffer == nil {
			sinking--
			for {
				f.flushed++
				if f.sum() {
					b.release(f, head)
					select {
					case out <- f.buffer:
						f.buffer = nil
					case <-ctx.Done():
						return
					}
				}
				if st.frame == head {
					st.frame = -1
					break
				}
				st.frame = (st.frame + 1) % numFrames
				f = &b.frames[st.frame]
			}
			continue
		}

		f.add(c.buffer)
		if f.sum() {
			b.release(f, head)
			select {
			case out <- f.buffer:
				f.buffer = nil
			case <-ctx.Done():
				return
			}
		}
		next := (st.frame + 1) % numFrames
		if st.frame == head {
			b.frames[next].expected = b.frames[head].expected - b.frames[head].flushed
			b.frames[next].flushed = 0
			b.frames[next].length = 0
			b.frames[next].buffer = b.pool.Float64()
			head = next
		}
		st.frame = next
	}
}

func (b *Bus) release(f *frame, head int) {
	f.added, f.flushed = 0, 0
	for _, st := range b.inputs {
		if st.frame != -1 {
			st.sema.Release()
		}
	}
}

func (f *frame) add(in signal.Floating) {
	f.added++
	n := f.buffer.Len()
	if in.Len() < n {
		n = in.Len()
	}
	for i := 0; i < n; i++ {
		f.buffer.SetSample(i, f.buffer.Sample(i)+in.Sample(i))
	}
	if f.length < in.Len() {
		f.length = in.Len()
	}
}

func (f *frame) sum() bool {
	if f.added == 0 || f.added+f.flushed != f.expected {
		return false
	}
	if f.buffer.Len() != f.length {
		f.buffer = f.buffer.Slice(0, f.length/f.buffer.Channels())
	}
	for i := 0; i < f.buffer.Len(); i++ {
		f.buffer.SetSample(i, f.buffer.Sample(i)/float64(f.added))
	}
	return true
}

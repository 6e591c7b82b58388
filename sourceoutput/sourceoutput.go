// Package sourceoutput implements the capture-side stream (§4.3): a
// source output pulls the device's mix through a broadcast tap, runs
// it through a delay queue that bounds how far the stream may later
// rewind, and applies its own volume chain before handing chunks to
// its owner via Push.
package sourceoutput

import (
	"context"
	"fmt"

	"github.com/pipelined/device/capturebuffer"
	"github.com/pipelined/device/device"
	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/stream"
	"github.com/pipelined/device/volume"

	"pipelined.dev/signal"
)

// PushFunc delivers one dequeued, volume-applied chunk to whatever
// consumes this source output (a client connection, a recording
// sink). Per §4.3 step 1, if this is nil the stream drops data rather
// than blocking.
type PushFunc func(signal.Floating)

// SourceOutput is a capture-side stream attached to a source device.
type SourceOutput struct {
	stream.Base

	delay     *capturebuffer.Queue
	maxRewind int

	monitorOf      *device.Device // set if this output reads a sink's monitor
	directOnInput  *SinkInputBond
	push           PushFunc
	moving         func(dest *device.Device) error
	maxOutputs     int
}

// SinkInputBond is the minimal view of a sink input a direct-on-input
// bond needs (§3: "a weak reference to a sink input whose monitor path
// delivers chunks directly to this output"). The concrete sinkinput
// package satisfies it without sourceoutput importing that package.
type SinkInputBond interface {
	UnplayedBufferedLength() int
}

// New resolves a source output against src and inserts it into the
// source's ordered set (§3 "Lifecycle").
func New(index uint32, src *device.Device, spec sample.Spec, flags stream.Flags, maxOutputs int) (*SourceOutput, error) {
	if !spec.Valid() {
		return nil, fmt.Errorf("sourceoutput: %w: invalid sample spec", device.ErrInvalid)
	}
	o := &SourceOutput{
		Base:       stream.NewBase(index, spec, flags),
		delay:      capturebuffer.New(),
		maxOutputs: maxOutputs,
	}
	o.SetDevice(src)
	if err := src.Attach(o); err != nil {
		return nil, err
	}
	return o, nil
}

// SetPush wires the function chunks are delivered to.
func (o *SourceOutput) SetPush(fn PushFunc) { o.push = fn }

// SetMonitorOf marks this output as a sink's monitor source output and
// binds the direct-on-input it should prefer over the normal broadcast
// path, if any.
func (o *SourceOutput) SetMonitorOf(sink *device.Device, bond SinkInputBond) {
	o.monitorOf = sink
	o.directOnInput = bond
}

// SetMovingHook installs the implementor hook finish_move/fail_move
// invoke before committing or discarding a move.
func (o *SourceOutput) SetMovingHook(fn func(dest *device.Device) error) { o.moving = fn }

// Kill detaches this output from its device and marks it unlinked.
func (o *SourceOutput) Kill() {
	if d := o.Device(); d != nil {
		d.Detach(o)
	}
	o.SetDevice(nil)
	o.Cork(true)
}

// SetRequestedLatency records the stream's requested latency, reducing
// the effective delay-queue limit on the next Push.
func (o *SourceOutput) SetRequestedLatency(n int) {
	o.maxRewind = n
}

// Push implements §4.3's push contract: it appends chunk to the delay
// queue, computes the rewind limit (narrowed further for a monitor
// source whose underlying sink hasn't buffered enough to loop back
// safely), drains whatever now exceeds that limit, and hands each
// piece — muted, volume-applied, or as-is — to push.
func (o *SourceOutput) Push(chunk signal.Floating) {
	if o.Corked() || o.push == nil {
		return
	}
	o.delay.Push(chunk)

	limit := o.maxRewind
	if o.monitorOf != nil && o.directOnInput != nil {
		if unplayed := o.directOnInput.UnplayedBufferedLength(); unplayed < limit {
			limit = unplayed
		}
	}

	for _, piece := range o.delay.DrainExcess(limit) {
		o.applyAndPush(piece)
	}
}

func (o *SourceOutput) applyAndPush(piece signal.Floating) {
	if o.Mute() {
		silence(piece)
		o.push(piece)
		return
	}
	soft := o.SoftVolume()
	applyChannelVolume(piece, soft)
	o.push(piece)
}

func silence(buf signal.Floating) {
	for i := 0; i < buf.Len(); i++ {
		buf.SetSample(i, 0)
	}
}

// applyChannelVolume scales each channel of an interleaved buffer by
// its own linear gain in place.
func applyChannelVolume(buf signal.Floating, v volume.ChannelVolume) {
	if len(v) == 0 {
		return
	}
	channels := buf.Channels()
	frames := buf.Length()
	for f := 0; f < frames; f++ {
		for c := 0; c < channels && c < len(v); c++ {
			i := f*channels + c
			gain := float64(v[c]) / float64(volume.Norm)
			buf.SetSample(i, buf.Sample(i)*gain)
		}
	}
}

// StartMove implements §4.3's start_move: detaches from the current
// device, recomputing its flat volume without this output, and clears
// the back-edge.
func (o *SourceOutput) StartMove(ctx context.Context) error {
	d := o.Device()
	if d == nil {
		return fmt.Errorf("sourceoutput: %w: not attached to a device", device.ErrBadState)
	}
	d.Detach(o)
	if d.IsFlatVolume() {
		if err := d.SetVolume(ctx, nil, false, false); err != nil {
			return err
		}
	}
	o.SetDevice(nil)
	return nil
}

// MayMoveTo reports whether dest could accept this output without
// exceeding its configured output cap.
func (o *SourceOutput) MayMoveTo(dest *device.Device) bool {
	if o.maxOutputs <= 0 {
		return true
	}
	return len(dest.Streams()) < o.maxOutputs
}

// FinishMove implements §4.3's finish_move: rejects if dest is full,
// otherwise rebinds the stream and runs the volume-on-move recursion.
// volume_factor_device is left as it was; it is not remapped to dest's
// channel map.
func (o *SourceOutput) FinishMove(ctx context.Context, dest *device.Device, save bool) error {
	if !o.MayMoveTo(dest) {
		return fmt.Errorf("sourceoutput: %w: destination has too many outputs", device.ErrTooLarge)
	}
	if o.moving != nil {
		if err := o.moving(dest); err != nil {
			return err
		}
	}
	o.SetDevice(dest)
	if err := dest.Attach(o); err != nil {
		return err
	}
	o.ApplyMoveVolume(dest)
	if dest.IsFlatVolume() {
		if err := dest.SetVolume(ctx, nil, false, save); err != nil {
			return err
		}
	}
	return nil
}

// FailMove implements §4.3's fail_move: runs the moving hook with a
// nil destination, then kills the output.
func (o *SourceOutput) FailMove() {
	if o.moving != nil {
		o.moving(nil)
	}
	o.Kill()
}

// MoveTo is the one-call convenience combining StartMove and
// FinishMove.
func (o *SourceOutput) MoveTo(ctx context.Context, dest *device.Device, save bool) error {
	if err := o.StartMove(ctx); err != nil {
		return err
	}
	if err := o.FinishMove(ctx, dest, save); err != nil {
		o.FailMove()
		return err
	}
	return nil
}

// ApplyMoveVolumeFromBase lets stream.Base's move-volume recursion
// reach sibling source outputs sharing the same origin device.
func (o *SourceOutput) ApplyMoveVolumeFromBase(dest *device.Device) {
	o.ApplyMoveVolume(dest)
}

// Package sinkinput implements the playback-side stream (§4.4): pull
// driven, symmetric to sourceoutput. A sink input fills its render
// queue on demand by pulling from its implementor's pop, applies its
// own volume chain, and exposes a peek/drop/rewind surface the mixer
// bus drains every IO tick.
package sinkinput

import (
	"context"
	"fmt"

	"github.com/pipelined/device/device"
	"github.com/pipelined/device/renderqueue"
	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/stream"
	"github.com/pipelined/device/volume"

	"pipelined.dev/signal"
)

// PopFunc pulls ilength samples of fresh data from whatever feeds this
// sink input (a decoder, a network jitter buffer). An error is treated
// as an underrun (§4.4 step "If corked or pop returns an error").
type PopFunc func(ilength int) (signal.Floating, error)

// RewriteDropAll is the rewrite_nbytes sentinel meaning "discard every
// buffered sample" (§4.4 step 2).
const RewriteDropAll = -1

// SinkInput is a playback-side stream attached to a sink device.
type SinkInput struct {
	stream.Base

	render       *renderqueue.Queue
	pop          PopFunc
	maxBlockSize int

	playingFor  int
	underrunFor int
	drained     bool

	rewriteNBytes    int
	rewriteFlush     bool
	dontRewindRender bool

	moving          func(dest *device.Device) error
	processUnderrun func() bool

	syncNext, syncPrev *SinkInput
}

// New resolves a sink input against sink and inserts it into the
// sink's ordered set.
func New(index uint32, sink *device.Device, spec sample.Spec, flags stream.Flags, maxBlockSize int) (*SinkInput, error) {
	if !spec.Valid() {
		return nil, fmt.Errorf("sinkinput: %w: invalid sample spec", device.ErrInvalid)
	}
	spec = spec.WithDefaultMap()
	i := &SinkInput{
		Base:         stream.NewBase(index, spec, flags),
		render:       renderqueue.New(),
		maxBlockSize: maxBlockSize,
	}
	i.SetDevice(sink)
	if err := sink.Attach(i); err != nil {
		return nil, err
	}
	return i, nil
}

// SetPop wires the function that produces fresh samples.
func (i *SinkInput) SetPop(fn PopFunc) { i.pop = fn }

// SetProcessUnderrun wires the implementor hook ProcessUnderrun relies
// on to confirm all valid data has actually been played.
func (i *SinkInput) SetProcessUnderrun(fn func() bool) { i.processUnderrun = fn }

// SetMovingHook installs the implementor hook finish_move/fail_move
// invoke before committing or discarding a move.
func (i *SinkInput) SetMovingHook(fn func(dest *device.Device) error) { i.moving = fn }

// Kill detaches this input from its device.
func (i *SinkInput) Kill() {
	if d := i.Device(); d != nil {
		d.Detach(i)
	}
	i.SetDevice(nil)
	i.Cork(true)
}

// fill pulls from pop until the render queue holds at least slength
// readable samples, or an underrun occurs (§4.4 "Peek contract").
func (i *SinkInput) fill(slength int) {
	for i.render.Readable() < slength {
		if i.Corked() || i.pop == nil {
			i.underrun(slength)
			return
		}
		ilength := slength
		if i.maxBlockSize > 0 && ilength > i.maxBlockSize {
			ilength = i.maxBlockSize
		}
		tchunk, err := i.pop(ilength)
		if err != nil {
			i.underrun(slength)
			return
		}
		i.playingFor += tchunk.Length()
		i.underrunFor = 0
		applySoftVolume(tchunk, i.SoftVolume(), i.Mute())
		i.render.Append(tchunk)
	}
}

func (i *SinkInput) underrun(slength int) {
	i.render.Drop(slength)
	i.playingFor = 0
	i.underrunFor += slength
	i.drained = true
}

func applySoftVolume(buf signal.Floating, v volume.ChannelVolume, mute bool) {
	if mute {
		for s := 0; s < buf.Len(); s++ {
			buf.SetSample(s, 0)
		}
		return
	}
	if len(v) == 0 {
		return
	}
	channels := buf.Channels()
	frames := buf.Length()
	for f := 0; f < frames; f++ {
		for c := 0; c < channels && c < len(v); c++ {
			idx := f*channels + c
			gain := float64(v[c]) / float64(volume.Norm)
			buf.SetSample(idx, buf.Sample(idx)*gain)
		}
	}
}

// VolumeKind reports what the returned volume from Peek represents,
// per §4.4: the device side may need to apply it, or it may already be
// baked in.
type VolumeKind int

const (
	// VolumeZeroed means the volume was already applied (channel maps
	// differ between stream and device).
	VolumeZeroed VolumeKind = iota
	// VolumeMuted means the channel maps are equal but the stream is
	// soft-muted; the returned volume is all-Muted.
	VolumeMuted
	// VolumeSoft means channel maps are equal and unmuted; the
	// returned soft_volume should be applied by the device's mixing
	// stage.
	VolumeSoft
)

// Peek implements §4.4's peek contract: it fills the render queue to
// slength, reads up to maxBlockSize samples from it, and reports how
// the caller should interpret the accompanying volume.
func (i *SinkInput) Peek(slength int) (signal.Floating, volume.ChannelVolume, VolumeKind) {
	i.fill(slength)

	out := slength
	if i.maxBlockSize > 0 && out > i.maxBlockSize {
		out = i.maxBlockSize
	}
	buf := signal.Allocator{Channels: i.Spec().Channels, Capacity: out, Length: out}.Float64()
	n := i.render.Read(buf)
	if n < out {
		buf = buf.Slice(0, n)
	}

	deviceMap := sample.Map(nil)
	if d := i.Device(); d != nil {
		deviceMap = d.Spec().Map
	}
	if !i.ChannelMap().Equal(deviceMap) {
		return buf, nil, VolumeZeroed
	}
	if i.Mute() {
		return buf, volume.MuteAll(len(i.ChannelMap())), VolumeMuted
	}
	return buf, i.SoftVolume(), VolumeSoft
}

// Drop implements §4.4's drop: it frees up to nbytes (samples, in this
// abstraction) of already-read data from the render queue. It does not
// move the read cursor; Peek's read has already advanced it.
func (i *SinkInput) Drop(nbytes int) {
	i.render.Drop(nbytes)
}

// ProcessUnderrun implements §4.4's process-underrun: true iff the
// render queue is empty and the implementor confirms all valid data
// has played; the queue is then silenced.
func (i *SinkInput) ProcessUnderrun() bool {
	if i.render.Readable() != 0 {
		return false
	}
	if i.processUnderrun == nil || !i.processUnderrun() {
		return false
	}
	i.render.Flush()
	return true
}

// RequestRewind implements §4.4's request_rewind: merges with any
// outstanding request, caps at playing_for, and records it for the
// next ProcessRewind.
func (i *SinkInput) RequestRewind(nbytes int, rewrite, flush, dontRewindRender bool) {
	if !rewrite {
		i.dontRewindRender = i.dontRewindRender || dontRewindRender
		return
	}
	want := nbytes
	if want > i.playingFor {
		want = i.playingFor
	}
	if i.rewriteNBytes != RewriteDropAll {
		if want > i.rewriteNBytes {
			i.rewriteNBytes = want
		}
	}
	if nbytes < 0 {
		i.rewriteNBytes = RewriteDropAll
	}
	i.rewriteFlush = i.rewriteFlush || flush
	i.dontRewindRender = i.dontRewindRender || dontRewindRender
}

// ProcessRewind implements §4.4's process_rewind (§4.4 steps 1-3): it
// rewinds the render queue, applies any pending rewrite by asking the
// implementor to reproduce that many samples again, and clears the
// rewrite bookkeeping.
func (i *SinkInput) ProcessRewind(nbytes int) {
	if !i.dontRewindRender && nbytes > 0 {
		i.render.Rewind(nbytes)
	}

	if i.rewriteNBytes != 0 {
		// The implementor's own process_rewind (a pop-side seek) is
		// the caller's concern, since PopFunc has no seek primitive;
		// this queue-side rewind is what keeps subsequent peeks
		// consistent with already-rendered data.
		amount := nbytes + i.render.Buffered()
		if i.rewriteNBytes != RewriteDropAll && amount > i.rewriteNBytes {
			amount = i.rewriteNBytes
		}
		i.render.Rewind(amount)
		if i.rewriteFlush {
			i.render.Flush()
		}
	}

	i.rewriteNBytes = 0
	i.rewriteFlush = false
	i.dontRewindRender = false
}

// JoinSyncGroup links this input into a doubly-linked sync chain that
// must start/stop together (§3 "Sync group"); moving a sync member is
// forbidden by MayMoveTo once joined.
func (i *SinkInput) JoinSyncGroup(other *SinkInput) {
	i.syncNext = other
	other.syncPrev = i
}

// InSyncGroup reports whether this input is linked into a sync chain.
func (i *SinkInput) InSyncGroup() bool {
	return i.syncNext != nil || i.syncPrev != nil
}

// StartMove implements §4.4's start_move (symmetric to the source
// output, §4.3): detaches from the current device, recomputing flat
// volume without this input.
func (i *SinkInput) StartMove(ctx context.Context) error {
	if i.InSyncGroup() {
		return fmt.Errorf("sinkinput: %w: cannot move a sync-group member", device.ErrNotSupported)
	}
	d := i.Device()
	if d == nil {
		return fmt.Errorf("sinkinput: %w: not attached to a device", device.ErrBadState)
	}
	d.Detach(i)
	if d.IsFlatVolume() {
		if err := d.SetVolume(ctx, nil, false, false); err != nil {
			return err
		}
	}
	i.SetDevice(nil)
	return nil
}

// MayMoveTo reports whether this input could move to dest.
func (i *SinkInput) MayMoveTo(dest *device.Device) bool {
	return !i.InSyncGroup()
}

// FinishMove rebinds the stream to dest and runs the volume-on-move
// recursion.
func (i *SinkInput) FinishMove(ctx context.Context, dest *device.Device, save bool) error {
	if !i.MayMoveTo(dest) {
		return fmt.Errorf("sinkinput: %w: destination rejected the move", device.ErrNotSupported)
	}
	if i.moving != nil {
		if err := i.moving(dest); err != nil {
			return err
		}
	}
	i.SetDevice(dest)
	if err := dest.Attach(i); err != nil {
		return err
	}
	i.ApplyMoveVolume(dest)
	if dest.IsFlatVolume() {
		if err := dest.SetVolume(ctx, nil, false, save); err != nil {
			return err
		}
	}
	return nil
}

// FailMove runs the moving hook with a nil destination, then kills the
// input.
func (i *SinkInput) FailMove() {
	if i.moving != nil {
		i.moving(nil)
	}
	i.Kill()
}

// MoveTo combines StartMove and FinishMove.
func (i *SinkInput) MoveTo(ctx context.Context, dest *device.Device, save bool) error {
	if err := i.StartMove(ctx); err != nil {
		return err
	}
	if err := i.FinishMove(ctx, dest, save); err != nil {
		i.FailMove()
		return err
	}
	return nil
}

// ApplyMoveVolumeFromBase lets stream.Base's move-volume recursion
// reach sibling sink inputs sharing the same origin device.
func (i *SinkInput) ApplyMoveVolumeFromBase(dest *device.Device) {
	i.ApplyMoveVolume(dest)
}

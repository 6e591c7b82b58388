package device

import (
	"context"
	"fmt"

	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/volume"
)

// SetVolume implements §4.1's set_volume: it walks to the sharing root,
// applies v (interpreted relative to the root's channel map) or, if v
// is nil, recomputes the root's volume from its attached streams in
// flat mode, then propagates reference/real/soft volumes down the
// sharing tree and to every attached stream.
func (d *Device) SetVolume(ctx context.Context, v volume.ChannelVolume, sendMsg, save bool) error {
	d.mu.Lock()
	root := d.rootLocked()
	if root != d {
		d.mu.Unlock()
		return root.SetVolume(ctx, v, sendMsg, save)
	}

	if v != nil {
		if !v.CompatibleWith(d.spec) && len(v) != 1 {
			d.mu.Unlock()
			return fmt.Errorf("device: %w: volume channel count mismatch", ErrInvalid)
		}
		d.referenceVolume = broadcastMono(v, d.spec.Channels)
		if !d.flags.has(FlagFlatVolume) {
			d.realVolume = append(volume.ChannelVolume(nil), d.referenceVolume...)
		}
	}

	if d.flags.has(FlagFlatVolume) {
		d.recomputeFlatLocked()
	}
	d.saveVolume = save
	children := d.sharingChildrenLocked()
	streams := append([]AttachedStream(nil), d.streams...)
	realVolume := append(volume.ChannelVolume(nil), d.realVolume...)
	refVolume := append(volume.ChannelVolume(nil), d.referenceVolume...)
	rootMap := d.spec.Map
	deferred := d.flags.has(FlagDeferredVolume)
	driverSet := d.driver.SetVolume
	ioQueue := d.ioQueue
	d.mu.Unlock()

	for _, child := range children {
		child.applySharedVolume(realVolume, rootMap)
	}
	d.propagateToStreams(streams, realVolume, refVolume, rootMap)

	if driverSet != nil {
		if deferred {
			d.scheduleHardwareVolume(ctx, realVolume)
		} else {
			// Non-deferred hardware volume is still an IO-thread call
			// (§5's list includes "set volume"); route it through the
			// same rendezvous set_port uses rather than calling the
			// driver directly from the control thread.
			reply, err := ioQueue.Send(ctx, ioSetVolume, realVolume)
			if err != nil {
				return err
			}
			if replyErr, _ := reply.(error); replyErr != nil {
				return replyErr
			}
		}
	}
	_ = sendMsg // hook point for an external notification collaborator; no-op here
	return nil
}

// broadcastMono expands a single-channel volume to n channels (mono
// volumes broadcast, §4.1).
func broadcastMono(v volume.ChannelVolume, n int) volume.ChannelVolume {
	if len(v) == n {
		out := make(volume.ChannelVolume, n)
		copy(out, v)
		return out
	}
	out := make(volume.ChannelVolume, n)
	for i := range out {
		out[i] = v[0]
	}
	return out
}

// recomputeFlatLocked implements the flat-volume algorithm's step 1
// (§4.1): real_volume becomes the max, over attached streams, of each
// stream's volume remapped minimum-impact into the root's channel map.
// d.mu must be held.
func (d *Device) recomputeFlatLocked() {
	if len(d.streams) == 0 {
		return
	}
	var result volume.ChannelVolume
	for _, s := range d.streams {
		remapped := volume.Remap(s.Volume(), s.ChannelMap(), d.spec.Map, d.realVolume)
		if result == nil {
			result = remapped
			continue
		}
		result = volume.ElementWiseMax(result, remapped)
	}
	d.realVolume = result
}

// sharingChildrenLocked returns the devices registered through
// AttachSharingChild as sharing d's volume.
func (d *Device) sharingChildrenLocked() []*Device {
	return d.children
}

// AttachSharingChild registers child as sharing d's volume. New calls
// it for every device constructed with ShareRoot set to d.
func (d *Device) AttachSharingChild(child *Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.children = append(d.children, child)
}

// applySharedVolume propagates a root's real volume down to a sharing
// child (§4.1 step 2): remapped to the child's channel map, then
// folded through the child's own streams.
func (d *Device) applySharedVolume(rootVolume volume.ChannelVolume, rootMap sample.Map) {
	d.mu.Lock()
	d.realVolume = volume.Remap(rootVolume, rootMap, d.spec.Map, d.realVolume)
	d.referenceVolume = append(volume.ChannelVolume(nil), d.realVolume...)
	streams := append([]AttachedStream(nil), d.streams...)
	real := append(volume.ChannelVolume(nil), d.realVolume...)
	ref := append(volume.ChannelVolume(nil), d.referenceVolume...)
	childMap := d.spec.Map
	children := d.sharingChildrenLocked()
	d.mu.Unlock()

	for _, child := range children {
		child.applySharedVolume(real, childMap)
	}
	d.propagateToStreams(streams, real, ref, childMap)
}

// propagateToStreams implements flat-volume steps 3-4 and the
// non-flat rule (§4.1): per-stream real_ratio/soft_volume and
// reference_ratio, derived relative to the root/child volume just
// computed.
func (d *Device) propagateToStreams(streams []AttachedStream, realVolume, refVolume volume.ChannelVolume, rootMap sample.Map) {
	flat := d.flags.has(FlagFlatVolume)
	for _, s := range streams {
		sv := s.Volume()
		smap := s.ChannelMap()
		remappedReal := volume.Remap(sv, smap, rootMap, realVolume)
		remappedRef := volume.Remap(sv, smap, rootMap, refVolume)

		if flat {
			if origin := s.OriginDevice(); origin != nil {
				s.SetRealRatio(volume.NormVolume(len(remappedReal)))
				s.SetSoftVolume(chanVolumeOf(s.VolumeFactor(), len(remappedReal)))
				s.SetReferenceRatio(volume.Divide(remappedRef, refVolume))
				continue
			}
			realRatio := volume.Divide(remappedReal, realVolume)
			s.SetRealRatio(realRatio)
			s.SetSoftVolume(volume.Multiply(realRatio, chanVolumeOf(s.VolumeFactor(), len(realRatio))))
		} else {
			s.SetRealRatio(remappedReal)
			s.SetSoftVolume(volume.Multiply(remappedReal, chanVolumeOf(s.VolumeFactor(), len(remappedReal))))
		}
		s.SetReferenceRatio(volume.Divide(remappedRef, refVolume))
	}
}

func chanVolumeOf(l volume.Linear, n int) volume.ChannelVolume {
	out := make(volume.ChannelVolume, n)
	for i := range out {
		out[i] = l
	}
	return out
}

// GetVolume implements §4.1's get_volume: optionally forces a hardware
// readback through the driver (deferred volume routes this via the
// pending-change queue's caller, since the actual IO-thread hop is the
// driver's concern) and returns the device's current real volume.
func (d *Device) GetVolume(ctx context.Context, forceRefresh bool) (volume.ChannelVolume, error) {
	d.mu.Lock()
	getVol := d.driver.GetVolume
	d.mu.Unlock()

	if forceRefresh && getVol != nil {
		read, err := getVol()
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.realVolume = read
		out := append(volume.ChannelVolume(nil), d.realVolume...)
		d.mu.Unlock()
		return out, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append(volume.ChannelVolume(nil), d.realVolume...), nil
}

// SetMute implements §4.1's set_mute.
func (d *Device) SetMute(ctx context.Context, mute bool, save bool) error {
	d.mu.Lock()
	if d.mute == mute {
		d.mu.Unlock()
		return nil
	}
	d.mute = mute
	d.saveMute = save
	hasSetMute := d.driver.SetMute != nil
	ioQueue := d.ioQueue
	d.mu.Unlock()

	if !hasSetMute {
		return nil
	}
	reply, err := ioQueue.Send(ctx, ioSetMute, mute)
	if err != nil {
		return err
	}
	if replyErr, _ := reply.(error); replyErr != nil {
		return replyErr
	}
	return nil
}

// GetMute implements §4.1's get_mute.
func (d *Device) GetMute() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mute
}

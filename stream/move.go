package stream

import (
	"github.com/pipelined/device/device"
	"github.com/pipelined/device/volume"
)

// moveVolumeRecursor is implemented by the concrete source output and
// sink input types so ApplyMoveVolume can recurse into a sharing
// origin's other streams without stream importing either package
// (§4.3 "Volume on move").
type moveVolumeRecursor interface {
	ApplyMoveVolumeFromBase(dest *device.Device)
}

// ApplyMoveVolume implements §4.3's volume-on-move recursion, run once
// finish_move has rebound this stream to dest.
func (b *Base) ApplyMoveVolume(dest *device.Device) {
	flat := dest.IsFlatVolume()

	b.mu.Lock()
	origin := b.origin
	refRatio := append(volume.ChannelVolume(nil), b.referenceRatio...)
	volFactor := b.volumeFactor
	b.mu.Unlock()

	if origin != nil {
		if flat {
			n := len(refRatio)
			b.SetRealRatio(volume.NormVolume(n))
			b.SetSoftVolume(chanVolumeOf(volFactor, n))
		} else {
			b.mu.Lock()
			b.volume = nil
			b.referenceRatio = nil
			b.mu.Unlock()
		}

		// The origin device's own reference/real volume becoming the
		// root's (remapped) is the registry's responsibility, since it
		// drives origin's SetVolume directly; here we only recurse
		// into the origin's other streams, per spec.
		for _, sibling := range origin.Streams() {
			if sibling.Index() == b.index {
				continue
			}
			if r, ok := sibling.(moveVolumeRecursor); ok {
				r.ApplyMoveVolumeFromBase(dest)
			}
		}
		return
	}

	destRef := dest.ReferenceVolume()
	destMap := dest.Spec().Map
	b.mu.Lock()
	myMap := b.spec.Map
	b.mu.Unlock()

	if flat {
		newVolume := volume.Remap(refRatio, myMap, destMap, nil)
		newVolume = volume.Multiply(newVolume, destRef)
		b.SetVolume(newVolume)
	} else {
		b.SetVolume(refRatio)
		b.SetRealRatio(refRatio)
		n := len(refRatio)
		b.SetSoftVolume(volume.Multiply(refRatio, chanVolumeOf(volFactor, n)))
	}
}

func chanVolumeOf(l volume.Linear, n int) volume.ChannelVolume {
	out := make(volume.ChannelVolume, n)
	for i := range out {
		out[i] = l
	}
	return out
}

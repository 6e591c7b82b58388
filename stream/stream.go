// Package stream implements the state shared by a source output and a
// sink input (§3 "Stream (source output / sink input)" and §4.3/§4.4):
// identity, format, the six volume fields (volume, volume_factor,
// volume_factor_device, reference_ratio, real_ratio, soft_volume) plus
// a keyed map of named volume-factor contributions, flags, mute/save
// flags, the cork/run state machine, and the volume-on-move recursion
// that §4.3 describes once for both directions.
package stream

import (
	"sync"

	"github.com/pipelined/device/device"
	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/volume"
)

// Flags are the per-stream creation-time flags from §3.
type Flags uint32

const (
	FlagDontMove Flags = 1 << iota
	FlagDontInhibitAutoSuspend
	FlagKillOnSuspend
	FlagStartCorked
	FlagVariableRate
	FlagNoRemap
	FlagNoRemix
	FlagFixFormat
	FlagFixRate
	FlagFixChannels
	FlagPassthrough
	FlagNoCreateOnSuspend
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// State is the stream lifecycle state (§3).
type State int

const (
	StateInit State = iota
	StateRunning
	StateCorked
	StateDrained
	StateUnlinked
)

// Base is the shared stream state both source outputs and sink inputs
// embed.
type Base struct {
	mu sync.Mutex

	index uint32
	spec  sample.Spec

	device *device.Device
	origin *device.Device // set only when this stream's volume sharing originates elsewhere

	flags Flags
	state State

	mute       bool
	saveVolume bool
	saveMute   bool

	volume             volume.ChannelVolume
	volumeFactor       volume.Linear
	volumeFactorDevice volume.ChannelVolume
	volumeFactorNamed  map[string]volume.Linear

	referenceRatio volume.ChannelVolume
	realRatio      volume.ChannelVolume
	softVolume     volume.ChannelVolume

	requestedLatency int
}

// NewBase constructs a stream's shared state in StateRunning (or
// StateCorked with FlagStartCorked) with unity volume and volume
// factor, matching a stream freshly resolved by a new_data builder
// (§3 "Lifecycle").
func NewBase(index uint32, spec sample.Spec, flags Flags) Base {
	state := StateRunning
	if flags.Has(FlagStartCorked) {
		state = StateCorked
	}
	return Base{
		index:              index,
		spec:               spec,
		flags:              flags,
		state:              state,
		volume:             volume.NormVolume(spec.Channels),
		volumeFactor:       volume.Norm,
		volumeFactorDevice: volume.NormVolume(spec.Channels),
		volumeFactorNamed:  map[string]volume.Linear{},
		referenceRatio:     volume.NormVolume(spec.Channels),
		realRatio:          volume.NormVolume(spec.Channels),
		softVolume:         volume.NormVolume(spec.Channels),
	}
}

// Index satisfies device.AttachedStream.
func (b *Base) Index() uint32 { return b.index }

// Volume satisfies device.AttachedStream: the user-visible volume.
func (b *Base) Volume() volume.ChannelVolume {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(volume.ChannelVolume(nil), b.volume...)
}

// SetVolume sets the user-visible volume directly (used by set_volume
// before the owning device's flat-volume recompute).
func (b *Base) SetVolume(v volume.ChannelVolume) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volume = v
}

// ChannelMap satisfies device.AttachedStream.
func (b *Base) ChannelMap() sample.Map {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spec.Map
}

// VolumeFactor satisfies device.AttachedStream: the combined scalar
// factor, folding every named contribution into the base factor, the
// way a sink input's keyed volume-factor layers are required to
// multiply into `volume_factor` (§3).
func (b *Base) VolumeFactor() volume.Linear {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := b.volumeFactor
	for _, named := range b.volumeFactorNamed {
		f = volume.Linear(uint64(f) * uint64(named) / uint64(volume.Norm))
	}
	return f
}

// SetVolumeFactor sets the base (unkeyed) volume factor.
func (b *Base) SetVolumeFactor(f volume.Linear) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volumeFactor = f
}

// SetNamedVolumeFactor adds or updates a keyed volume-factor layer
// (§3: "a keyed map of named volume-factor contributions ... allows
// named layers to be added/removed by key").
func (b *Base) SetNamedVolumeFactor(key string, f volume.Linear) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volumeFactorNamed[key] = f
}

// RemoveNamedVolumeFactor removes a keyed volume-factor layer.
func (b *Base) RemoveNamedVolumeFactor(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.volumeFactorNamed, key)
}

// SetRealRatio satisfies device.AttachedStream.
func (b *Base) SetRealRatio(v volume.ChannelVolume) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.realRatio = v
}

// SetReferenceRatio satisfies device.AttachedStream.
func (b *Base) SetReferenceRatio(v volume.ChannelVolume) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.referenceRatio = v
}

// RealRatio returns the stream's last-computed real_ratio (§3): the
// stream's contribution relative to the device's real volume.
func (b *Base) RealRatio() volume.ChannelVolume {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(volume.ChannelVolume(nil), b.realRatio...)
}

// ReferenceRatio returns the stream's last-computed reference_ratio.
func (b *Base) ReferenceRatio() volume.ChannelVolume {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(volume.ChannelVolume(nil), b.referenceRatio...)
}

// SetSoftVolume satisfies device.AttachedStream.
func (b *Base) SetSoftVolume(v volume.ChannelVolume) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.softVolume = v
}

// SoftVolume returns the residual software gain the IO path must still
// apply (§3).
func (b *Base) SoftVolume() volume.ChannelVolume {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(volume.ChannelVolume(nil), b.softVolume...)
}

// OriginDevice satisfies device.AttachedStream.
func (b *Base) OriginDevice() *device.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.origin
}

// SetOriginDevice marks this stream as sharing volume from origin
// (used when the stream's own device shares volume with a master
// elsewhere in the tree).
func (b *Base) SetOriginDevice(origin *device.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.origin = origin
}

// Corked satisfies device.AttachedStream.
func (b *Base) Corked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateCorked
}

// Cork sets the stream's cork state (§3's INIT -> RUNNING|CORKED
// machine).
func (b *Base) Cork(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateUnlinked {
		return
	}
	if on {
		b.state = StateCorked
	} else {
		b.state = StateRunning
	}
}

// Suspend satisfies device.AttachedStream: called by the owning
// device when it opens/closes so streams flagged KillOnSuspend can be
// torn down by the caller (the core only records the transition;
// killing is the registry's concern, matching §4.1's note that
// "streams with KILL_ON_SUSPEND are killed" by whatever drives the
// device's suspend).
func (b *Base) Suspend(suspended bool) {
	// IO-thread resync point (e.g. re-arm a resampler) is left to the
	// embedding type; Base only tracks corked/running state, which is
	// independent of device suspension.
	_ = suspended
}

// Device returns the stream's current device, or nil while moving.
func (b *Base) Device() *device.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device
}

// SetDevice rebinds the stream to a new device (or nil, mid-move).
func (b *Base) SetDevice(d *device.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.device = d
}

// Spec returns the stream's own sample spec.
func (b *Base) Spec() sample.Spec {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spec
}

// Flags returns the stream's creation-time flags.
func (b *Base) Flags() Flags { return b.flags }

// Mute/SetMute are symmetric to the device's (§4.1 "set_mute/get_mute:
// symmetric").
func (b *Base) Mute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mute
}

func (b *Base) SetMute(mute, save bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mute = mute
	b.saveMute = save
}

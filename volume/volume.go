// Package volume implements the channel-volume algebra shared by devices
// and streams: linear gain vectors, their dB and hardware-integer
// representations, and the channel-map remapping rules used when a
// stream's volume is folded into a device with a different map.
package volume

import (
	"fmt"
	"math"

	"github.com/pipelined/device/sample"
)

// Linear gain constants, expressed in the fixed-point convention used
// throughout the core: 0 is silence, Norm is unity gain, Max is roughly
// twice unity (the loudest a channel may be driven).
const (
	Muted Linear = 0
	Norm  Linear = 0x10000
	Max   Linear = 2*Norm + Norm/2
)

// Linear is a single channel's gain, 0 == Muted, Norm == 0dB.
type Linear uint32

// Clamp restricts l to [Muted, Max].
func (l Linear) Clamp() Linear {
	if l > Max {
		return Max
	}
	return l
}

// IsMuted reports whether the channel is silent.
func (l Linear) IsMuted() bool {
	return l == Muted
}

// DB converts a linear gain to decibels. Muted maps to negative
// infinity, matching the reference convention that 0 gain has no finite
// dB representation.
func (l Linear) DB() float64 {
	if l == Muted {
		return math.Inf(-1)
	}
	return 20 * math.Log10(float64(l)/float64(Norm))
}

// FromDB converts a decibel value to a linear gain. Values at or below
// -inf (or below the practical floor of -200dB) map to Muted.
func FromDB(db float64) Linear {
	return FromDBPrecise(db).Clamp()
}

// FromDBPrecise does the conversion for FromDB: 10^(db/20) times Norm,
// limited to Max, with -inf and values at or below -200dB mapping to
// Muted.
func FromDBPrecise(db float64) Linear {
	if math.IsInf(db, -1) || db <= -200 {
		return Muted
	}
	v := math.Pow(10, db/20) * float64(Norm)
	if v < 0 {
		v = 0
	}
	if v > float64(Max) {
		v = float64(Max)
	}
	return Linear(v)
}

// HWRange is the integer step range a hardware volume control supports.
type HWRange struct {
	Min, Max int
}

// ToHW maps a linear gain onto a hardware integer step within r, linearly
// interpolating between Muted->r.Min and Norm->somewhere inside the
// range; callers with a dB-fix table should use DBFix.StepAtDB instead,
// since raw hardware steps are rarely linear in gain.
func (r HWRange) ToHW(l Linear) int {
	if r.Max <= r.Min {
		return r.Min
	}
	frac := float64(l) / float64(Max)
	step := r.Min + int(frac*float64(r.Max-r.Min)+0.5)
	if step < r.Min {
		step = r.Min
	}
	if step > r.Max {
		step = r.Max
	}
	return step
}

// FromHW is the inverse of ToHW.
func (r HWRange) FromHW(step int) Linear {
	if r.Max <= r.Min {
		return Muted
	}
	frac := float64(step-r.Min) / float64(r.Max-r.Min)
	return Linear(frac * float64(Max)).Clamp()
}

// ChannelVolume is a per-channel array of linear gains, one per channel
// of a sample spec. A volume is compatible with a spec iff the channel
// counts match (§3).
type ChannelVolume []Linear

// NormVolume returns a channel volume of n channels, each set to Norm.
func NormVolume(n int) ChannelVolume {
	cv := make(ChannelVolume, n)
	for i := range cv {
		cv[i] = Norm
	}
	return cv
}

// MuteAll returns a channel volume of n channels, each muted.
func MuteAll(n int) ChannelVolume {
	return make(ChannelVolume, n)
}

// CompatibleWith reports whether cv can be applied to a buffer of the
// given spec: the channel counts must match.
func (cv ChannelVolume) CompatibleWith(spec sample.Spec) bool {
	return len(cv) == spec.Channels
}

// IsMuted reports whether every channel is silent.
func (cv ChannelVolume) IsMuted() bool {
	for _, l := range cv {
		if l != Muted {
			return false
		}
	}
	return true
}

// ElementWiseMax returns the componentwise maximum of a and b. Panics if
// the lengths differ; callers must remap first.
func ElementWiseMax(a, b ChannelVolume) ChannelVolume {
	if len(a) != len(b) {
		panic(fmt.Sprintf("volume: incompatible channel counts %d/%d", len(a), len(b)))
	}
	out := make(ChannelVolume, len(a))
	for i := range a {
		if a[i] > b[i] {
			out[i] = a[i]
		} else {
			out[i] = b[i]
		}
	}
	return out
}

// Scale multiplies every channel of cv by a single linear factor,
// computed relative to Norm (Norm is the identity scale).
func (cv ChannelVolume) Scale(by Linear) ChannelVolume {
	out := make(ChannelVolume, len(cv))
	for i, l := range cv {
		out[i] = Linear(uint64(l) * uint64(by) / uint64(Norm))
	}
	return out
}

// Divide computes the per-channel ratio cv[i]/den[i], expressed as a
// Linear where Norm means "no change". Channels where den is muted are
// left at Norm, matching the "skip muted channels" rule from the flat
// volume algorithm (§4.1 step 4).
func Divide(cv, den ChannelVolume) ChannelVolume {
	out := make(ChannelVolume, len(cv))
	for i := range cv {
		if i >= len(den) || den[i] == Muted {
			out[i] = Norm
			continue
		}
		out[i] = Linear(uint64(cv[i]) * uint64(Norm) / uint64(den[i]))
	}
	return out
}

// Multiply computes the per-channel product cv[i]*factor[i]/Norm, the
// inverse of Divide; used to recombine a ratio with a volume.
func Multiply(cv, factor ChannelVolume) ChannelVolume {
	out := make(ChannelVolume, len(cv))
	for i := range cv {
		f := Linear(Norm)
		if i < len(factor) {
			f = factor[i]
		}
		out[i] = Linear(uint64(cv[i]) * uint64(f) / uint64(Norm))
	}
	return out
}

// MaxChannel returns the loudest channel in cv, or Muted for an empty
// vector.
func (cv ChannelVolume) MaxChannel() Linear {
	var max Linear
	for _, l := range cv {
		if l > max {
			max = l
		}
	}
	return max
}

// Remap implements the "minimum-impact" remap rule from §4.1: folding a
// stream volume defined over fromMap into a device volume defined over
// toMap. If template (the device's current volume, same length as
// toMap) remapped back to fromMap reproduces cv exactly, template is
// returned unchanged (no impact on channels the stream doesn't touch).
// Otherwise every channel of toMap is set uniformly to cv's loudest
// channel, so that a change to one stream channel cannot leak into
// unrelated device channels.
func Remap(cv ChannelVolume, fromMap sample.Map, toMap sample.Map, template ChannelVolume) ChannelVolume {
	if len(fromMap) == len(toMap) && fromMap.Equal(toMap) {
		out := make(ChannelVolume, len(cv))
		copy(out, cv)
		return out
	}
	if template != nil && len(template) == len(toMap) {
		if reverseMatches(template, toMap, cv, fromMap) {
			out := make(ChannelVolume, len(template))
			copy(out, template)
			return out
		}
	}
	uniform := cv.MaxChannel()
	out := make(ChannelVolume, len(toMap))
	for i := range out {
		out[i] = uniform
	}
	return out
}

// reverseMatches reports whether remapping template (over toMap) down to
// fromMap reproduces cv exactly, by looking up the gain of each
// fromMap position in toMap/template.
func reverseMatches(template ChannelVolume, toMap sample.Map, cv ChannelVolume, fromMap sample.Map) bool {
	for i, pos := range fromMap {
		idx := indexOf(toMap, pos)
		if idx < 0 {
			return false
		}
		if template[idx] != cv[i] {
			return false
		}
	}
	return true
}

func indexOf(m sample.Map, p sample.Position) int {
	for i, q := range m {
		if q == p {
			return i
		}
	}
	return -1
}

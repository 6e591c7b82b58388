package mixerpath

import (
	"fmt"

	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/volume"
)

// SwitchUse is the role a mixer switch control plays within a path.
type SwitchUse int

const (
	SwitchIgnore SwitchUse = iota
	SwitchMute
	SwitchOn
	SwitchOff
	SwitchSelect
)

// VolumeUse is the role a mixer volume control plays within a path.
type VolumeUse int

const (
	VolumeIgnore VolumeUse = iota
	VolumeMerge
	VolumeOff
	VolumeZero
	VolumeConstant
)

// EnumUse is the role a mixer enumeration control plays within a path.
type EnumUse int

const (
	EnumIgnore EnumUse = iota
	EnumSelect
)

// Required describes how mandatory an element, jack or option is to a
// path's validity (§6 `required` / `required-any` / `required-absent`).
type Required int

const (
	RequiredIgnore Required = iota
	RequiredAny
	RequiredSwitch
	RequiredVolume
	RequiredEnumeration
	RequiredAbsent
)

// Option is one named permutation value of a SELECT-style switch or
// enumeration control (§6 `[Option <alsa-name>:<option>]`).
type Option struct {
	Name     string // the short tag used in settings and port names
	AlsaName string // the hardware option string this resolves to
	Priority uint

	Required       Required
	RequiredAny    Required
	RequiredAbsent Required

	// hwIndex is filled during probing: the option's index among the
	// control's hardware EnumItems, or -1 if the hardware doesn't
	// offer it.
	hwIndex int
	present bool
}

// Present reports whether the option's hardware counterpart was found
// during probing.
func (o *Option) Present() bool { return o.present }

// HWIndex is the resolved hardware index, or -1 if absent.
func (o *Option) HWIndex() int { return o.hwIndex }

// Element wraps one named hardware mixer control and the role(s) it
// plays within a path (§3, §4.2).
type Element struct {
	Name              string
	Direction         Direction
	DirectionTryOther bool

	SwitchUse SwitchUse
	VolumeUse VolumeUse
	EnumUse   EnumUse

	// VolumeLimit is the maximum hardware step this element may be
	// driven to, independent of the control's own range (§6
	// `volume-limit`).
	VolumeLimit int
	// HasVolumeLimit distinguishes "no limit configured" from a
	// configured limit of 0.
	HasVolumeLimit bool

	// OverrideMap supplies explicit position masks for 1- and
	// 2-channel elements, keyed by ALSA channel index, overriding the
	// masks probing would otherwise derive from the hardware.
	OverrideMap map[int][2]ChannelMask

	DBFix *DBFix

	Required       Required
	RequiredAny    Required
	RequiredAbsent Required

	// --- filled in by Probe ---
	present       bool
	handle        ElementHandle
	effectiveDir  Direction
	hwRange       volume.HWRange
	hasDB         bool
	minDB, maxDB  int
	options       []*Option
	posMask       map[int][2]ChannelMask // ALSA channel index -> (playback mask, capture mask)
}

// Present reports whether the element resolved to a live hardware
// control.
func (e *Element) Present() bool { return e.present }

// EffectiveDirection is the direction actually probed, which may be the
// opposite of Direction when DirectionTryOther applied.
func (e *Element) EffectiveDirection() Direction { return e.effectiveDir }

// HasDB reports whether the element's volume has a usable dB mapping,
// either native or via DBFix.
func (e *Element) HasDB() bool { return e.hasDB }

// DBRange is the element's usable millibel range, valid only if HasDB.
func (e *Element) DBRange() (min, max int) { return e.minDB, e.maxDB }

// HWRange is the element's probed hardware step range.
func (e *Element) HWRange() volume.HWRange { return e.hwRange }

// Handle returns the element's resolved backend handle, or nil if
// absent.
func (e *Element) Handle() ElementHandle { return e.handle }

// probeErr marks a path-breaking probe failure: the path must be
// dropped when a required element reports one.
type probeErr struct{ msg string }

func (e *probeErr) Error() string { return e.msg }

// Probe resolves the element's name against backend, filling in its
// live hardware state. It returns a probeErr when the element is
// Required and absent, when it reports an inconsistent dB range, or
// when one of its options fails its required/required-absent
// constraint; the path is then dropped. On a non-required absence it marks
// the element absent and downgrades every use to Ignore, returning nil
// so the path continues probing its other elements (§4.2).
func (e *Element) Probe(backend Backend) error {
	h, ok := backend.ElementByName(e.Name)
	if !ok {
		return e.markAbsent()
	}
	e.handle = h
	e.present = true
	e.effectiveDir = e.Direction

	if e.SwitchUse != SwitchIgnore {
		if !h.HasSwitch(e.Direction) {
			if e.DirectionTryOther && h.HasSwitch(e.Direction.other()) {
				e.effectiveDir = e.Direction.other()
			} else {
				return e.markAbsent()
			}
		}
	}

	if e.VolumeUse == VolumeMerge || e.VolumeUse == VolumeZero || e.VolumeUse == VolumeConstant {
		if err := e.probeVolume(h); err != nil {
			return err
		}
	}

	if e.EnumUse == EnumSelect || e.SwitchUse == SwitchSelect {
		if err := e.probeOptions(h); err != nil {
			return err
		}
	}

	e.probePositionMasks(h)
	return nil
}

func (e *Element) markAbsent() error {
	e.present = false
	if e.Required != RequiredIgnore {
		return &probeErr{msg: fmt.Sprintf("mixerpath: required element %q absent", e.Name)}
	}
	e.SwitchUse = SwitchIgnore
	e.VolumeUse = VolumeIgnore
	e.EnumUse = EnumIgnore
	return nil
}

func (e *Element) probeVolume(h ElementHandle) error {
	min, max, ok := h.VolumeRange(e.effectiveDir)
	if !ok {
		return e.markAbsent()
	}
	e.hwRange = volume.HWRange{Min: min, Max: max}

	if e.DBFix != nil {
		lo, hi := e.DBFix.MinStep(), e.DBFix.MaxStep()
		if lo < min {
			lo = min
		}
		if hi > max {
			hi = max
		}
		e.hwRange = volume.HWRange{Min: lo, Max: hi}
		e.hasDB = true
		e.minDB = e.DBFix.DBAtStep(lo)
		e.maxDB = e.DBFix.DBAtStep(hi)
		return nil
	}

	minDB, maxDB, hasDB := h.DBRange(e.effectiveDir)
	if !hasDB {
		e.hasDB = false
		return nil
	}
	// Cross-check the endpoints against what the control itself
	// reports for min/max step; a mismatch means the driver is lying
	// about its own dB range, and the element is rejected (§4.2).
	checkMin, okMin := h.StepToDB(e.effectiveDir, min)
	checkMax, okMax := h.StepToDB(e.effectiveDir, max)
	if !okMin || !okMax || checkMin != minDB || checkMax != maxDB {
		return &probeErr{msg: fmt.Sprintf("mixerpath: element %q reports inconsistent dB range (driver broken)", e.Name)}
	}
	e.hasDB = true
	e.minDB, e.maxDB = minDB, maxDB
	return nil
}

// probeOptions resolves each declared option's hardware index, then
// enforces required/required-absent the same way Element/Jack do: a
// required option that never showed up, or a required-absent option
// that did, fails the whole element (§3, §6 `[Option …]`).
func (e *Element) probeOptions(h ElementHandle) error {
	items := h.EnumItems()
	for _, opt := range e.options {
		opt.hwIndex = -1
		opt.present = false
		for i, item := range items {
			if item == opt.AlsaName {
				opt.hwIndex = i
				opt.present = true
				break
			}
		}
		if opt.Required != RequiredIgnore && !opt.present {
			return &probeErr{msg: fmt.Sprintf("mixerpath: required option %q absent", opt.AlsaName)}
		}
		if opt.RequiredAbsent != RequiredIgnore && opt.present {
			return &probeErr{msg: fmt.Sprintf("mixerpath: required-absent option %q present", opt.AlsaName)}
		}
	}
	return nil
}

// probePositionMasks computes, per ALSA channel index, the mask of
// abstract positions the element maps to. Mono elements map every
// position (SND_MONO); others consult OverrideMap if present, else map
// each channel the backend reports present to the position of its ALSA
// channel id (front-left, front-right, rear-left, ...), and any index
// past that list to the "all" mask.
func (e *Element) probePositionMasks(h ElementHandle) {
	e.posMask = map[int][2]ChannelMask{}
	n := h.ChannelCount(e.effectiveDir)
	if n <= 1 {
		e.posMask[0] = [2]ChannelMask{MaskAll, MaskAll}
		return
	}
	// ALSA simple-mixer channel ids, in order (SND_MIXER_SCHN_*).
	alsaPositions := []sample.Position{sample.FrontLeft, sample.FrontRight, sample.RearLeft, sample.RearRight,
		sample.FrontCenter, sample.LFE, sample.SideLeft, sample.SideRight, sample.RearCenter}
	for ch := 0; ch < n; ch++ {
		if masks, ok := e.OverrideMap[ch]; ok {
			e.posMask[ch] = masks
			continue
		}
		if !h.HasChannel(e.effectiveDir, ch) {
			continue
		}
		m := MaskAll
		if ch < len(alsaPositions) {
			m = PositionMask(alsaPositions[ch])
		}
		e.posMask[ch] = [2]ChannelMask{m, m}
	}
}

// PositionMask returns the mask computed for channel ch in dir.
func (e *Element) PositionMask(ch int, dir Direction) ChannelMask {
	masks, ok := e.posMask[ch]
	if !ok {
		return 0
	}
	if dir == Playback {
		return masks[0]
	}
	return masks[1]
}

// AddOption registers o as one of the element's SELECT-style values.
func (e *Element) AddOption(o *Option) {
	e.options = append(e.options, o)
}

// Options returns the element's configured options, in declaration
// order.
func (e *Element) Options() []*Option {
	return append([]*Option(nil), e.options...)
}


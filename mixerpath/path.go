package mixerpath

import (
	"fmt"

	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/volume"
)

// Setting is a named permutation of the SELECT-style options along a
// path, exposed as a port name suffix (§3, §6, GLOSSARY).
type Setting struct {
	Name        string
	Description string
	// Options maps an element's name to the option name chosen for it,
	// one entry per SELECT element on the path.
	Options map[string]string
}

// Path is an ordered chain of elements exposing one logical volume
// slider, one logical mute switch, and optionally a list of Settings
// (§4.2).
type Path struct {
	Name            string
	Description     string
	DescriptionKey  string
	Priority        uint
	MuteDuringActivation bool
	EldDevice       int
	Direction       Direction

	Elements []*Element
	Jacks    []*Jack
	Settings []*Setting

	// --- filled in by Probe ---
	dropped   bool
	hasVolume bool
	hasDB     bool
	hasMute   bool
	minDB     int
	maxDB     int
}

// Dropped reports whether the path failed probing (a required element
// or jack was absent, or required-any was unsatisfied) and must be
// excluded from its path set.
func (p *Path) Dropped() bool { return p.dropped }

// HasVolume, HasDB and HasMute report the path-level invariants derived
// during probing (§4.2).
func (p *Path) HasVolume() bool { return p.hasVolume }
func (p *Path) HasDB() bool     { return p.hasDB }
func (p *Path) HasMute() bool   { return p.hasMute }

// DBRange is the path's usable millibel range, valid only if HasDB.
func (p *Path) DBRange() (min, max int) { return p.minDB, p.maxDB }

// Probe resolves every element and jack against backend and computes
// the path-level invariants. A required-element/jack absence drops the
// path (Dropped reports true) rather than returning an error, matching
// the reference behavior of continuing to probe the rest of the path
// set when one path is unusable (§4.2, §7).
func (p *Path) Probe(backend Backend) error {
	for _, el := range p.Elements {
		if err := el.Probe(backend); err != nil {
			p.dropped = true
			return nil
		}
	}
	for _, j := range p.Jacks {
		if err := j.Probe(backend); err != nil {
			p.dropped = true
			return nil
		}
	}

	if p.hasRequiredAbsentPresent() {
		p.dropped = true
		return nil
	}

	p.demoteEarlyNoDBElements()
	p.computeInvariants()

	if !p.requiredAnySatisfied() {
		p.dropped = true
	}
	return nil
}

// hasRequiredAbsentPresent reports whether any element, jack or option
// marked required-absent actually resolved to live hardware, which
// drops the whole path (§3 "required_absent must be absent").
func (p *Path) hasRequiredAbsentPresent() bool {
	for _, el := range p.Elements {
		if el.RequiredAbsent != RequiredIgnore && el.present {
			return true
		}
		for _, opt := range el.options {
			if opt.RequiredAbsent != RequiredIgnore && opt.present {
				return true
			}
		}
	}
	for _, j := range p.Jacks {
		if j.RequiredAbsent != RequiredIgnore && j.present {
			return true
		}
	}
	return false
}

// demoteEarlyNoDBElements implements "if an earlier MERGE element lacks
// dB but a later one has dB, the earlier element is demoted to
// VOLUME_ZERO" (§4.2), concentrating variable gain in dB-capable
// elements.
func (p *Path) demoteEarlyNoDBElements() {
	sawLaterDB := false
	for i := len(p.Elements) - 1; i >= 0; i-- {
		el := p.Elements[i]
		if el.VolumeUse != VolumeMerge || !el.present {
			continue
		}
		if el.hasDB {
			sawLaterDB = true
			continue
		}
		if sawLaterDB {
			el.VolumeUse = VolumeZero
		}
	}
}

func (p *Path) computeInvariants() {
	p.hasVolume = false
	p.hasDB = true
	sawMerge := false
	minSum, maxSum := 0, 0
	for _, el := range p.Elements {
		if el.VolumeUse == VolumeMerge && el.present {
			p.hasVolume = true
			sawMerge = true
			if !el.hasDB {
				p.hasDB = false
				continue
			}
			minSum += el.minDB
			maxSum += el.maxDB
		}
		if el.SwitchUse == SwitchMute && el.present {
			p.hasMute = true
		}
	}
	if !sawMerge {
		p.hasDB = false
	}
	p.minDB, p.maxDB = minSum, maxSum
}

func (p *Path) requiredAnySatisfied() bool {
	needed := false
	satisfied := false
	for _, el := range p.Elements {
		if el.RequiredAny != RequiredIgnore {
			needed = true
			if el.present {
				satisfied = true
			}
		}
	}
	for _, j := range p.Jacks {
		if j.RequiredAny != RequiredIgnore {
			needed = true
			if j.present {
				satisfied = true
			}
		}
	}
	for _, el := range p.Elements {
		for _, opt := range el.options {
			if opt.RequiredAny != RequiredIgnore {
				needed = true
				if opt.present {
					satisfied = true
				}
			}
		}
	}
	if !needed {
		return true
	}
	return satisfied
}

// mergeElements returns the path's present MERGE elements, in order,
// skipping those demoted to VolumeZero or otherwise excluded from the
// gain chain.
func (p *Path) mergeElements() []*Element {
	var out []*Element
	for _, el := range p.Elements {
		if el.present && el.VolumeUse == VolumeMerge {
			out = append(out, el)
		}
	}
	return out
}

// GetVolume implements the get-volume algorithm (§4.2): read each MERGE
// element's per-channel gain, fold multiple ALSA channels mapping to
// the same abstract position with max, and combine multiple elements by
// multiplying their contributions (or, if the path lacks dB, returning
// just the first element's raw-derived gains). Channels the path
// doesn't cover are returned at Norm.
func (p *Path) GetVolume(dir Direction, chmap sample.Map) (volume.ChannelVolume, error) {
	result := volume.NormVolume(len(chmap))
	for _, el := range p.mergeElements() {
		contribution := elementContribution(el, dir, chmap)
		if !p.hasDB {
			return contribution, nil
		}
		result = volume.Multiply(result, contribution)
	}
	return result, nil
}

func elementContribution(el *Element, dir Direction, chmap sample.Map) volume.ChannelVolume {
	out := volume.NormVolume(len(chmap))
	for i, pos := range chmap {
		var best volume.Linear
		found := false
		for ch := range el.posMask {
			if !CoversPosition(el.PositionMask(ch, dir), pos) {
				continue
			}
			v := readElementChannel(el, dir, ch)
			if !found || v > best {
				best, found = v, true
			}
		}
		if found {
			out[i] = best
		}
	}
	return out
}

func readElementChannel(el *Element, dir Direction, ch int) volume.Linear {
	h := el.Handle()
	if h == nil {
		return volume.Norm
	}
	step, ok := h.GetVolumeRaw(dir, ch)
	if !ok {
		return volume.Norm
	}
	if el.DBFix != nil {
		return mixerpathToLinear(el.DBFix.DBAtStep(step))
	}
	if el.hasDB {
		mb, ok := h.StepToDB(dir, step)
		if !ok {
			return volume.Norm
		}
		return mixerpathToLinear(mb)
	}
	return el.hwRange.FromHW(step)
}

func mixerpathToLinear(mb int) volume.Linear { return ToLinear(mb) }

// SetVolume implements the set-volume algorithm (§4.2): it drives each
// MERGE element toward the remaining fraction of target not yet
// absorbed by earlier elements, clamped to the element's usable dB
// range (including any configured volume-limit) and rounded per mode.
// It returns the volume that was actually achieved, which callers use
// as the path's real_volume contribution.
func (p *Path) SetVolume(dir Direction, chmap sample.Map, target volume.ChannelVolume, mode RoundMode) (volume.ChannelVolume, error) {
	if len(target) != len(chmap) {
		return nil, fmt.Errorf("mixerpath: target volume has %d channels, map has %d", len(target), len(chmap))
	}
	absorbed := volume.NormVolume(len(chmap))
	remaining := target
	for _, el := range p.mergeElements() {
		achieved, err := setElementVolume(el, dir, chmap, remaining, mode)
		if err != nil {
			return nil, err
		}
		absorbed = volume.Multiply(absorbed, achieved)
		remaining = volume.Divide(target, absorbed)
	}
	return absorbed, nil
}

func setElementVolume(el *Element, dir Direction, chmap sample.Map, target volume.ChannelVolume, mode RoundMode) (volume.ChannelVolume, error) {
	h := el.Handle()
	achieved := volume.NormVolume(len(chmap))
	if h == nil || !el.hasDB {
		// no dB control: nothing meaningful to drive toward, contribute
		// unity and let later/earlier elements absorb the request.
		return achieved, nil
	}
	maxDB := el.maxDB
	if el.HasVolumeLimit {
		if limitDB, ok := dbAtLimit(el, dir); ok && limitDB < maxDB {
			maxDB = limitDB
		}
	}
	for i, pos := range chmap {
		wantDB := int(target[i].DB() * 100)
		if wantDB > maxDB {
			wantDB = maxDB
		}
		if wantDB < el.minDB {
			wantDB = el.minDB
		}
		var bestAchieved volume.Linear
		touched := false
		for ch := range el.posMask {
			if !CoversPosition(el.PositionMask(ch, dir), pos) {
				continue
			}
			var step int
			if el.DBFix != nil {
				step = el.DBFix.StepAtDB(wantDB, mode)
			} else {
				s, ok := h.DBToStep(dir, wantDB, mode)
				if !ok {
					continue
				}
				step = s
			}
			if err := h.SetVolumeRaw(dir, ch, step); err != nil {
				return nil, err
			}
			achievedMB := wantDB
			if el.DBFix != nil {
				achievedMB = el.DBFix.DBAtStep(step)
			} else if mb, ok := h.StepToDB(dir, step); ok {
				achievedMB = mb
			}
			v := mixerpathToLinear(achievedMB)
			if !touched || v > bestAchieved {
				bestAchieved, touched = v, true
			}
		}
		if touched {
			achieved[i] = bestAchieved
		}
	}
	return achieved, nil
}

func dbAtLimit(el *Element, dir Direction) (int, bool) {
	h := el.Handle()
	if el.DBFix != nil {
		return el.DBFix.DBAtStep(el.VolumeLimit), true
	}
	if h == nil {
		return 0, false
	}
	return h.StepToDB(dir, el.VolumeLimit)
}

// ApplyZeroElements programs every element demoted to VolumeZero (or
// declared VolumeZero directly) to its 0dB position, and switches every
// SwitchUse==SwitchOn/SwitchOff element on or off accordingly. Callers run
// this once after Probe succeeds, before the path is exposed for
// get/set volume.
func (p *Path) ApplyZeroElements(dir Direction) error {
	for _, el := range p.Elements {
		if !el.present {
			continue
		}
		if el.VolumeUse == VolumeZero {
			if err := fixElementToZeroDB(el, dir); err != nil {
				return err
			}
		}
		switch el.SwitchUse {
		case SwitchOn:
			if err := setAllChannelsSwitch(el, dir, true); err != nil {
				return err
			}
		case SwitchOff:
			if err := setAllChannelsSwitch(el, dir, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func fixElementToZeroDB(el *Element, dir Direction) error {
	h := el.Handle()
	if h == nil {
		return nil
	}
	for ch := range el.posMask {
		var step int
		if el.DBFix != nil {
			step = el.DBFix.StepAtDB(0, RoundNearest)
		} else if el.hasDB {
			s, ok := h.DBToStep(dir, 0, RoundNearest)
			if !ok {
				continue
			}
			step = s
		} else {
			continue
		}
		if err := h.SetVolumeRaw(dir, ch, step); err != nil {
			return err
		}
	}
	return nil
}

func setAllChannelsSwitch(el *Element, dir Direction, on bool) error {
	h := el.Handle()
	if h == nil {
		return nil
	}
	for ch := range el.posMask {
		if err := h.SetSwitch(dir, ch, on); err != nil {
			return err
		}
	}
	return nil
}

// SetMute drives every SwitchUse==SwitchMute element to the given mute
// state.
func (p *Path) SetMute(dir Direction, muted bool) error {
	for _, el := range p.Elements {
		if !el.present || el.SwitchUse != SwitchMute {
			continue
		}
		// hardware mute switches are active-low in ALSA's convention:
		// "on" means unmuted.
		if err := setAllChannelsSwitch(el, dir, !muted); err != nil {
			return err
		}
	}
	return nil
}

// GetMute reports whether any SwitchUse==SwitchMute element currently
// reads as muted.
func (p *Path) GetMute(dir Direction) bool {
	for _, el := range p.Elements {
		if !el.present || el.SwitchUse != SwitchMute {
			continue
		}
		h := el.Handle()
		if h == nil {
			continue
		}
		for ch := range el.posMask {
			if on, ok := h.GetSwitch(dir, ch); ok && !on {
				return true
			}
		}
	}
	return false
}

// SelectSetting programs every SELECT element on the path to the option
// named in setting, by hardware index.
func (p *Path) SelectSetting(s *Setting) error {
	for _, el := range p.Elements {
		name, ok := s.Options[el.Name]
		if !ok {
			continue
		}
		if err := selectOption(el, name); err != nil {
			return err
		}
	}
	return nil
}

// PortBinding names one (path, setting) combination that should
// surface as a device port (§6 "Port name format").
type PortBinding struct {
	Name        string
	Description string
	Setting     *Setting // nil if the path has no settings
}

// PortBindings returns the port bindings a probed, condensed path
// contributes: one per Setting, named "<path-name>;<setting-name>"
// with description "<path-desc> / <setting-desc>", or a single binding
// using the path's own name and description if it has no settings.
func (p *Path) PortBindings() []PortBinding {
	if len(p.Settings) == 0 {
		return []PortBinding{{Name: p.Name, Description: p.Description}}
	}
	out := make([]PortBinding, 0, len(p.Settings))
	for _, s := range p.Settings {
		out = append(out, PortBinding{
			Name:        p.Name + ";" + s.Name,
			Description: p.Description + " / " + s.Description,
			Setting:     s,
		})
	}
	return out
}

func selectOption(el *Element, optionName string) error {
	h := el.Handle()
	if h == nil {
		return nil
	}
	for _, opt := range el.options {
		if opt.Name != optionName || !opt.present {
			continue
		}
		if el.EnumUse == EnumSelect {
			return h.SetEnumItem(opt.hwIndex)
		}
		if el.SwitchUse == SwitchSelect {
			return h.SetEnumItem(opt.hwIndex)
		}
	}
	return fmt.Errorf("mixerpath: option %q not present on element %q", optionName, el.Name)
}

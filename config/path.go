package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pipelined/device/mixerpath"
	"github.com/pipelined/device/sample"
)

// ParsePath parses one mixer path configuration file (§6).
func ParsePath(data string) (*mixerpath.Path, error) {
	sections, err := scan(strings.NewReader(data))
	if err != nil {
		return nil, err
	}
	p := &mixerpath.Path{}
	elementsByName := map[string]*mixerpath.Element{}

	for _, sec := range sections {
		switch sec.Kind {
		case "General":
			if err := applyGeneral(p, sec); err != nil {
				return nil, err
			}
		case "Jack":
			j, err := parseJack(sec)
			if err != nil {
				return nil, err
			}
			p.Jacks = append(p.Jacks, j)
		case "Element":
			el, err := parseElement(sec)
			if err != nil {
				return nil, err
			}
			elementsByName[el.Name] = el
			p.Elements = append(p.Elements, el)
		case "Option":
			name, optName, ok := strings.Cut(sec.Arg, ":")
			if !ok {
				return nil, fmt.Errorf("config: line %d: option header must be <element>:<option>", sec.Line)
			}
			el, ok := elementsByName[name]
			if !ok {
				return nil, fmt.Errorf("config: line %d: option for unknown element %q", sec.Line, name)
			}
			opt, err := parseOption(sec, optName)
			if err != nil {
				return nil, err
			}
			el.AddOption(opt)
		default:
			return nil, fmt.Errorf("config: line %d: unknown section [%s]", sec.Line, sec.Kind)
		}
	}
	return p, nil
}

func applyGeneral(p *mixerpath.Path, sec *section) error {
	if v, ok := sec.Get("priority"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("config: line %d: priority: %w", sec.Line, err)
		}
		p.Priority = uint(n)
	}
	if v, ok := sec.Get("description"); ok {
		p.Description = v
	}
	if v, ok := sec.Get("description-key"); ok {
		p.DescriptionKey = v
	}
	if v, ok := sec.Get("mute-during-activation"); ok {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		p.MuteDuringActivation = b
	}
	if v, ok := sec.Get("eld-device"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: line %d: eld-device: %w", sec.Line, err)
		}
		p.EldDevice = n
	}
	return nil
}

func parseJack(sec *section) (*mixerpath.Jack, error) {
	j := &mixerpath.Jack{Name: sec.Arg}
	var err error
	if v, ok := sec.Get("state.plugged"); ok {
		if j.StatePlugged, err = parseAvailability(v); err != nil {
			return nil, err
		}
	}
	if v, ok := sec.Get("state.unplugged"); ok {
		if j.StateUnplugged, err = parseAvailability(v); err != nil {
			return nil, err
		}
	}
	if err := parseRequiredTriple(sec, &j.Required, &j.RequiredAny, &j.RequiredAbsent); err != nil {
		return nil, err
	}
	return j, nil
}

func parseAvailability(v string) (mixerpath.Availability, error) {
	switch v {
	case "yes":
		return mixerpath.AvailableYes, nil
	case "no":
		return mixerpath.AvailableNo, nil
	case "unknown":
		return mixerpath.AvailableUnknown, nil
	}
	return 0, fmt.Errorf("config: invalid availability %q", v)
}

func parseRequired(v string) (mixerpath.Required, error) {
	switch v {
	case "ignore":
		return mixerpath.RequiredIgnore, nil
	case "any":
		return mixerpath.RequiredAny, nil
	case "switch":
		return mixerpath.RequiredSwitch, nil
	case "volume":
		return mixerpath.RequiredVolume, nil
	case "enumeration":
		return mixerpath.RequiredEnumeration, nil
	}
	return 0, fmt.Errorf("config: invalid required value %q", v)
}

func parseRequiredTriple(sec *section, required, requiredAny, requiredAbsent *mixerpath.Required) error {
	if v, ok := sec.Get("required"); ok {
		r, err := parseRequired(v)
		if err != nil {
			return err
		}
		*required = r
	}
	if v, ok := sec.Get("required-any"); ok {
		r, err := parseRequired(v)
		if err != nil {
			return err
		}
		*requiredAny = r
	}
	if v, ok := sec.Get("required-absent"); ok {
		*requiredAbsent = mixerpath.RequiredAbsent
		_ = v
	}
	return nil
}

func parseElement(sec *section) (*mixerpath.Element, error) {
	el := &mixerpath.Element{Name: sec.Arg, Direction: mixerpath.Playback}
	if v, ok := sec.Get("direction"); ok {
		switch v {
		case "playback":
			el.Direction = mixerpath.Playback
		case "capture":
			el.Direction = mixerpath.Capture
		default:
			return nil, fmt.Errorf("config: invalid direction %q", v)
		}
	}
	if v, ok := sec.Get("direction-try-other"); ok {
		b, err := parseBool(v)
		if err != nil {
			return nil, err
		}
		el.DirectionTryOther = b
	}
	if v, ok := sec.Get("switch"); ok {
		u, err := parseSwitchUse(v)
		if err != nil {
			return nil, err
		}
		el.SwitchUse = u
	}
	if v, ok := sec.Get("volume"); ok {
		u, err := parseVolumeUse(v)
		if err != nil {
			return nil, err
		}
		el.VolumeUse = u
	}
	if v, ok := sec.Get("enumeration"); ok {
		switch v {
		case "ignore":
			el.EnumUse = mixerpath.EnumIgnore
		case "select":
			el.EnumUse = mixerpath.EnumSelect
		default:
			return nil, fmt.Errorf("config: invalid enumeration use %q", v)
		}
	}
	if v, ok := sec.Get("volume-limit"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("config: invalid volume-limit %q", v)
		}
		el.VolumeLimit = n
		el.HasVolumeLimit = true
	}
	if v, ok := sec.Get("override-map.1"); ok {
		masks, err := parseOverrideMap(v)
		if err != nil {
			return nil, err
		}
		el.OverrideMap = map[int][2]mixerpath.ChannelMask{0: masks}
	}
	if v, ok := sec.Get("override-map.2"); ok {
		masks, err := parseOverrideMap(v)
		if err != nil {
			return nil, err
		}
		if el.OverrideMap == nil {
			el.OverrideMap = map[int][2]mixerpath.ChannelMask{}
		}
		el.OverrideMap[0] = masks
		el.OverrideMap[1] = masks
	}
	if err := parseRequiredTriple(sec, &el.Required, &el.RequiredAny, &el.RequiredAbsent); err != nil {
		return nil, err
	}
	return el, nil
}

func parseSwitchUse(v string) (mixerpath.SwitchUse, error) {
	switch v {
	case "ignore":
		return mixerpath.SwitchIgnore, nil
	case "mute":
		return mixerpath.SwitchMute, nil
	case "on":
		return mixerpath.SwitchOn, nil
	case "off":
		return mixerpath.SwitchOff, nil
	case "select":
		return mixerpath.SwitchSelect, nil
	}
	return 0, fmt.Errorf("config: invalid switch use %q", v)
}

func parseVolumeUse(v string) (mixerpath.VolumeUse, error) {
	switch v {
	case "ignore":
		return mixerpath.VolumeIgnore, nil
	case "merge":
		return mixerpath.VolumeMerge, nil
	case "off":
		return mixerpath.VolumeOff, nil
	case "zero":
		return mixerpath.VolumeZero, nil
	default:
		if _, err := strconv.Atoi(v); err == nil {
			return mixerpath.VolumeConstant, nil
		}
		return 0, fmt.Errorf("config: invalid volume use %q", v)
	}
}

func parseOverrideMap(v string) ([2]mixerpath.ChannelMask, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return [2]mixerpath.ChannelMask{}, fmt.Errorf("config: override-map needs two comma-separated masks, got %q", v)
	}
	a, err := parseMask(parts[0])
	if err != nil {
		return [2]mixerpath.ChannelMask{}, err
	}
	b, err := parseMask(parts[1])
	if err != nil {
		return [2]mixerpath.ChannelMask{}, err
	}
	return [2]mixerpath.ChannelMask{a, b}, nil
}

func parseMask(v string) (mixerpath.ChannelMask, error) {
	switch strings.TrimSpace(v) {
	case "all":
		return mixerpath.MaskAll, nil
	case "all-left":
		return mixerpath.MaskAllLeft, nil
	case "all-right":
		return mixerpath.MaskAllRight, nil
	case "all-front":
		return mixerpath.MaskAllFront, nil
	case "all-rear":
		return mixerpath.MaskAllRear, nil
	case "all-center":
		return mixerpath.MaskAllCenter, nil
	case "all-side":
		return mixerpath.MaskAllSide, nil
	case "all-top":
		return mixerpath.MaskAllTop, nil
	case "all-no-lfe":
		return mixerpath.MaskAllNoLFE, nil
	}
	if pos, ok := positionByName[strings.TrimSpace(v)]; ok {
		return mixerpath.PositionMask(pos), nil
	}
	return 0, fmt.Errorf("config: invalid channel mask %q", v)
}

var positionByName = map[string]sample.Position{
	"mono":             sample.Mono,
	"front-left":       sample.FrontLeft,
	"front-right":      sample.FrontRight,
	"front-center":     sample.FrontCenter,
	"rear-left":        sample.RearLeft,
	"rear-right":       sample.RearRight,
	"rear-center":      sample.RearCenter,
	"lfe":              sample.LFE,
	"side-left":        sample.SideLeft,
	"side-right":       sample.SideRight,
	"top-center":       sample.TopCenter,
	"top-front-left":   sample.TopFrontLeft,
	"top-front-right":  sample.TopFrontRight,
	"top-front-center": sample.TopFrontCenter,
	"top-rear-left":    sample.TopRearLeft,
	"top-rear-right":   sample.TopRearRight,
	"top-rear-center":  sample.TopRearCenter,
}

func parseOption(sec *section, optName string) (*mixerpath.Option, error) {
	opt := &mixerpath.Option{AlsaName: optName, Name: optName}
	if v, ok := sec.Get("priority"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: invalid option priority %q", v)
		}
		opt.Priority = uint(n)
	}
	if v, ok := sec.Get("name"); ok {
		if canonical, ok := knownOptionNames[v]; ok {
			opt.Name = canonical
		} else {
			opt.Name = v
		}
	}
	if err := parseRequiredTriple(sec, &opt.Required, &opt.RequiredAny, &opt.RequiredAbsent); err != nil {
		return nil, err
	}
	return opt, nil
}

// knownOptionNames resolves the short option tags used by configuration
// files to the canonical names surfaced on ports (§6 `name =
// <short-tag>`); entries are added as path files need them.
var knownOptionNames = map[string]string{
	"analog-output-speaker":  "speaker",
	"analog-output-headphones": "headphones",
	"analog-input-mic":       "mic",
	"analog-input-linein":    "line-in",
}

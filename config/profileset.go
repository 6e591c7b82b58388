package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pipelined/device/mixerpath"
	"github.com/pipelined/device/profile"
	"github.com/pipelined/device/sample"
)

// ParseProfileSet parses one profile-set configuration file (§6).
func ParseProfileSet(data string) (*profile.Set, error) {
	sections, err := scan(strings.NewReader(data))
	if err != nil {
		return nil, err
	}
	set := profile.NewSet()

	for _, sec := range sections {
		switch sec.Kind {
		case "General":
			if v, ok := sec.Get("auto-profiles"); ok {
				b, err := parseBool(v)
				if err != nil {
					return nil, err
				}
				set.AutoProfiles = b
			}
		case "Mapping":
			m, err := parseMapping(sec)
			if err != nil {
				return nil, err
			}
			set.Mappings[m.Name] = m
		case "Profile":
			p, err := parseProfile(sec)
			if err != nil {
				return nil, err
			}
			set.Profiles[p.Name] = p
		case "DecibelFix":
			fix, err := parseDecibelFix(sec)
			if err != nil {
				return nil, err
			}
			set.DecibelFixes[sec.Arg] = fix
		default:
			return nil, fmt.Errorf("config: line %d: unknown section [%s]", sec.Line, sec.Kind)
		}
	}
	return set, nil
}

func parseMapping(sec *section) (*profile.Mapping, error) {
	m := &profile.Mapping{Name: sec.Arg, Direction: mixerpath.Playback}
	if v, ok := sec.Get("device-strings"); ok {
		m.DeviceStrings = splitCommaList(v)
	}
	if v, ok := sec.Get("channel-map"); ok {
		cm, err := parseChannelMap(v)
		if err != nil {
			return nil, err
		}
		m.ChannelMap = cm
	}
	if v, ok := sec.Get("paths-input"); ok {
		m.PathsInput = splitCommaList(v)
	}
	if v, ok := sec.Get("paths-output"); ok {
		m.PathsOutput = splitCommaList(v)
	}
	if v, ok := sec.Get("element-input"); ok {
		m.ElementInput = v
	}
	if v, ok := sec.Get("element-output"); ok {
		m.ElementOutput = v
	}
	if v, ok := sec.Get("direction"); ok {
		switch v {
		case "playback":
			m.Direction = mixerpath.Playback
		case "capture":
			m.Direction = mixerpath.Capture
		default:
			return nil, fmt.Errorf("config: invalid mapping direction %q", v)
		}
	}
	if v, ok := sec.Get("description"); ok {
		m.Description = v
	}
	if v, ok := sec.Get("priority"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: invalid mapping priority %q", v)
		}
		m.Priority = uint(n)
	}
	return m, nil
}

func parseChannelMap(v string) (sample.Map, error) {
	names := splitCommaList(v)
	m := make(sample.Map, 0, len(names))
	for _, n := range names {
		pos, ok := positionByName[n]
		if !ok {
			return nil, fmt.Errorf("config: unknown channel position %q", n)
		}
		m = append(m, pos)
	}
	return m, nil
}

func parseProfile(sec *section) (*profile.Profile, error) {
	p := &profile.Profile{Name: sec.Arg}
	if v, ok := sec.Get("input-mappings"); ok {
		p.InputMappings = splitCommaList(v)
	}
	if v, ok := sec.Get("output-mappings"); ok {
		p.OutputMappings = splitCommaList(v)
	}
	if v, ok := sec.Get("skip-probe"); ok {
		b, err := parseBool(v)
		if err != nil {
			return nil, err
		}
		p.SkipProbe = b
	}
	if v, ok := sec.Get("description"); ok {
		p.Description = v
	}
	if v, ok := sec.Get("priority"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: invalid profile priority %q", v)
		}
		p.Priority = uint(n)
	}
	return p, nil
}

func parseDecibelFix(sec *section) (*mixerpath.DBFix, error) {
	raw, ok := sec.Get("db-values")
	if !ok {
		return nil, fmt.Errorf("config: line %d: [DecibelFix %s] missing db-values", sec.Line, sec.Arg)
	}
	fields := strings.Fields(raw)
	pairs := make(map[int]int, len(fields))
	for _, f := range fields {
		step, mb, ok := strings.Cut(f, ":")
		if !ok {
			return nil, fmt.Errorf("config: line %d: invalid db-values entry %q", sec.Line, f)
		}
		s, err := strconv.Atoi(step)
		if err != nil {
			return nil, fmt.Errorf("config: line %d: invalid db-values step %q", sec.Line, step)
		}
		d, err := strconv.Atoi(mb)
		if err != nil {
			return nil, fmt.Errorf("config: line %d: invalid db-values millibel %q", sec.Line, mb)
		}
		pairs[s] = d
	}
	return mixerpath.NewDBFix(pairs)
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

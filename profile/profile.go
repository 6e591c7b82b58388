// Package profile models the named (sample-spec, channel-map,
// device-string) mappings and the profiles that combine them into the
// device's selectable configurations (§3, §6).
package profile

import (
	"github.com/pipelined/device/mixerpath"
	"github.com/pipelined/device/sample"
)

// Mapping names one (sample-spec, channel-map, device-string) binding
// and the paths it exposes (§6 `[Mapping <name>]`).
type Mapping struct {
	Name          string
	DeviceStrings []string
	ChannelMap    sample.Map
	PathsInput    []string
	PathsOutput   []string
	ElementInput  string
	ElementOutput string
	Direction     mixerpath.Direction
	Description   string
	Priority      uint
}

// Profile names a combination of mappings a card may run with (§6
// `[Profile <name>]`).
type Profile struct {
	Name            string
	InputMappings   []string
	OutputMappings  []string
	SkipProbe       bool
	Description     string
	Priority        uint
}

// Set is a named collection of mappings, profiles and decibel-fix
// tables, as produced by parsing one profile-set configuration file
// (§6). AutoProfiles mirrors `[General] auto-profiles`.
type Set struct {
	AutoProfiles bool
	Mappings     map[string]*Mapping
	Profiles     map[string]*Profile
	DecibelFixes map[string]*mixerpath.DBFix
}

// NewSet returns an empty, initialized Set.
func NewSet() *Set {
	return &Set{
		Mappings:     map[string]*Mapping{},
		Profiles:     map[string]*Profile{},
		DecibelFixes: map[string]*mixerpath.DBFix{},
	}
}

// MappingsFor resolves the mapping names referenced by a profile's
// InputMappings/OutputMappings, skipping any name the set doesn't
// define.
func (s *Set) MappingsFor(names []string) []*Mapping {
	out := make([]*Mapping, 0, len(names))
	for _, n := range names {
		if m, ok := s.Mappings[n]; ok {
			out = append(out, m)
		}
	}
	return out
}

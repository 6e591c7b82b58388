// Package sample describes the audio sample format and channel map
// primitives shared by devices, streams and mixer paths: rate, channel
// count and the naming of individual channels. It has no notion of
// sample encoding.
package sample

import "pipelined.dev/signal"

// Position names the abstract spatial role of a single channel. The
// enumeration mirrors the fixed set used by the mixer path position masks
// in package mixerpath.
type Position int

// The fixed set of channel positions a channel map entry may hold.
const (
	Mono Position = iota
	FrontLeft
	FrontRight
	FrontCenter
	RearLeft
	RearRight
	RearCenter
	LFE
	SideLeft
	SideRight
	TopCenter
	TopFrontLeft
	TopFrontRight
	TopFrontCenter
	TopRearLeft
	TopRearRight
	TopRearCenter
	Aux0
)

// String renders the canonical, lower-case name used in configuration
// files and log output.
func (p Position) String() string {
	if s, ok := positionNames[p]; ok {
		return s
	}
	return "unknown"
}

var positionNames = map[Position]string{
	Mono:           "mono",
	FrontLeft:      "front-left",
	FrontRight:     "front-right",
	FrontCenter:    "front-center",
	RearLeft:       "rear-left",
	RearRight:      "rear-right",
	RearCenter:     "rear-center",
	LFE:            "lfe",
	SideLeft:       "side-left",
	SideRight:      "side-right",
	TopCenter:      "top-center",
	TopFrontLeft:   "top-front-left",
	TopFrontRight:  "top-front-right",
	TopFrontCenter: "top-front-center",
	TopRearLeft:    "top-rear-left",
	TopRearRight:   "top-rear-right",
	TopRearCenter:  "top-rear-center",
	Aux0:           "aux0",
}

// Map orders the channels of a buffer, naming the spatial role of each.
type Map []Position

// Channels returns the number of channels described by the map.
func (m Map) Channels() int {
	return len(m)
}

// Valid reports whether every position in the map is recognised and the
// map is non-empty.
func (m Map) Valid() bool {
	if len(m) == 0 {
		return false
	}
	for _, p := range m {
		if _, ok := positionNames[p]; !ok {
			return false
		}
	}
	return true
}

// Equal reports whether two maps describe the same channels in the same
// order.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for i := range m {
		if m[i] != o[i] {
			return false
		}
	}
	return true
}

// Default returns the canonical map for a plain channel count: mono for
// one channel, front-left/front-right for two, and an auxiliary
// enumeration beyond that (the reference server does the same for
// devices created without an explicit map).
func Default(channels int) Map {
	switch channels {
	case 1:
		return Map{Mono}
	case 2:
		return Map{FrontLeft, FrontRight}
	default:
		m := make(Map, channels)
		for i := range m {
			m[i] = Aux0 + Position(i)
		}
		return m
	}
}

// Spec is the (rate, channel count) pair that identifies a sample
// format, plus the channel map naming each channel; it carries no
// encoding.
type Spec struct {
	Rate     signal.Frequency
	Channels int
	Map      Map
}

// Valid reports whether the spec is internally consistent: a positive
// rate, a positive channel count, and (if a map is set) a map whose
// channel count matches.
func (s Spec) Valid() bool {
	if s.Rate <= 0 || s.Channels <= 0 {
		return false
	}
	if s.Map != nil && s.Map.Channels() != s.Channels {
		return false
	}
	return true
}

// WithDefaultMap returns a copy of the spec with Map populated from
// Default(s.Channels) if it was unset.
func (s Spec) WithDefaultMap() Spec {
	if s.Map == nil {
		s.Map = Default(s.Channels)
	}
	return s
}

// Sample rate bounds from the external interface section: the 8kHz
// floor. No ceiling is defined here; the two families rate switches are
// allowed to move within are checked by RateFamily and SameFamily.
const (
	MinRate = signal.Frequency(8000)
)

// RateFamily reports whether rate is a positive multiple of 4000Hz or of
// 11025Hz; rate switching is only permitted within one of these families.
func RateFamily(rate signal.Frequency) (multipleOf4000, multipleOf11025 bool) {
	r := int64(rate)
	if r <= 0 {
		return false, false
	}
	return r%4000 == 0, r%11025 == 0
}

// SameFamily reports whether candidate shares a rate family with
// reference, per the rate-switch precondition in §4.1.
func SameFamily(reference, candidate signal.Frequency) bool {
	r4, r11 := RateFamily(reference)
	c4, c11 := RateFamily(candidate)
	return (r4 && c4) || (r11 && c11)
}

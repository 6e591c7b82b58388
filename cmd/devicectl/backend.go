package main

import "github.com/pipelined/device/mixerpath"

// memElement is a software mixer control standing in for a real ALSA
// or CoreAudio element (§1 scopes the hardware binding out): a
// linear-in-dB volume over [min,max] plus an optional switch and
// enumeration, the same shape mixerpath's own probing tests exercise.
type memElement struct {
	min, max  int
	channels  int
	steps     map[int]int
	switches  map[int]bool
	enumItems []string
	enumIndex int
}

func newMemElement(min, max, channels int) *memElement {
	steps := map[int]int{}
	for c := 0; c < channels; c++ {
		steps[c] = max
	}
	return &memElement{min: min, max: max, channels: channels, steps: steps, switches: map[int]bool{}}
}

func (e *memElement) HasSwitch(mixerpath.Direction) bool { return len(e.switches) > 0 || e.channels > 0 }
func (e *memElement) HasVolume(mixerpath.Direction) bool { return e.max > e.min }
func (e *memElement) HasEnum() bool                      { return len(e.enumItems) > 0 }

func (e *memElement) VolumeRange(mixerpath.Direction) (int, int, bool) {
	if e.max <= e.min {
		return 0, 0, false
	}
	return e.min, e.max, true
}

func (e *memElement) DBRange(mixerpath.Direction) (int, int, bool) {
	if e.max <= e.min {
		return 0, 0, false
	}
	return e.min * 100, e.max * 100, true
}

func (e *memElement) StepToDB(_ mixerpath.Direction, step int) (int, bool) {
	if e.max <= e.min {
		return 0, false
	}
	return step * 100, true
}

func (e *memElement) DBToStep(_ mixerpath.Direction, mB int, mode mixerpath.RoundMode) (int, bool) {
	if e.max <= e.min {
		return 0, false
	}
	step := mB / 100
	if mode == mixerpath.RoundUp && mB%100 != 0 {
		step++
	}
	if step < e.min {
		step = e.min
	}
	if step > e.max {
		step = e.max
	}
	return step, true
}

func (e *memElement) HasChannel(_ mixerpath.Direction, ch int) bool { return ch < e.channels }
func (e *memElement) ChannelCount(mixerpath.Direction) int          { return e.channels }

func (e *memElement) GetVolumeRaw(_ mixerpath.Direction, ch int) (int, bool) {
	v, ok := e.steps[ch]
	return v, ok
}

func (e *memElement) SetVolumeRaw(_ mixerpath.Direction, ch int, step int) error {
	e.steps[ch] = step
	return nil
}

func (e *memElement) GetSwitch(_ mixerpath.Direction, ch int) (bool, bool) {
	on, ok := e.switches[ch]
	return on, ok
}

func (e *memElement) SetSwitch(_ mixerpath.Direction, ch int, on bool) error {
	e.switches[ch] = on
	return nil
}

func (e *memElement) EnumItems() []string { return e.enumItems }

func (e *memElement) GetEnumItem() (int, bool) {
	if len(e.enumItems) == 0 {
		return 0, false
	}
	return e.enumIndex, true
}

func (e *memElement) SetEnumItem(index int) error {
	e.enumIndex = index
	return nil
}

// memJack is an always-plugged jack used when a demo path declares one.
type memJack struct{ plugged bool }

func (j *memJack) Plugged() bool { return j.plugged }
func (j *memJack) Watch(func(bool)) (cancel func()) {
	return func() {}
}

// memBackend resolves the demo path/profile-set fixture below; a real
// deployment replaces it with an ALSA or CoreAudio binding behind the
// same mixerpath.Backend interface.
type memBackend struct {
	elements map[string]mixerpath.ElementHandle
	jacks    map[string]mixerpath.JackHandle
}

func newDemoBackend() *memBackend {
	b := &memBackend{
		elements: map[string]mixerpath.ElementHandle{},
		jacks:    map[string]mixerpath.JackHandle{},
	}
	master := newMemElement(0, 64, 2)
	master.switches[0], master.switches[1] = true, true
	b.elements["Master"] = master

	headphone := newMemElement(0, 64, 2)
	headphone.switches[0], headphone.switches[1] = true, true
	b.elements["Headphone"] = headphone

	capture := newMemElement(0, 32, 1)
	capture.switches[0] = true
	b.elements["Capture"] = capture

	input := newMemElement(0, 0, 1)
	input.enumItems = []string{"Mic", "Line"}
	b.elements["Input Source"] = input

	b.jacks["Headphone Jack"] = &memJack{plugged: true}
	return b
}

func (b *memBackend) ElementByName(name string) (mixerpath.ElementHandle, bool) {
	e, ok := b.elements[name]
	return e, ok
}

func (b *memBackend) JackByName(name string) (mixerpath.JackHandle, bool) {
	j, ok := b.jacks[name]
	return j, ok
}

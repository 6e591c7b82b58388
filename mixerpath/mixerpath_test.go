package mixerpath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/device/mixerpath"
	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/volume"
)

// fakeElement is a linear-in-dB mock mixer control: step N means N*100
// millibel, over [min,max].
type fakeElement struct {
	min, max  int
	channels  int
	steps     map[int]int
	switches  map[int]bool
	enumItems []string
	enumIndex int
	noDB      bool
}

func newFakeElement(min, max, channels int) *fakeElement {
	steps := map[int]int{}
	for c := 0; c < channels; c++ {
		steps[c] = max
	}
	return &fakeElement{min: min, max: max, channels: channels, steps: steps, switches: map[int]bool{}}
}

func (f *fakeElement) HasSwitch(mixerpath.Direction) bool { return true }
func (f *fakeElement) HasVolume(mixerpath.Direction) bool { return true }
func (f *fakeElement) HasEnum() bool                      { return len(f.enumItems) > 0 }
func (f *fakeElement) VolumeRange(mixerpath.Direction) (int, int, bool) {
	return f.min, f.max, true
}
func (f *fakeElement) DBRange(mixerpath.Direction) (int, int, bool) {
	if f.noDB {
		return 0, 0, false
	}
	return f.min * 100, f.max * 100, true
}
func (f *fakeElement) StepToDB(_ mixerpath.Direction, step int) (int, bool) {
	if f.noDB {
		return 0, false
	}
	return step * 100, true
}
func (f *fakeElement) DBToStep(_ mixerpath.Direction, mB int, mode mixerpath.RoundMode) (int, bool) {
	if f.noDB {
		return 0, false
	}
	step := mB / 100
	if mode == mixerpath.RoundUp && mB%100 != 0 {
		step++
	}
	if step < f.min {
		step = f.min
	}
	if step > f.max {
		step = f.max
	}
	return step, true
}
func (f *fakeElement) HasChannel(_ mixerpath.Direction, ch int) bool { return ch < f.channels }
func (f *fakeElement) ChannelCount(mixerpath.Direction) int         { return f.channels }
func (f *fakeElement) GetVolumeRaw(_ mixerpath.Direction, ch int) (int, bool) {
	v, ok := f.steps[ch]
	return v, ok
}
func (f *fakeElement) SetVolumeRaw(_ mixerpath.Direction, ch int, step int) error {
	f.steps[ch] = step
	return nil
}
func (f *fakeElement) GetSwitch(_ mixerpath.Direction, ch int) (bool, bool) {
	on, ok := f.switches[ch]
	if !ok {
		return true, true
	}
	return on, true
}
func (f *fakeElement) SetSwitch(_ mixerpath.Direction, ch int, on bool) error {
	f.switches[ch] = on
	return nil
}
func (f *fakeElement) EnumItems() []string      { return f.enumItems }
func (f *fakeElement) GetEnumItem() (int, bool) { return f.enumIndex, true }
func (f *fakeElement) SetEnumItem(i int) error   { f.enumIndex = i; return nil }

type fakeBackend struct {
	elements map[string]*fakeElement
}

func (b *fakeBackend) ElementByName(name string) (mixerpath.ElementHandle, bool) {
	e, ok := b.elements[name]
	return e, ok
}
func (b *fakeBackend) JackByName(string) (mixerpath.JackHandle, bool) { return nil, false }

func TestPathProbeAndVolumeRoundTrip(t *testing.T) {
	backend := &fakeBackend{elements: map[string]*fakeElement{
		"Master": newFakeElement(-64, 0, 2),
	}}
	path := &mixerpath.Path{
		Name:      "analog-output",
		Direction: mixerpath.Playback,
		Elements: []*mixerpath.Element{
			{Name: "Master", Direction: mixerpath.Playback, VolumeUse: mixerpath.VolumeMerge, SwitchUse: mixerpath.SwitchMute},
		},
	}
	require.NoError(t, path.Probe(backend))
	assert.False(t, path.Dropped())
	assert.True(t, path.HasVolume())
	assert.True(t, path.HasDB())
	assert.True(t, path.HasMute())

	stereo := sample.Map{sample.FrontLeft, sample.FrontRight}
	target := volume.ChannelVolume{volume.Norm / 2, volume.Norm}
	achieved, err := path.SetVolume(mixerpath.Playback, stereo, target, mixerpath.RoundNearest)
	require.NoError(t, err)
	assert.InDelta(t, float64(target[0]), float64(achieved[0]), float64(volume.Norm)/64)
	assert.InDelta(t, float64(target[1]), float64(achieved[1]), float64(volume.Norm)/64)

	got, err := path.GetVolume(mixerpath.Playback, stereo)
	require.NoError(t, err)
	assert.Equal(t, achieved, got)

	require.NoError(t, path.SetMute(mixerpath.Playback, true))
	assert.True(t, path.GetMute(mixerpath.Playback))
}

func TestPathRequiredElementAbsentDrops(t *testing.T) {
	backend := &fakeBackend{elements: map[string]*fakeElement{}}
	path := &mixerpath.Path{
		Name: "broken",
		Elements: []*mixerpath.Element{
			{Name: "Missing", VolumeUse: mixerpath.VolumeMerge, Required: mixerpath.RequiredVolume},
		},
	}
	require.NoError(t, path.Probe(backend))
	assert.True(t, path.Dropped())
}

func TestPathRequiredAbsentElementPresentDrops(t *testing.T) {
	backend := &fakeBackend{elements: map[string]*fakeElement{
		"Loopback": newFakeElement(0, 64, 2),
	}}
	path := &mixerpath.Path{
		Name: "no-loopback",
		Elements: []*mixerpath.Element{
			{Name: "Loopback", Direction: mixerpath.Playback, VolumeUse: mixerpath.VolumeMerge, RequiredAbsent: mixerpath.RequiredVolume},
		},
	}
	require.NoError(t, path.Probe(backend))
	assert.True(t, path.Dropped())
}

func TestPathRequiredAbsentOptionPresentDropsElement(t *testing.T) {
	input := newFakeElement(0, 0, 1)
	input.enumItems = []string{"Mic", "Line"}
	backend := &fakeBackend{elements: map[string]*fakeElement{"Input Source": input}}

	el := &mixerpath.Element{Name: "Input Source", EnumUse: mixerpath.EnumSelect}
	el.AddOption(&mixerpath.Option{Name: "mic", AlsaName: "Mic", RequiredAbsent: mixerpath.RequiredAny})
	path := &mixerpath.Path{
		Name:      "no-mic",
		Direction: mixerpath.Capture,
		Elements:  []*mixerpath.Element{el},
	}
	require.NoError(t, path.Probe(backend))
	assert.True(t, path.Dropped())
}

func TestPathSetCondensationDropsSubset(t *testing.T) {
	backend := &fakeBackend{elements: map[string]*fakeElement{
		"PCM": newFakeElement(0, 64, 2),
	}}
	wide := &mixerpath.Path{
		Name:      "wide",
		Direction: mixerpath.Playback,
		Elements: []*mixerpath.Element{
			{Name: "PCM", Direction: mixerpath.Playback, VolumeUse: mixerpath.VolumeMerge},
		},
	}
	narrow := &mixerpath.Path{
		Name:      "narrow",
		Direction: mixerpath.Playback,
		Elements: []*mixerpath.Element{
			{Name: "PCM", Direction: mixerpath.Playback, VolumeUse: mixerpath.VolumeMerge, VolumeLimit: 32, HasVolumeLimit: true},
		},
	}
	ps := &mixerpath.PathSet{Direction: mixerpath.Playback, Paths: []*mixerpath.Path{wide, narrow}}
	require.NoError(t, ps.Probe(backend))
	ps.Condense()
	require.Len(t, ps.Paths, 1)
	assert.Equal(t, "wide", ps.Paths[0].Name)
}

func TestPathPortBindingsNamingFromSettings(t *testing.T) {
	input := newFakeElement(0, 0, 1)
	input.enumItems = []string{"Mic", "Line"}
	backend := &fakeBackend{elements: map[string]*fakeElement{"Input Source": input}}

	el := &mixerpath.Element{Name: "Input Source", EnumUse: mixerpath.EnumSelect}
	el.AddOption(&mixerpath.Option{Name: "mic", AlsaName: "Mic"})
	el.AddOption(&mixerpath.Option{Name: "line-in", AlsaName: "Line"})
	path := &mixerpath.Path{
		Name:        "analog-input",
		Description: "Analog Input",
		Direction:   mixerpath.Capture,
		Elements:    []*mixerpath.Element{el},
	}
	ps := &mixerpath.PathSet{Direction: mixerpath.Capture, Paths: []*mixerpath.Path{path}}
	require.NoError(t, ps.Probe(backend))
	ps.Condense()
	require.Len(t, ps.Paths, 1)

	bindings := ps.Paths[0].PortBindings()
	require.Len(t, bindings, 2)
	names := []string{bindings[0].Name, bindings[1].Name}
	assert.Contains(t, names, "analog-input;mic")
	assert.Contains(t, names, "analog-input;line-in")
	for _, b := range bindings {
		require.NotNil(t, b.Setting)
		assert.Contains(t, b.Description, "Analog Input / ")
	}
}

func TestPathPortBindingsSingleWithoutSettings(t *testing.T) {
	backend := &fakeBackend{elements: map[string]*fakeElement{
		"Master": newFakeElement(-64, 0, 2),
	}}
	path := &mixerpath.Path{
		Name:        "analog-output",
		Description: "Analog Output",
		Direction:   mixerpath.Playback,
		Elements: []*mixerpath.Element{
			{Name: "Master", Direction: mixerpath.Playback, VolumeUse: mixerpath.VolumeMerge},
		},
	}
	ps := &mixerpath.PathSet{Direction: mixerpath.Playback, Paths: []*mixerpath.Path{path}}
	require.NoError(t, ps.Probe(backend))
	ps.Condense()
	require.Len(t, ps.Paths, 1)

	bindings := ps.Paths[0].PortBindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, "analog-output", bindings[0].Name)
	assert.Nil(t, bindings[0].Setting)
}

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/device/config"
	"github.com/pipelined/device/mixerpath"
)

const samplePath = `
[General]
priority = 100
description = Speaker
mute-during-activation = yes

[Element Master]
direction = playback
switch = mute
volume = merge
volume-limit = 87

[Element Master Mono]
direction = playback
switch = ignore
volume = ignore
override-map.1 = all-left,all-right

[Jack Headphone]
state.plugged = yes
state.unplugged = no
`

func TestParsePathBasic(t *testing.T) {
	path, err := config.ParsePath(samplePath)
	require.NoError(t, err)
	assert.EqualValues(t, 100, path.Priority)
	assert.Equal(t, "Speaker", path.Description)
	assert.True(t, path.MuteDuringActivation)
	require.Len(t, path.Elements, 2)
	assert.Equal(t, "Master", path.Elements[0].Name)
	assert.Equal(t, mixerpath.SwitchMute, path.Elements[0].SwitchUse)
	assert.Equal(t, mixerpath.VolumeMerge, path.Elements[0].VolumeUse)
	assert.Equal(t, 87, path.Elements[0].VolumeLimit)
	assert.True(t, path.Elements[0].HasVolumeLimit)
	require.Len(t, path.Jacks, 1)
	assert.Equal(t, "Headphone", path.Jacks[0].Name)
	assert.Equal(t, mixerpath.AvailableYes, path.Jacks[0].StatePlugged)
}

const samplePathWithOption = `
[Element Input Source]
direction = capture
enumeration = select

[Option Input Source:Mic]
priority = 100
name = analog-input-mic

[Option Input Source:Line]
priority = 90
name = analog-input-linein
`

func TestParsePathOptions(t *testing.T) {
	path, err := config.ParsePath(samplePathWithOption)
	require.NoError(t, err)
	require.Len(t, path.Elements, 1)
	opts := path.Elements[0].Options()
	require.Len(t, opts, 2)
	assert.Equal(t, "mic", opts[0].Name)
	assert.Equal(t, "line-in", opts[1].Name)
}

const samplePathWithOptionRequiredFields = `
[Element Input Source]
direction = capture
enumeration = select

[Option Input Source:Mic]
name = mic
required-any = any

[Option Input Source:Line]
name = line-in
required-absent = yes
`

func TestParsePathOptionRequiredFieldsAreIndependent(t *testing.T) {
	path, err := config.ParsePath(samplePathWithOptionRequiredFields)
	require.NoError(t, err)
	opts := path.Elements[0].Options()
	require.Len(t, opts, 2)

	assert.Equal(t, mixerpath.RequiredAny, opts[0].RequiredAny)
	assert.Equal(t, mixerpath.RequiredIgnore, opts[0].Required)
	assert.Equal(t, mixerpath.RequiredIgnore, opts[0].RequiredAbsent)

	assert.Equal(t, mixerpath.RequiredAbsent, opts[1].RequiredAbsent)
	assert.Equal(t, mixerpath.RequiredIgnore, opts[1].Required)
	assert.Equal(t, mixerpath.RequiredIgnore, opts[1].RequiredAny)
}

func TestParsePathUnknownElementOption(t *testing.T) {
	_, err := config.ParsePath("[Option Ghost:foo]\nname = x\n")
	assert.Error(t, err)
}

const sampleProfileSet = `
[General]
auto-profiles = yes

[Mapping analog-stereo]
device-strings = front:%f
channel-map = front-left,front-right
paths-output = analog-output
direction = playback
priority = 10

[Profile output:analog-stereo]
output-mappings = analog-stereo
priority = 10
description = Analog Stereo

[DecibelFix PCM]
db-values = 0:-4650 1:-4400 2:-4150 3:-3900
`

func TestParseProfileSet(t *testing.T) {
	set, err := config.ParseProfileSet(sampleProfileSet)
	require.NoError(t, err)
	assert.True(t, set.AutoProfiles)

	m, ok := set.Mappings["analog-stereo"]
	require.True(t, ok)
	assert.Equal(t, []string{"front:%f"}, m.DeviceStrings)
	assert.Len(t, m.ChannelMap, 2)

	p, ok := set.Profiles["output:analog-stereo"]
	require.True(t, ok)
	assert.Equal(t, []string{"analog-stereo"}, p.OutputMappings)

	fix, ok := set.DecibelFixes["PCM"]
	require.True(t, ok)
	assert.Equal(t, -4650, fix.DBAtStep(0))
	assert.Equal(t, -3900, fix.DBAtStep(3))
}

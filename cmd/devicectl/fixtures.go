package main

// demoPathOutput and demoPathInput are small but representative mixer
// path files (§6's grammar) resolved against the in-memory backend in
// backend.go. A packaged deployment reads these from
// /usr/share/…/paths/ instead; devicectl embeds them so the probe and
// dump subcommands run without any files on disk.
const demoPathOutput = `
[General]
priority = 10
description = Speaker

[Element Master]
switch = mute
volume = merge
direction = playback

[Element Headphone]
switch = mute
volume = merge
direction = playback
required = ignore
`

const demoPathHeadphones = `
[General]
priority = 20
description = Headphones

[Jack Headphone Jack]
state.plugged = yes
state.unplugged = no

[Element Master]
switch = mute
volume = merge
direction = playback

[Element Headphone]
switch = mute
volume = merge
direction = playback
required = switch
`

const demoPathInput = `
[General]
priority = 10
description = Microphone

[Element Capture]
switch = mute
volume = merge
direction = capture

[Element Input Source]
enumeration = select

[Option Input Source:Mic]
priority = 10
name = mic

[Option Input Source:Line]
priority = 5
name = line-in
`

const demoProfileSet = `
[General]
auto-profiles = yes

[Mapping analog-stereo-output]
device-strings = hw:0,0
channel-map = front-left,front-right
paths-output = output
direction = playback
description = Analog Stereo Output
priority = 10

[Mapping analog-stereo-input]
device-strings = hw:0,0
channel-map = front-left,front-right
paths-input = input
direction = capture
description = Analog Stereo Input
priority = 10

[Profile output:analog-stereo+input:analog-stereo]
output-mappings = analog-stereo-output
input-mappings = analog-stereo-input
description = Analog Stereo Duplex
priority = 10
`

package sourceoutput_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/device/device"
	"github.com/pipelined/device/mixerpath"
	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/sourceoutput"
	"github.com/pipelined/device/volume"

	"pipelined.dev/signal"
)

func newSource(t *testing.T) *device.Device {
	t.Helper()
	d, err := device.New(1, device.NewData{
		Name:      "mic",
		Direction: mixerpath.Capture,
		Spec:      sample.Spec{Rate: 44100, Channels: 1},
	})
	require.NoError(t, err)
	require.NoError(t, d.Put())
	return d
}

func chunk(n int, fill float64) signal.Floating {
	b := signal.Allocator{Channels: 1, Capacity: n, Length: n}.Float64()
	for i := 0; i < b.Len(); i++ {
		b.SetSample(i, fill)
	}
	return b
}

func TestPushAppliesSoftVolume(t *testing.T) {
	src := newSource(t)
	out, err := sourceoutput.New(10, src, sample.Spec{Rate: 44100, Channels: 1}, 0, 0)
	require.NoError(t, err)
	out.SetRequestedLatency(0)

	var got signal.Floating
	out.SetPush(func(c signal.Floating) { got = c })
	out.SetSoftVolume(volume.ChannelVolume{volume.Norm / 2})

	out.Push(chunk(4, 1.0))

	require.NotNil(t, got)
	assert.InDelta(t, 0.5, got.Sample(0), 1e-9)
}

func TestPushSilencesWhenMuted(t *testing.T) {
	src := newSource(t)
	out, err := sourceoutput.New(10, src, sample.Spec{Rate: 44100, Channels: 1}, 0, 0)
	require.NoError(t, err)

	var got signal.Floating
	out.SetPush(func(c signal.Floating) { got = c })
	out.SetMute(true, false)

	out.Push(chunk(4, 1.0))

	require.NotNil(t, got)
	assert.Equal(t, 0.0, got.Sample(0))
}

func TestMoveToRebindsDevice(t *testing.T) {
	src := newSource(t)
	dest := newSource(t)

	out, err := sourceoutput.New(10, src, sample.Spec{Rate: 44100, Channels: 1}, 0, 0)
	require.NoError(t, err)

	require.NoError(t, out.MoveTo(context.Background(), dest, false))
	assert.Same(t, dest, out.Device())

	streams := dest.Streams()
	require.Len(t, streams, 1)
	assert.Equal(t, uint32(10), streams[0].Index())
}

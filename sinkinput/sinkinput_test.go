package sinkinput_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/device/device"
	"github.com/pipelined/device/mixerpath"
	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/sinkinput"

	"pipelined.dev/signal"
)

func newSink(t *testing.T) *device.Device {
	t.Helper()
	d, err := device.New(1, device.NewData{
		Name:      "speakers",
		Direction: mixerpath.Playback,
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

func TestPeekFillsFromPop(t *testing.T) {
	sink := newSink(t)
	in, err := sinkinput.New(20, sink, sample.Spec{Rate: 44100, Channels: 1}, 0, 0)
	require.NoError(t, err)

	in.SetPop(func(ilength int) (signal.Floating, error) {
		return chunk(ilength, 1.0), nil
	})

	buf, vol, kind := in.Peek(4)
	require.Equal(t, 4, buf.Length())
	assert.Equal(t, sinkinput.VolumeSoft, kind)
	assert.Equal(t, 1, len(vol))
}

func TestPeekUnderrunsWhenPopErrors(t *testing.T) {
	sink := newSink(t)
	in, err := sinkinput.New(21, sink, sample.Spec{Rate: 44100, Channels: 1}, 0, 0)
	require.NoError(t, err)

	in.SetPop(func(ilength int) (signal.Floating, error) {
		return nil, errors.New("no data")
	})

	buf, _, _ := in.Peek(4)
	assert.Equal(t, 0, buf.Length())
}

func TestProcessUnderrunSilencesWhenConfirmed(t *testing.T) {
	sink := newSink(t)
	in, err := sinkinput.New(22, sink, sample.Spec{Rate: 44100, Channels: 1}, 0, 0)
	require.NoError(t, err)
	in.SetProcessUnderrun(func() bool { return true })

	assert.True(t, in.ProcessUnderrun())
}

func TestMayMoveToRejectsSyncGroupMember(t *testing.T) {
	sink := newSink(t)
	a, err := sinkinput.New(23, sink, sample.Spec{Rate: 44100, Channels: 1}, 0, 0)
	require.NoError(t, err)
	b, err := sinkinput.New(24, sink, sample.Spec{Rate: 44100, Channels: 1}, 0, 0)
	require.NoError(t, err)

	a.JoinSyncGroup(b)
	assert.True(t, a.InSyncGroup())
	assert.False(t, a.MayMoveTo(sink))
}

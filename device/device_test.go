package device_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/device/device"
	"github.com/pipelined/device/mixerpath"
	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/volume"
)

type fakeStream struct {
	index        uint32
	volume       volume.ChannelVolume
	channelMap   sample.Map
	volumeFactor volume.Linear
	origin       *device.Device
	corked       bool

	realRatio volume.ChannelVolume
	refRatio  volume.ChannelVolume
	soft      volume.ChannelVolume
	suspended bool
}

func (f *fakeStream) Index() uint32                         { return f.index }
func (f *fakeStream) Volume() volume.ChannelVolume           { return f.volume }
func (f *fakeStream) ChannelMap() sample.Map                 { return f.channelMap }
func (f *fakeStream) VolumeFactor() volume.Linear            { return f.volumeFactor }
func (f *fakeStream) SetRealRatio(v volume.ChannelVolume)    { f.realRatio = v }
func (f *fakeStream) SetReferenceRatio(v volume.ChannelVolume) { f.refRatio = v }
func (f *fakeStream) SetSoftVolume(v volume.ChannelVolume)   { f.soft = v }
func (f *fakeStream) OriginDevice() *device.Device           { return f.origin }
func (f *fakeStream) Corked() bool                           { return f.corked }
func (f *fakeStream) Suspend(suspended bool)                 { f.suspended = suspended }

func newTestDevice(t *testing.T, flags device.Flags) *device.Device {
	t.Helper()
	d, err := device.New(1, device.NewData{
		Name:      "test-sink",
		Direction: mixerpath.Playback,
		Spec:      sample.Spec{Rate: 44100, Channels: 2},
		Flags:     flags,
	})
	require.NoError(t, err)
	require.NoError(t, d.Put())
	return d
}

func TestNewPutTransitionsToIdle(t *testing.T) {
	d := newTestDevice(t, 0)
	assert.Equal(t, device.StateIdle, d.State())
}

func TestAttachMovesDeviceToRunning(t *testing.T) {
	d := newTestDevice(t, 0)
	s := &fakeStream{
		index:        1,
		volume:       volume.NormVolume(2),
		channelMap:   sample.Default(2),
		volumeFactor: volume.Norm,
	}
	require.NoError(t, d.Attach(s))
	assert.Equal(t, device.StateRunning, d.State())

	d.Detach(s)
	assert.Equal(t, device.StateIdle, d.State())
}

func TestFlatVolumeTracksLoudestStream(t *testing.T) {
	d := newTestDevice(t, device.FlagFlatVolume)

	quiet := &fakeStream{index: 1, volume: volume.ChannelVolume{volume.Norm / 2, volume.Norm / 2}, channelMap: sample.Default(2), volumeFactor: volume.Norm}
	loud := &fakeStream{index: 2, volume: volume.NormVolume(2), channelMap: sample.Default(2), volumeFactor: volume.Norm}

	require.NoError(t, d.Attach(quiet))
	require.NoError(t, d.Attach(loud))

	got, err := d.GetVolume(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, volume.Norm, got[0])
	assert.Equal(t, volume.Norm, got[1])

	assert.Equal(t, volume.Norm, loud.realRatio[0])
	assert.InDelta(t, float64(volume.Norm)/2, float64(quiet.realRatio[0]), float64(volume.Norm)*0.01)
}

func TestFlatVolumeWithSingleQuietStreamDropsBelowNorm(t *testing.T) {
	d := newTestDevice(t, device.FlagFlatVolume)

	quiet := &fakeStream{index: 1, volume: volume.ChannelVolume{volume.Norm / 2, volume.Norm / 2}, channelMap: sample.Default(2), volumeFactor: volume.Norm}
	require.NoError(t, d.Attach(quiet))

	got, err := d.GetVolume(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, volume.Norm/2, got[0])
	assert.Equal(t, volume.Norm/2, got[1])
}

func TestFlatVolumeOriginSharingStreamKeepsVolumeFactor(t *testing.T) {
	root := newTestDevice(t, device.FlagFlatVolume)
	child, err := device.New(2, device.NewData{
		Name:      "filter",
		Direction: mixerpath.Playback,
		Spec:      sample.Spec{Rate: 44100, Channels: 2},
		Flags:     device.FlagFlatVolume | device.FlagSharedVolumeWithMaster,
		ShareRoot: root,
	})
	require.NoError(t, err)
	require.NoError(t, child.Put())

	s := &fakeStream{
		index:        1,
		volume:       volume.ChannelVolume{volume.Norm * 8 / 10, volume.Norm * 8 / 10},
		channelMap:   sample.Default(2),
		volumeFactor: volume.Norm / 2,
		origin:       child,
	}
	require.NoError(t, child.Attach(s))

	require.NotEmpty(t, s.soft)
	assert.Equal(t, volume.Norm/2, s.soft[0])
	assert.Equal(t, volume.Norm/2, s.soft[1])
}

func TestSetPortDeferredRoundTrip(t *testing.T) {
	calls := 0
	d, err := device.New(1, device.NewData{
		Name:      "deferred-sink",
		Direction: mixerpath.Playback,
		Spec:      sample.Spec{Rate: 44100, Channels: 2},
		Flags:     device.FlagDeferredVolume,
		Driver: device.Driver{
			SetPort: func(name string) error { calls++; return nil },
		},
		// "headphones" outranks "speaker", so New activates it and the
		// switch to "speaker" below is a real port change.
		Ports: []*device.Port{{Name: "speaker", Priority: 1}, {Name: "headphones", Priority: 2}},
	})
	require.NoError(t, err)
	require.NoError(t, d.Put())

	require.NoError(t, d.SetPort(context.Background(), "speaker", false))
	assert.Equal(t, 1, calls)
}

func TestSetMuteIsIdempotentAndCallsDriver(t *testing.T) {
	calls := 0
	d, err := device.New(1, device.NewData{
		Name:      "muted-sink",
		Direction: mixerpath.Playback,
		Spec:      sample.Spec{Rate: 44100, Channels: 2},
		Driver: device.Driver{
			SetMute: func(bool) error { calls++; return nil },
		},
	})
	require.NoError(t, err)
	require.NoError(t, d.Put())

	require.NoError(t, d.SetMute(context.Background(), true, false))
	require.NoError(t, d.SetMute(context.Background(), true, false))
	assert.Equal(t, 1, calls)
	assert.True(t, d.GetMute())
}

func TestSuspendRejectedForMonitorOnNonPassthroughCause(t *testing.T) {
	root := newTestDevice(t, 0)
	monitor, err := device.New(2, device.NewData{
		Name:      "monitor",
		Direction: mixerpath.Capture,
		Spec:      sample.Spec{Rate: 44100, Channels: 2},
		MonitorOf: root,
	})
	require.NoError(t, err)
	require.NoError(t, monitor.Put())

	err = monitor.Suspend(context.Background(), true, device.CauseUser)
	assert.ErrorIs(t, err, device.ErrNotSupported)

	require.NoError(t, monitor.Suspend(context.Background(), true, device.CausePassthrough))
	assert.Equal(t, device.StateSuspended, monitor.State())
}

func TestUpdateRateRefusedWhileRunning(t *testing.T) {
	d := newTestDevice(t, 0)
	s := &fakeStream{index: 1, volume: volume.NormVolume(2), channelMap: sample.Default(2), volumeFactor: volume.Norm}
	require.NoError(t, d.Attach(s))

	_, err := d.UpdateRate(context.Background(), 48000, false)
	assert.ErrorIs(t, err, device.ErrBadState)
}

func TestSetPortUnknownFails(t *testing.T) {
	d := newTestDevice(t, 0)
	err := d.SetPort(context.Background(), "nonexistent", false)
	assert.ErrorIs(t, err, device.ErrNoEntity)
}

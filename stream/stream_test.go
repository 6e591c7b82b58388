package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/device/device"
	"github.com/pipelined/device/mixerpath"
	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/stream"
	"github.com/pipelined/device/volume"
)

func newTestSpec() sample.Spec {
	return sample.Spec{Rate: 44100, Channels: 2}.WithDefaultMap()
}

func TestNewBaseStartsRunningUnlessStartCorked(t *testing.T) {
	running := stream.NewBase(1, newTestSpec(), 0)
	assert.False(t, running.Corked())

	corked := stream.NewBase(2, newTestSpec(), stream.FlagStartCorked)
	assert.True(t, corked.Corked())
}

func TestSetVolumeIsLocalUntilDeviceRecomputes(t *testing.T) {
	b := stream.NewBase(1, newTestSpec(), 0)
	target := volume.ChannelVolume{volume.Norm / 2, volume.Norm}
	b.SetVolume(target)
	assert.Equal(t, target, b.Volume())
	// real_ratio/soft_volume stay at their NewBase defaults: only the
	// owning device's SetVolume recomputes them.
	assert.Equal(t, volume.NormVolume(2), b.RealRatio())
}

func TestVolumeFactorFoldsNamedLayers(t *testing.T) {
	b := stream.NewBase(1, newTestSpec(), 0)
	b.SetVolumeFactor(volume.Norm)
	b.SetNamedVolumeFactor("fade", volume.Norm/2)
	assert.Equal(t, volume.Linear(volume.Norm/2), b.VolumeFactor())

	b.SetNamedVolumeFactor("duck", volume.Norm/2)
	assert.Equal(t, volume.Linear(volume.Norm/4), b.VolumeFactor())

	b.RemoveNamedVolumeFactor("duck")
	assert.Equal(t, volume.Linear(volume.Norm/2), b.VolumeFactor())
}

func TestCorkTogglesState(t *testing.T) {
	b := stream.NewBase(1, newTestSpec(), 0)
	b.Cork(true)
	assert.True(t, b.Corked())
	b.Cork(false)
	assert.False(t, b.Corked())
}

func TestSetReferenceRatioAndRealRatioRoundTrip(t *testing.T) {
	b := stream.NewBase(1, newTestSpec(), 0)
	want := volume.ChannelVolume{volume.Norm / 4, volume.Norm}
	b.SetRealRatio(want)
	b.SetReferenceRatio(want)
	assert.Equal(t, want, b.RealRatio())
	assert.Equal(t, want, b.ReferenceRatio())
}

func TestApplyMoveVolumeNonFlatCarriesReferenceRatioAsVolume(t *testing.T) {
	dest, err := device.New(1, device.NewData{
		Name:      "dest-sink",
		Direction: mixerpath.Playback,
		Spec:      newTestSpec(),
	})
	require.NoError(t, err)
	require.NoError(t, dest.Put())

	b := stream.NewBase(1, newTestSpec(), 0)
	refRatio := volume.ChannelVolume{volume.Norm / 2, volume.Norm}
	b.SetReferenceRatio(refRatio)
	b.SetVolumeFactor(volume.Norm)

	b.ApplyMoveVolume(dest)

	assert.Equal(t, refRatio, b.Volume())
	assert.Equal(t, refRatio, b.RealRatio())
}

func TestApplyMoveVolumeFlatRemapsReferenceRatioIntoDestVolume(t *testing.T) {
	dest, err := device.New(1, device.NewData{
		Name:      "dest-sink-flat",
		Direction: mixerpath.Playback,
		Spec:      newTestSpec(),
		Flags:     device.FlagFlatVolume,
	})
	require.NoError(t, err)
	require.NoError(t, dest.Put())

	b := stream.NewBase(1, newTestSpec(), 0)
	refRatio := volume.ChannelVolume{volume.Norm / 2, volume.Norm}
	b.SetReferenceRatio(refRatio)

	b.ApplyMoveVolume(dest)

	// dest has no streams attached yet, so its reference volume is
	// still unity: the remapped ratio passes through unchanged.
	assert.Equal(t, refRatio, b.Volume())
}

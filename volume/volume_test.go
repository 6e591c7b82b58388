package volume_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/volume"
)

func TestDBRoundTrip(t *testing.T) {
	for _, db := range []float64{-40, -6, -3, 0, 3} {
		l := volume.FromDB(db)
		got := l.DB()
		assert.InDelta(t, db, got, 0.1, "db round trip for %v", db)
	}
}

func TestMutedHasNoFiniteDB(t *testing.T) {
	assert.True(t, volume.Muted.IsMuted())
	assert.Equal(t, true, volume.Muted.DB() < -1000)
}

func TestCompatibleWith(t *testing.T) {
	cv := volume.NormVolume(2)
	assert.True(t, cv.CompatibleWith(sample.Spec{Channels: 2}))
	assert.False(t, cv.CompatibleWith(sample.Spec{Channels: 1}))
}

func TestElementWiseMax(t *testing.T) {
	a := volume.ChannelVolume{volume.Norm / 2, volume.Norm}
	b := volume.ChannelVolume{volume.Norm, volume.Norm / 4}
	got := volume.ElementWiseMax(a, b)
	assert.Equal(t, volume.ChannelVolume{volume.Norm, volume.Norm}, got)
}

func TestRemapIdentity(t *testing.T) {
	stereo := sample.Map{sample.FrontLeft, sample.FrontRight}
	cv := volume.ChannelVolume{volume.Norm / 2, volume.Norm}
	got := volume.Remap(cv, stereo, stereo, nil)
	assert.Equal(t, cv, got)
}

func TestRemapUniformFallback(t *testing.T) {
	mono := sample.Map{sample.Mono}
	stereo := sample.Map{sample.FrontLeft, sample.FrontRight}
	cv := volume.ChannelVolume{volume.Norm / 2}
	got := volume.Remap(cv, mono, stereo, nil)
	assert.Equal(t, volume.ChannelVolume{volume.Norm / 2, volume.Norm / 2}, got)
}

func TestRemapPreservesTemplateWhenReversible(t *testing.T) {
	stereo := sample.Map{sample.FrontLeft, sample.FrontRight}
	mono := sample.Map{sample.FrontLeft}
	template := volume.ChannelVolume{volume.Norm / 2, volume.Norm}
	cv := volume.ChannelVolume{volume.Norm / 2}
	got := volume.Remap(cv, mono, stereo, template)
	assert.Equal(t, template, got)
}

func TestDivideSkipsMutedDenominator(t *testing.T) {
	cv := volume.ChannelVolume{volume.Norm / 2, volume.Norm}
	den := volume.ChannelVolume{volume.Muted, volume.Norm}
	got := volume.Divide(cv, den)
	assert.Equal(t, volume.Norm, got[0], "muted channel left untouched at Norm")
	assert.Equal(t, volume.Norm, got[1])
}

func TestHWRangeRoundTrip(t *testing.T) {
	r := volume.HWRange{Min: 0, Max: 64}
	for _, step := range []int{0, 16, 32, 64} {
		l := r.FromHW(step)
		got := r.ToHW(l)
		assert.InDelta(t, step, got, 1)
	}
}

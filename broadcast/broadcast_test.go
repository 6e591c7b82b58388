package broadcast_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/device/broadcast"

	"pipelined.dev/signal"
)

func TestPostFansOutToAllTaps(t *testing.T) {
	hub := broadcast.NewHub(2, 4)
	tapA := hub.Attach()
	tapB := hub.Attach()

	in := signal.Allocator{Channels: 2, Capacity: 4, Length: 4}.Float64()
	in.SetSample(0, 1)
	in.SetSample(1, 2)

	hub.Post(in)

	ctx := context.Background()
	fa, ok := tapA.Recv(ctx, nil)
	require.True(t, ok)
	fb, ok := tapB.Recv(ctx, nil)
	require.True(t, ok)

	assert.Equal(t, 1.0, fa.Buffer().Sample(0))
	assert.Equal(t, 1.0, fb.Buffer().Sample(0))
}

func TestDetachClosesTap(t *testing.T) {
	hub := broadcast.NewHub(1, 2)
	tap := hub.Attach()
	hub.Detach(tap)

	_, ok := tap.Recv(context.Background(), nil)
	assert.False(t, ok)
}

package mixerbus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/device/mixerbus"

	"pipelined.dev/signal"
)

func buf(channels, n int, fill float64) signal.Floating {
	b := signal.Allocator{Channels: channels, Capacity: n, Length: n}.Float64()
	for i := 0; i < b.Len(); i++ {
		b.SetSample(i, fill)
	}
	return b
}

func TestBusAveragesTwoInputs(t *testing.T) {
	bus := mixerbus.NewBus(1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := bus.Attach()
	b := bus.Attach()
	out := bus.Run(ctx)

	go func() {
		require.NoError(t, a.Contribute(ctx, buf(1, 4, 1.0)))
	}()
	go func() {
		require.NoError(t, b.Contribute(ctx, buf(1, 4, 0.5)))
	}()

	summed := <-out
	assert.InDelta(t, 0.75, summed.Sample(0), 1e-9)
}

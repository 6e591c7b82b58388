package capturebuffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/device/capturebuffer"

	"pipelined.dev/signal"
)

func piece(n int) signal.Floating {
	return signal.Allocator{Channels: 1, Capacity: n, Length: n}.Float64()
}

func TestDrainExcessStopsAtLimit(t *testing.T) {
	q := capturebuffer.New()
	q.Push(piece(4))
	q.Push(piece(4))
	q.Push(piece(4))
	assert.Equal(t, 12, q.Len())

	drained := q.DrainExcess(4)
	assert.Len(t, drained, 2)
	assert.Equal(t, 4, q.Len())
}

func TestFlushDrainsEverything(t *testing.T) {
	q := capturebuffer.New()
	q.Push(piece(2))
	q.Push(piece(3))
	drained := q.Flush()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, q.Len())
}

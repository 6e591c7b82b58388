package renderqueue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/device/renderqueue"

	"pipelined.dev/signal"
)

func chunk(values ...float64) signal.Floating {
	b := signal.Allocator{Channels: 1, Capacity: len(values), Length: len(values)}.Float64()
	for i, v := range values {
		b.SetSample(i, v)
	}
	return b
}

func TestReadAdvancesAndRewindRestores(t *testing.T) {
	q := renderqueue.New()
	q.Append(chunk(1, 2, 3))
	q.Append(chunk(4, 5))

	out := signal.Allocator{Channels: 1, Capacity: 4, Length: 4}.Float64()
	n := q.Read(out)
	assert.Equal(t, 4, n)
	assert.Equal(t, 1.0, out.Sample(0))
	assert.Equal(t, 4.0, out.Sample(3))
	assert.Equal(t, 1, q.Readable())

	rewound := q.Rewind(2)
	assert.Equal(t, 2, rewound)
	assert.Equal(t, 3, q.Readable())
}

func TestDropFreesConsumedLinks(t *testing.T) {
	q := renderqueue.New()
	q.Append(chunk(1, 2, 3))
	out := signal.Allocator{Channels: 1, Capacity: 3, Length: 3}.Float64()
	q.Read(out)
	dropped := q.Drop(3)
	assert.Equal(t, 3, dropped)
	assert.Equal(t, 0, q.Buffered())
	assert.Equal(t, 0, q.Rewind(5))
}

func TestFlushDiscardsEverything(t *testing.T) {
	q := renderqueue.New()
	q.Append(chunk(1, 2, 3))
	q.Flush()
	assert.Equal(t, 0, q.Readable())
	assert.Equal(t, 0, q.Buffered())
}

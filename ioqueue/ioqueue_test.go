package ioqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/device/ioqueue"
)

func TestSendWaitsForReply(t *testing.T) {
	q := ioqueue.New(1)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		msg, ok := q.Drain(ctx)
		require.True(t, ok)
		assert.Equal(t, "SET_VOLUME", msg.Kind)
		msg.Reply(42)
	}()

	v, err := q.Send(ctx, "SET_VOLUME", 100)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	<-done
}

func TestPostDoesNotBlockOnConsumer(t *testing.T) {
	q := ioqueue.New(1)
	ctx := context.Background()
	require.True(t, q.Post(ctx, "UPDATE_VOLUME_AND_MUTE", nil))

	msg, ok := q.Drain(ctx)
	require.True(t, ok)
	assert.Equal(t, "UPDATE_VOLUME_AND_MUTE", msg.Kind)
}

func TestSendCanceledByContext(t *testing.T) {
	q := ioqueue.New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Send(ctx, "SET_PORT", "speaker")
	assert.Error(t, err)
}

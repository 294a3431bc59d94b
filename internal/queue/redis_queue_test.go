package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisQueue(client, "signal-jobs", time.Minute)
}

func TestRedisQueue_EnqueueDequeueRoundTrip(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	enqueued, err := q.Enqueue(ctx, Job{SignalID: "sig-1"}, "tick-1")
	require.NoError(t, err)
	require.True(t, enqueued)

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "sig-1", job.SignalID)
}

func TestRedisQueue_DedupWithinSameTick(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, Job{SignalID: "sig-1"}, "tick-1")
	require.NoError(t, err)
	require.True(t, first)

	second, err := q.Enqueue(ctx, Job{SignalID: "sig-1"}, "tick-1")
	require.NoError(t, err)
	require.False(t, second, "duplicate enqueue within the same tick must be a no-op")
}

func TestRedisQueue_DifferentTicksBothEnqueue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, Job{SignalID: "sig-1"}, "tick-1")
	require.NoError(t, err)
	require.True(t, first)

	second, err := q.Enqueue(ctx, Job{SignalID: "sig-1"}, "tick-2")
	require.NoError(t, err)
	require.True(t, second, "a new tick id must re-allow the same signal")
}

func TestRedisQueue_DequeueEmptyReturnsErrEmpty(t *testing.T) {
	q := newTestQueue(t)
	q.popTimeout = 50 * time.Millisecond

	_, err := q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrEmpty)
}

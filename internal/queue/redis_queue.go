package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is the production Queue: a Redis list for job delivery plus a
// SETNX-based dedup key per (signal, tick) that gives single-flight
// semantics without a database advisory lock (spec.md §9 Open Question,
// resolved in favor of the queue owning dedup).
type RedisQueue struct {
	client    *redis.Client
	listKey   string
	dedupTTL  time.Duration
	popTimeout time.Duration
}

// NewRedisQueue builds a RedisQueue. dedupTTL should be at least the
// scheduler's tick interval so a dedup key never expires mid-tick.
func NewRedisQueue(client *redis.Client, listKey string, dedupTTL time.Duration) *RedisQueue {
	return &RedisQueue{client: client, listKey: listKey, dedupTTL: dedupTTL, popTimeout: 5 * time.Second}
}

func (q *RedisQueue) dedupKey(signalID, tickID string) string {
	return fmt.Sprintf("%s:dedup:%s:%s", q.listKey, tickID, signalID)
}

// Enqueue implements Queue. The SETNX guards the LPUSH: only the first
// enqueue of a given (signalID, tickID) pair actually pushes a job.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job, tickID string) (bool, error) {
	ok, err := q.client.SetNX(ctx, q.dedupKey(job.SignalID, tickID), "1", q.dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("queue: dedup SETNX: %w", err)
	}
	if !ok {
		return false, nil
	}

	data, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("queue: marshaling job: %w", err)
	}
	if err := q.client.LPush(ctx, q.listKey, data).Err(); err != nil {
		return false, fmt.Errorf("queue: LPUSH: %w", err)
	}
	return true, nil
}

// Dequeue implements Queue via a blocking right-pop with a bounded wait, so
// a worker can still observe ctx cancellation between polls.
func (q *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	res, err := q.client.BRPop(ctx, q.popTimeout, q.listKey).Result()
	if err == redis.Nil {
		return Job{}, ErrEmpty
	}
	if err != nil {
		return Job{}, fmt.Errorf("queue: BRPOP: %w", err)
	}

	// BRPop returns [key, value]; the job payload is res[1].
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, fmt.Errorf("queue: unmarshaling job: %w", err)
	}
	return job, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// ErrEmpty is returned by Dequeue when the poll window elapsed with no job
// available; callers should treat it as "try again", not a failure.
var ErrEmpty = fmt.Errorf("queue: no job available")

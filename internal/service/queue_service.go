package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"text-extraction-service/internal/entity"
)

var (
	ErrNoJob          = errors.New("no job available")
	ErrInvalidPayload = errors.New("invalid job payload")
)

type Queue interface {
	Enqueue(ctx context.Context, d entity.Descriptor) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Touch(ctx context.Context, d *Delivery) error
	RequeueStale(ctx context.Context, olderThan time.Duration, max int64) (int64, error)
}

// Delivery is a claimed descriptor. Ack it once its outcome is recorded.
type Delivery struct {
	Descriptor entity.Descriptor
	payload    string
}

type Keys struct {
	QueueKey      string
	ProcessingKey string
	// ClaimsKey is a hash of processing payload -> claim time (unix ms).
	ClaimsKey string
}

// redisQueue is a reliable queue on Redis lists.
// Enqueue: LPUSH queue
// Claim:   BRPOPLPUSH queue -> processing, then HSET claims payload now
// Touch:   HSET claims payload now, when a worker starts the job
// Ack:     LREM processing + HDEL claims
// Reaper:  claims older than the visibility timeout go back to the queue
type redisQueue struct {
	rdb  *redis.Client
	keys Keys
	now  func() time.Time
}

func NewRedisQueue(rdb *redis.Client, keys Keys) Queue {
	return &redisQueue{rdb: rdb, keys: keys, now: time.Now}
}

func queueErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", entity.ErrQueue, op, err)
}

func (q *redisQueue) Enqueue(ctx context.Context, d entity.Descriptor) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return queueErr("encode descriptor", err)
	}
	if err := q.rdb.LPush(ctx, q.keys.QueueKey, payload).Err(); err != nil {
		return queueErr("enqueue", err)
	}
	return nil
}

// ClaimBlocking waits up to timeout for a descriptor and returns ErrNoJob when none arrived.
func (q *redisQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	payload, err := q.rdb.BRPopLPush(ctx, q.keys.QueueKey, q.keys.ProcessingKey, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoJob
		}
		return nil, queueErr("claim", err)
	}

	var d entity.Descriptor
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		// poison message: drop it so it is not redelivered forever
		_ = q.rdb.LRem(ctx, q.keys.ProcessingKey, 1, payload).Err()
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if err := q.rdb.HSet(ctx, q.keys.ClaimsKey, payload, q.now().UnixMilli()).Err(); err != nil {
		// without a claim record the reaper still picks it up as an orphan
		return nil, queueErr("record claim", err)
	}
	return &Delivery{Descriptor: d, payload: payload}, nil
}

func (q *redisQueue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.rdb.LRem(ctx, q.keys.ProcessingKey, 1, d.payload).Err(); err != nil {
		return queueErr("ack", err)
	}
	_ = q.rdb.HDel(ctx, q.keys.ClaimsKey, d.payload).Err()
	return nil
}

// Touch restarts the visibility timeout of a claim. Workers call it when they
// actually start a delivery, so time spent waiting for a free worker is not counted.
func (q *redisQueue) Touch(ctx context.Context, d *Delivery) error {
	if err := q.rdb.HSet(ctx, q.keys.ClaimsKey, d.payload, q.now().UnixMilli()).Err(); err != nil {
		return queueErr("touch claim", err)
	}
	return nil
}

// RequeueStale moves claims older than olderThan back to the queue, at most max per call.
// Processing entries without a claim record are stamped now and reaped on a later pass.
// This is what makes delivery at-least-once.
func (q *redisQueue) RequeueStale(ctx context.Context, olderThan time.Duration, max int64) (int64, error) {
	claims, err := q.rdb.HGetAll(ctx, q.keys.ClaimsKey).Result()
	if err != nil {
		return 0, queueErr("list claims", err)
	}

	cutoff := q.now().Add(-olderThan).UnixMilli()
	var moved int64

	for payload, ts := range claims {
		if moved >= max {
			break
		}
		claimedAt, err := strconv.ParseInt(ts, 10, 64)
		if err == nil && claimedAt > cutoff {
			continue
		}

		n, err := q.rdb.LRem(ctx, q.keys.ProcessingKey, 1, payload).Result()
		if err != nil {
			return moved, queueErr("reap", err)
		}
		if n > 0 {
			if err := q.rdb.LPush(ctx, q.keys.QueueKey, payload).Err(); err != nil {
				return moved, queueErr("requeue", err)
			}
			moved++
		}
		_ = q.rdb.HDel(ctx, q.keys.ClaimsKey, payload).Err()
	}

	processing, err := q.rdb.LRange(ctx, q.keys.ProcessingKey, 0, -1).Result()
	if err != nil {
		return moved, queueErr("list processing", err)
	}
	now := q.now().UnixMilli()
	for _, payload := range processing {
		if _, ok := claims[payload]; ok {
			continue
		}
		_ = q.rdb.HSetNX(ctx, q.keys.ClaimsKey, payload, now).Err()
	}

	return moved, nil
}

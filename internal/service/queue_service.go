package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Queue interface {
	Enqueue(ctx context.Context, jobID string, priority int) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type Lane struct {
	QueueKey      string
	ProcessingKey string
}

// LanesFor derives the high/normal/low lanes from the configured base keys.
func LanesFor(queueKey, processingKey string) (high, normal, low Lane) {
	mk := func(name string) Lane {
		return Lane{QueueKey: queueKey + ":" + name, ProcessingKey: processingKey + ":" + name}
	}
	return mk("high"), mk("normal"), mk("low")
}

// redisPriorityQueue is a reliable queue with priority lanes on Redis lists.
// Claim: BRPOPLPUSH lane.queue -> lane.processing, then record
// "<processing key>|<claimed unix ms>" in the claims hash.
// Ack:   LREM from the recorded processing list and drop the claim.
// Reap:  claims older than the visibility timeout go back to their lane.
type redisPriorityQueue struct {
	rdb       *redis.Client
	claimsKey string
	now       func() time.Time

	high   Lane
	normal Lane
	low    Lane
}

func NewRedisPriorityQueue(rdb *redis.Client, queueKey, processingKey string) Queue {
	high, normal, low := LanesFor(queueKey, processingKey)
	return &redisPriorityQueue{
		rdb:       rdb,
		claimsKey: processingKey + ":claims",
		now:       time.Now,
		high:      high,
		normal:    normal,
		low:       low,
	}
}

func ClampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 2 {
		return 2
	}
	return p
}

func (q *redisPriorityQueue) lanes() []Lane {
	return []Lane{q.high, q.normal, q.low}
}

func (q *redisPriorityQueue) laneByPriority(p int) Lane {
	switch ClampPriority(p) {
	case 2:
		return q.high
	case 1:
		return q.normal
	default:
		return q.low
	}
}

func (q *redisPriorityQueue) laneByProcessingKey(key string) (Lane, bool) {
	for _, ln := range q.lanes() {
		if ln.ProcessingKey == key {
			return ln, true
		}
	}
	return Lane{}, false
}

func (q *redisPriorityQueue) Enqueue(ctx context.Context, jobID string, priority int) error {
	ln := q.laneByPriority(priority)
	return q.rdb.LPush(ctx, ln.QueueKey, jobID).Err()
}

// ClaimBlocking tries high->normal->low with short blocking slots, so
// priority holds while the call still mostly blocks. A timeout <= 0 waits
// until ctx is done. redis.Nil means nothing arrived in time.
func (q *redisPriorityQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	slot := 1 * time.Second
	if !forever && timeout < slot {
		slot = timeout
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !forever && time.Now().After(deadline) {
			return "", redis.Nil
		}

		for _, ln := range q.lanes() {
			wait := slot
			if !forever {
				remain := time.Until(deadline)
				if remain <= 0 {
					return "", redis.Nil
				}
				if remain < wait {
					wait = remain
				}
			}

			id, err := q.rdb.BRPopLPush(ctx, ln.QueueKey, ln.ProcessingKey, wait).Result()
			if err == nil {
				if hErr := q.rdb.HSet(ctx, q.claimsKey, id, q.claimValue(ln.ProcessingKey, q.now())).Err(); hErr != nil {
					// without the claim record Ack cannot find the list
					return "", hErr
				}
				return id, nil
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return "", err
		}
	}
}

func (q *redisPriorityQueue) Ack(ctx context.Context, jobID string) error {
	raw, err := q.rdb.HGet(ctx, q.claimsKey, jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// claim record missing, sweep every processing list
			for _, ln := range q.lanes() {
				_ = q.rdb.LRem(ctx, ln.ProcessingKey, 1, jobID).Err()
			}
			return nil
		}
		return err
	}

	processingKey, _, _ := parseClaim(raw)
	if err := q.rdb.LRem(ctx, processingKey, 1, jobID).Err(); err != nil {
		return err
	}
	_ = q.rdb.HDel(ctx, q.claimsKey, jobID).Err()
	return nil
}

// RequeueStale moves ids claimed longer than olderThan back to their lane.
// Ids found in a processing list without a claim record (the claimer died
// between BRPOPLPUSH and HSET) are stamped now and picked up by a later pass.
func (q *redisPriorityQueue) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := q.now()

	claims, err := q.rdb.HGetAll(ctx, q.claimsKey).Result()
	if err != nil {
		return 0, err
	}

	for _, ln := range q.lanes() {
		ids, err := q.rdb.LRange(ctx, ln.ProcessingKey, 0, -1).Result()
		if err != nil {
			return 0, err
		}
		for _, id := range ids {
			if _, ok := claims[id]; !ok {
				_ = q.rdb.HSetNX(ctx, q.claimsKey, id, q.claimValue(ln.ProcessingKey, now)).Err()
			}
		}
	}

	var moved int64
	for id, raw := range claims {
		processingKey, claimedAt, err := parseClaim(raw)
		if err != nil {
			_ = q.rdb.HDel(ctx, q.claimsKey, id).Err()
			continue
		}
		if now.Sub(claimedAt) < olderThan {
			continue
		}
		ln, ok := q.laneByProcessingKey(processingKey)
		if !ok {
			_ = q.rdb.HDel(ctx, q.claimsKey, id).Err()
			continue
		}

		removed, err := q.rdb.LRem(ctx, ln.ProcessingKey, 1, id).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			// acked meanwhile
			_ = q.rdb.HDel(ctx, q.claimsKey, id).Err()
			continue
		}
		if err := q.rdb.RPush(ctx, ln.QueueKey, id).Err(); err != nil {
			return moved, err
		}
		_ = q.rdb.HDel(ctx, q.claimsKey, id).Err()
		moved++
	}

	return moved, nil
}

func (q *redisPriorityQueue) claimValue(processingKey string, at time.Time) string {
	return processingKey + "|" + strconv.FormatInt(at.UnixMilli(), 10)
}

func parseClaim(raw string) (string, time.Time, error) {
	i := strings.LastIndex(raw, "|")
	if i < 0 {
		return raw, time.Time{}, fmt.Errorf("malformed claim %q", raw)
	}
	ms, err := strconv.ParseInt(raw[i+1:], 10, 64)
	if err != nil {
		return raw[:i], time.Time{}, fmt.Errorf("malformed claim %q: %w", raw, err)
	}
	return raw[:i], time.UnixMilli(ms), nil
}

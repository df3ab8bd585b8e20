package queue

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// reclaimScript claims a stalled job and releases it in a single atomic
// step: remove from active (the claim), drop the lease, record the
// stall, then requeue or exhaust. A zero return means another sweep or a
// late ack already handled the job.
var reclaimScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 0 then
	redis.call('ZREM', KEYS[2], ARGV[1])
	return 0
end
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[3], ARGV[2], ARGV[3])
if ARGV[4] == '1' then
	redis.call('ZADD', KEYS[5], ARGV[5], ARGV[1])
else
	redis.call('LPUSH', KEYS[4], ARGV[1])
end
return 1
`)

// reclaim periodically sweeps a stage's lease set for expired entries.
// An expired lease means the owning worker died or overran its budget;
// the job goes back to the wait list while attempts remain, otherwise it
// is exhausted the same way a handler failure would be.
func (q *Queue) reclaim(ctx context.Context, stage string, opts ConsumeOptions) {
	ticker := time.NewTicker(q.stalledScan)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.reclaimExpired(ctx, stage, opts); err != nil && ctx.Err() == nil {
				q.logger.Error("stalled sweep failed", "stage", stage, "error", err)
			}
		}
	}
}

func (q *Queue) reclaimExpired(ctx context.Context, stage string, opts ConsumeOptions) error {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	ids, err := q.client.ZRangeByScore(ctx, q.leaseKey(stage), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := q.requeueStalled(ctx, stage, opts, id); err != nil {
			return err
		}
	}

	return q.reclaimOrphans(ctx, stage, opts)
}

// reclaimOrphans recovers active entries that hold no lease. Every job
// delivered through dequeue carries a lease from the same atomic step,
// so an unleased active entry is unowned and is reclaimed immediately.
func (q *Queue) reclaimOrphans(ctx context.Context, stage string, opts ConsumeOptions) error {
	ids, err := q.client.LRange(ctx, q.activeKey(stage), 0, -1).Result()
	if err != nil {
		return err
	}

	for _, id := range ids {
		err := q.client.ZScore(ctx, q.leaseKey(stage), id).Err()
		if err == nil {
			continue
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
		if err := q.requeueStalled(ctx, stage, opts, id); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) requeueStalled(ctx context.Context, stage string, opts ConsumeOptions, id string) error {
	d, err := q.load(ctx, stage, id)
	if err != nil {
		return err
	}
	attempts, err := q.client.HGet(ctx, q.jobKey(stage, id), fieldAttempts).Int()
	if err != nil {
		return err
	}
	d.Attempt = attempts

	final := "0"
	if d.Final() {
		final = "1"
	}
	claimed, err := reclaimScript.Run(ctx, q.client,
		[]string{
			q.activeKey(stage),
			q.leaseKey(stage),
			q.jobKey(stage, id),
			q.waitKey(stage),
			q.terminalKey(stage, true),
		},
		id, fieldLastError, ErrStalled.Error(), final, q.now().UnixMilli(),
	).Int()
	if err != nil {
		return err
	}
	if claimed == 0 {
		return nil
	}

	q.logger.Warn("stalled job reclaimed",
		"stage", stage,
		"job_id", id,
		"attempt", d.Attempt,
		"max_attempts", d.MaxAttempts,
		"exhausted", d.Final())

	if opts.OnStalled != nil {
		opts.OnStalled(d)
	}
	if d.Final() && opts.OnExhausted != nil {
		opts.OnExhausted(ctx, d, ErrStalled)
	}
	return nil
}

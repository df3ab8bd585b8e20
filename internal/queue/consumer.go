package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handler processes one delivery. The supplied context carries a deadline
// at the job's lease expiry; handlers must stop work when it fires. A nil
// return acks the job, any error schedules a retry until attempts are
// exhausted.
type Handler func(ctx context.Context, d *Delivery) error

// ExhaustedFunc observes a job whose final attempt failed. It runs after
// the job has been moved to the failed set; the error is the last handler
// error, or ErrStalled when the final delivery was lost to lease expiry.
type ExhaustedFunc func(ctx context.Context, d *Delivery, err error)

// StalledFunc observes a stalled job at the moment it is reclaimed.
type StalledFunc func(d *Delivery)

// ConsumeOptions configures a stage's worker pool.
type ConsumeOptions struct {
	// Workers is the number of concurrent handler goroutines.
	Workers int
	// Handler processes deliveries. Required.
	Handler Handler
	// OnExhausted runs when a job permanently fails. Optional.
	OnExhausted ExhaustedFunc
	// OnStalled runs when a stalled job is reclaimed. Optional.
	OnStalled StalledFunc
}

// Consume starts a worker pool plus a stalled-job reclaimer for a stage.
// It returns immediately; the pool drains when ctx is cancelled. Use Wait
// to block on shutdown.
func (q *Queue) Consume(ctx context.Context, stage string, opts ConsumeOptions) error {
	if opts.Handler == nil {
		return errors.New("queue: consume requires a handler")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	for i := 0; i < opts.Workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.work(ctx, stage, opts)
		}()
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.reclaim(ctx, stage, opts)
	}()

	q.logger.Info("consumer started", "stage", stage, "workers", opts.Workers)
	return nil
}

func (q *Queue) work(ctx context.Context, stage string, opts ConsumeOptions) {
	for {
		if ctx.Err() != nil {
			return
		}

		d, expiry, err := q.dequeue(ctx, stage)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Error("dequeue failed", "stage", stage, "error", err)
			q.sleep(ctx, q.poll)
			continue
		}
		if d == nil {
			q.sleep(ctx, q.poll)
			continue
		}

		q.handle(ctx, stage, opts, d, expiry)
	}
}

// dequeueScript moves one job from wait to active, takes its lease, and
// counts the attempt in a single atomic step, so a crashed worker can
// never leave an active entry without a lease.
var dequeueScript = redis.NewScript(`
local id = redis.call('LMOVE', KEYS[1], KEYS[2], 'RIGHT', 'LEFT')
if not id then
	return false
end
redis.call('ZADD', KEYS[3], ARGV[1], id)
local attempt = redis.call('HINCRBY', ARGV[2] .. id, ARGV[3], 1)
return {id, attempt}
`)

// dequeue moves one job from wait to active and takes its lease. Returns
// a nil delivery when the wait list is empty.
func (q *Queue) dequeue(ctx context.Context, stage string) (*Delivery, time.Time, error) {
	expiry := q.now().Add(q.lease)
	res, err := dequeueScript.Run(ctx, q.client,
		[]string{q.waitKey(stage), q.activeKey(stage), q.leaseKey(stage)},
		expiry.UnixMilli(), q.jobKeyPrefix(stage), fieldAttempts,
	).Result()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("move to active: %w", err)
	}

	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return nil, time.Time{}, fmt.Errorf("move to active: unexpected reply %v", res)
	}
	id, _ := vals[0].(string)
	attempt, _ := vals[1].(int64)

	d, err := q.load(ctx, stage, id)
	if err != nil {
		return nil, time.Time{}, err
	}
	d.Attempt = int(attempt)
	return d, expiry, nil
}

// handle runs the handler under the lease deadline, then acks or retries.
func (q *Queue) handle(ctx context.Context, stage string, opts ConsumeOptions, d *Delivery, expiry time.Time) {
	hctx, cancel := context.WithDeadline(ctx, expiry)
	err := opts.Handler(hctx, d)
	cancel()

	if err == nil {
		if ackErr := q.ack(ctx, stage, d.ID); ackErr != nil {
			q.logger.Error("ack failed", "stage", stage, "job_id", d.ID, "error", ackErr)
		}
		return
	}

	q.logger.Warn("job attempt failed",
		"stage", stage,
		"job_id", d.ID,
		"attempt", d.Attempt,
		"max_attempts", d.MaxAttempts,
		"error", err)

	if nackErr := q.nack(ctx, stage, opts, d, err); nackErr != nil {
		q.logger.Error("nack failed", "stage", stage, "job_id", d.ID, "error", nackErr)
	}
}

// ack removes a finished job from the active structures and records it in
// the completed set.
func (q *Queue) ack(ctx context.Context, stage, id string) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.activeKey(stage), 1, id)
	pipe.ZRem(ctx, q.leaseKey(stage), id)
	pipe.ZAdd(ctx, q.terminalKey(stage, false), redis.Z{
		Score:  float64(q.now().UnixMilli()),
		Member: id,
	})
	_, err := pipe.Exec(ctx)
	return err
}

// nack releases a failed job: back onto the wait list while attempts
// remain, otherwise into the failed set with the exhaustion callback.
func (q *Queue) nack(ctx context.Context, stage string, opts ConsumeOptions, d *Delivery, cause error) error {
	if cmd := q.client.HSet(ctx, q.jobKey(stage, d.ID), fieldLastError, cause.Error()); cmd.Err() != nil {
		return fmt.Errorf("record error: %w", cmd.Err())
	}

	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.activeKey(stage), 1, d.ID)
	pipe.ZRem(ctx, q.leaseKey(stage), d.ID)
	if d.Final() {
		pipe.ZAdd(ctx, q.terminalKey(stage, true), redis.Z{
			Score:  float64(q.now().UnixMilli()),
			Member: d.ID,
		})
	} else {
		pipe.LPush(ctx, q.waitKey(stage), d.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("release job: %w", err)
	}

	if d.Final() {
		q.logger.Error("job exhausted", "stage", stage, "job_id", d.ID, "error", cause)
		if opts.OnExhausted != nil {
			opts.OnExhausted(ctx, d, cause)
		}
	}
	return nil
}

// load reads a job's stored payload and attempt budget.
func (q *Queue) load(ctx context.Context, stage, id string) (*Delivery, error) {
	fields, err := q.client.HMGet(ctx, q.jobKey(stage, id), fieldPayload, fieldMaxAttempts).Result()
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}

	d := &Delivery{ID: id, Stage: stage, MaxAttempts: q.maxAttempts}
	if s, ok := fields[0].(string); ok {
		d.Payload = []byte(s)
	}
	if s, ok := fields[1].(string); ok {
		if n, convErr := strconv.Atoi(s); convErr == nil {
			d.MaxAttempts = n
		}
	}
	return d, nil
}

func (q *Queue) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

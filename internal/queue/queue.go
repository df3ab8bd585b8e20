// Package queue implements a durable, at-least-once job queue on Redis.
//
// Each stage owns an independent keyspace: a wait list of job IDs in FIFO
// order, an active list of delivered jobs, a lease set scoring each active
// job by its lease expiry, per-job metadata hashes, and completed/failed
// sets scored by finish time. Workers hold an exclusive lease while
// processing; a job whose lease expires before the worker acks is stalled
// and becomes eligible for redelivery. Delivery is at-least-once: handlers
// must be safe to invoke more than once for the same job.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docsight/docsight/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Queue errors.
var (
	// ErrStalled marks deliveries abandoned through lease expiry rather
	// than a handler error.
	ErrStalled = errors.New("queue: job lease expired")
)

// Job hash fields.
const (
	fieldPayload     = "payload"
	fieldAttempts    = "attempts"
	fieldMaxAttempts = "max_attempts"
	fieldEnqueuedAt  = "enqueued_at"
	fieldLastError   = "last_error"
)

// Delivery is one handed-over job instance. Attempt counts deliveries of
// this job including the current one.
type Delivery struct {
	ID          string
	Stage       string
	Payload     []byte
	Attempt     int
	MaxAttempts int
}

// Final reports whether this delivery consumes the job's last attempt.
func (d *Delivery) Final() bool {
	return d.Attempt >= d.MaxAttempts
}

// Queue is a Redis-backed work queue shared by all stages.
type Queue struct {
	client      *redis.Client
	prefix      string
	lease       time.Duration
	poll        time.Duration
	stalledScan time.Duration
	maxAttempts int
	logger      *slog.Logger

	// now is swappable for lease-expiry tests.
	now func() time.Time

	wg sync.WaitGroup
}

// New creates a queue over an established Redis client.
func New(client *redis.Client, cfg *config.QueueConfig, logger *slog.Logger) *Queue {
	return &Queue{
		client:      client,
		prefix:      "queue",
		lease:       cfg.LeaseDurationValue(),
		poll:        cfg.PollIntervalValue(),
		stalledScan: cfg.StalledIntervalValue(),
		maxAttempts: cfg.MaxAttempts,
		logger:      logger.With("system", "queue"),
		now:         time.Now,
	}
}

// Enqueue adds a job to a stage's wait list and returns its ID.
// The payload is serialized to JSON and must stay small: job payloads
// identify work, they do not carry results.
func (q *Queue) Enqueue(ctx context.Context, stage string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	id := uuid.NewString()

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(stage, id), map[string]any{
		fieldPayload:     data,
		fieldAttempts:    0,
		fieldMaxAttempts: q.maxAttempts,
		fieldEnqueuedAt:  q.now().UnixMilli(),
	})
	pipe.LPush(ctx, q.waitKey(stage), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	q.logger.Debug("job enqueued", "stage", stage, "job_id", id)
	return id, nil
}

// Wait blocks until all consumer and reclaimer goroutines have exited.
// Call after cancelling the context passed to Consume.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) waitKey(stage string) string {
	return fmt.Sprintf("%s:%s:wait", q.prefix, stage)
}

func (q *Queue) activeKey(stage string) string {
	return fmt.Sprintf("%s:%s:active", q.prefix, stage)
}

func (q *Queue) leaseKey(stage string) string {
	return fmt.Sprintf("%s:%s:leases", q.prefix, stage)
}

func (q *Queue) jobKeyPrefix(stage string) string {
	return fmt.Sprintf("%s:%s:job:", q.prefix, stage)
}

func (q *Queue) jobKey(stage, id string) string {
	return q.jobKeyPrefix(stage) + id
}

func (q *Queue) terminalKey(stage string, failed bool) string {
	if failed {
		return fmt.Sprintf("%s:%s:failed", q.prefix, stage)
	}
	return fmt.Sprintf("%s:%s:completed", q.prefix, stage)
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/docsight/docsight/internal/config"
	"github.com/redis/go-redis/v9"
)

type testPayload struct {
	Name string `json:"name"`
}

func newTestQueue(t *testing.T, maxAttempts int) (*Queue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.QueueConfig{
		LeaseDuration:   "5m",
		StalledInterval: "30s",
		PollInterval:    "10ms",
		MaxAttempts:     maxAttempts,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(client, cfg, logger), mr
}

func TestEnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	id, err := q.Enqueue(ctx, "stage-a", testPayload{Name: "first"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d, _, err := q.dequeue(ctx, "stage-a")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if d == nil {
		t.Fatal("expected a delivery, got none")
	}
	if d.ID != id {
		t.Errorf("expected job %s, got %s", id, d.ID)
	}
	if d.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", d.Attempt)
	}
	if d.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", d.MaxAttempts)
	}

	var p testPayload
	if err := json.Unmarshal(d.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Name != "first" {
		t.Errorf("expected payload name first, got %s", p.Name)
	}

	stats, err := q.Stats(ctx, "stage-a")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Waiting != 0 || stats.Active != 1 {
		t.Errorf("expected 0 waiting / 1 active, got %d / %d", stats.Waiting, stats.Active)
	}
}

func TestDequeueEmpty(t *testing.T) {
	q, _ := newTestQueue(t, 3)

	d, _, err := q.dequeue(context.Background(), "stage-a")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if d != nil {
		t.Fatalf("expected no delivery from an empty stage, got %s", d.ID)
	}
}

func TestAckCompletes(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	if _, err := q.Enqueue(ctx, "stage-a", testPayload{Name: "done"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d, _, err := q.dequeue(ctx, "stage-a")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := q.ack(ctx, "stage-a", d.ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	stats, err := q.Stats(ctx, "stage-a")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Active != 0 || stats.Completed != 1 || stats.Failed != 0 {
		t.Errorf("unexpected stats after ack: %+v", stats)
	}
}

func TestNackRequeuesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 2)

	var exhausted *Delivery
	var exhaustedErr error
	opts := ConsumeOptions{
		OnExhausted: func(_ context.Context, d *Delivery, err error) {
			exhausted = d
			exhaustedErr = err
		},
	}

	if _, err := q.Enqueue(ctx, "stage-a", testPayload{Name: "flaky"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	cause := errors.New("boom")

	d, _, err := q.dequeue(ctx, "stage-a")
	if err != nil {
		t.Fatalf("first dequeue: %v", err)
	}
	if err := q.nack(ctx, "stage-a", opts, d, cause); err != nil {
		t.Fatalf("first nack: %v", err)
	}
	if exhausted != nil {
		t.Fatal("job exhausted after first attempt")
	}

	d, _, err = q.dequeue(ctx, "stage-a")
	if err != nil {
		t.Fatalf("second dequeue: %v", err)
	}
	if d == nil {
		t.Fatal("expected requeued delivery")
	}
	if d.Attempt != 2 {
		t.Errorf("expected attempt 2, got %d", d.Attempt)
	}
	if err := q.nack(ctx, "stage-a", opts, d, cause); err != nil {
		t.Fatalf("second nack: %v", err)
	}

	if exhausted == nil {
		t.Fatal("expected exhaustion after final attempt")
	}
	if !errors.Is(exhaustedErr, cause) {
		t.Errorf("expected exhaustion cause %v, got %v", cause, exhaustedErr)
	}

	stats, err := q.Stats(ctx, "stage-a")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Waiting != 0 || stats.Active != 0 || stats.Failed != 1 {
		t.Errorf("unexpected stats after exhaustion: %+v", stats)
	}
}

func TestConsumeProcessesJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, _ := newTestQueue(t, 3)

	const jobs = 5
	var mu sync.Mutex
	seen := make(map[string]int)
	done := make(chan struct{}, jobs)

	err := q.Consume(ctx, "stage-a", ConsumeOptions{
		Workers: 2,
		Handler: func(_ context.Context, d *Delivery) error {
			var p testPayload
			if err := json.Unmarshal(d.Payload, &p); err != nil {
				return err
			}
			mu.Lock()
			seen[p.Name]++
			mu.Unlock()
			done <- struct{}{}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	names := []string{"a", "b", "c", "d", "e"}
	for _, name := range names {
		if _, err := q.Enqueue(ctx, "stage-a", testPayload{Name: name}); err != nil {
			t.Fatalf("enqueue %s: %v", name, err)
		}
	}

	for i := 0; i < jobs; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	cancel()
	q.Wait()

	mu.Lock()
	defer mu.Unlock()
	for _, name := range names {
		if seen[name] != 1 {
			t.Errorf("job %s handled %d times", name, seen[name])
		}
	}
}

func TestConsumeRetriesFailedHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q, _ := newTestQueue(t, 3)

	var mu sync.Mutex
	var attempts []int
	done := make(chan struct{})

	err := q.Consume(ctx, "stage-a", ConsumeOptions{
		Workers: 1,
		Handler: func(_ context.Context, d *Delivery) error {
			mu.Lock()
			attempts = append(attempts, d.Attempt)
			mu.Unlock()
			if d.Attempt < 3 {
				return errors.New("transient")
			}
			close(done)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	if _, err := q.Enqueue(ctx, "stage-a", testPayload{Name: "retry"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for retries")
	}

	cancel()
	q.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []int{1, 2, 3}
	if len(attempts) != len(want) {
		t.Fatalf("expected %d attempts, got %v", len(want), attempts)
	}
	for i, a := range attempts {
		if a != want[i] {
			t.Errorf("attempt %d: expected %d, got %d", i, want[i], a)
		}
	}
}

func TestReclaimStalledRequeues(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	base := time.Now()
	q.now = func() time.Time { return base }

	if _, err := q.Enqueue(ctx, "stage-a", testPayload{Name: "stuck"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	first, _, err := q.dequeue(ctx, "stage-a")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	var stalled *Delivery
	opts := ConsumeOptions{OnStalled: func(d *Delivery) { stalled = d }}

	// Before the lease expires nothing is reclaimed.
	if err := q.reclaimExpired(ctx, "stage-a", opts); err != nil {
		t.Fatalf("early sweep: %v", err)
	}
	if stalled != nil {
		t.Fatal("job reclaimed while lease was still held")
	}

	q.now = func() time.Time { return base.Add(q.lease + time.Second) }
	if err := q.reclaimExpired(ctx, "stage-a", opts); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stalled == nil {
		t.Fatal("expected a stalled delivery")
	}
	if stalled.ID != first.ID {
		t.Errorf("expected stalled job %s, got %s", first.ID, stalled.ID)
	}

	second, _, err := q.dequeue(ctx, "stage-a")
	if err != nil {
		t.Fatalf("redequeue: %v", err)
	}
	if second == nil {
		t.Fatal("expected the reclaimed job back on the wait list")
	}
	if second.Attempt != 2 {
		t.Errorf("expected attempt 2 after reclaim, got %d", second.Attempt)
	}
}

func TestReclaimExhaustsFinalAttempt(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)

	base := time.Now()
	q.now = func() time.Time { return base }

	if _, err := q.Enqueue(ctx, "stage-a", testPayload{Name: "lost"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := q.dequeue(ctx, "stage-a"); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	var exhaustedErr error
	opts := ConsumeOptions{
		OnExhausted: func(_ context.Context, _ *Delivery, err error) { exhaustedErr = err },
	}

	q.now = func() time.Time { return base.Add(q.lease + time.Second) }
	if err := q.reclaimExpired(ctx, "stage-a", opts); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if !errors.Is(exhaustedErr, ErrStalled) {
		t.Errorf("expected ErrStalled exhaustion, got %v", exhaustedErr)
	}

	stats, err := q.Stats(ctx, "stage-a")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Waiting != 0 || stats.Active != 0 || stats.Failed != 1 {
		t.Errorf("unexpected stats after stalled exhaustion: %+v", stats)
	}
}

func TestReclaimRecoversUnleasedActiveJob(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	id, err := q.Enqueue(ctx, "stage-a", testPayload{Name: "orphan"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// A worker that died mid-handover leaves the job on active with no
	// lease entry. The sweep must still bring it back.
	if err := q.client.LMove(ctx, q.waitKey("stage-a"), q.activeKey("stage-a"), "RIGHT", "LEFT").Err(); err != nil {
		t.Fatalf("move to active: %v", err)
	}

	var stalled *Delivery
	opts := ConsumeOptions{OnStalled: func(d *Delivery) { stalled = d }}

	if err := q.reclaimExpired(ctx, "stage-a", opts); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stalled == nil {
		t.Fatal("expected the unleased job to be reclaimed")
	}
	if stalled.ID != id {
		t.Errorf("expected reclaimed job %s, got %s", id, stalled.ID)
	}

	stats, err := q.Stats(ctx, "stage-a")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Waiting != 1 || stats.Active != 0 {
		t.Errorf("expected 1 waiting / 0 active after sweep, got %d / %d", stats.Waiting, stats.Active)
	}

	d, _, err := q.dequeue(ctx, "stage-a")
	if err != nil {
		t.Fatalf("redequeue: %v", err)
	}
	if d == nil || d.ID != id {
		t.Fatal("expected the recovered job to be deliverable again")
	}
}

func TestReclaimSkipsLeasedActiveJob(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	if _, err := q.Enqueue(ctx, "stage-a", testPayload{Name: "held"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := q.dequeue(ctx, "stage-a"); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	var stalled *Delivery
	opts := ConsumeOptions{OnStalled: func(d *Delivery) { stalled = d }}

	if err := q.reclaimExpired(ctx, "stage-a", opts); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stalled != nil {
		t.Fatal("job with a live lease must not be reclaimed")
	}

	stats, err := q.Stats(ctx, "stage-a")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Active != 1 {
		t.Errorf("expected the leased job to stay active, got %+v", stats)
	}
}

func TestCleanRemovesExpiredTerminalJobs(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	base := time.Now()
	q.now = func() time.Time { return base }

	id, err := q.Enqueue(ctx, "stage-a", testPayload{Name: "old"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d, _, err := q.dequeue(ctx, "stage-a")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := q.ack(ctx, "stage-a", d.ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	// A cutoff before the finish time retains the job.
	removed, err := q.Clean(ctx, "stage-a", base.Add(-time.Hour).UnixMilli())
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected nothing cleaned, got %d", removed)
	}

	removed, err = q.Clean(ctx, "stage-a", base.Add(time.Hour).UnixMilli())
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 job cleaned, got %d", removed)
	}

	exists, err := q.client.Exists(ctx, q.jobKey("stage-a", id)).Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists != 0 {
		t.Error("expected job hash removed")
	}

	stats, err := q.Stats(ctx, "stage-a")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Completed != 0 {
		t.Errorf("expected completed set emptied, got %d", stats.Completed)
	}
}

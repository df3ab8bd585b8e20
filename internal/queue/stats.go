package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Stats is a point-in-time census of one stage.
type Stats struct {
	Stage     string `json:"stage"`
	Waiting   int64  `json:"waiting"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}

// Stats reports queue depths for a stage.
func (q *Queue) Stats(ctx context.Context, stage string) (Stats, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, q.waitKey(stage))
	active := pipe.LLen(ctx, q.activeKey(stage))
	completed := pipe.ZCard(ctx, q.terminalKey(stage, false))
	failed := pipe.ZCard(ctx, q.terminalKey(stage, true))
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("stage stats: %w", err)
	}

	return Stats{
		Stage:     stage,
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

// Clean removes terminal jobs older than the cutoff along with their
// metadata hashes, and returns the number of jobs removed.
func (q *Queue) Clean(ctx context.Context, stage string, cutoffUnixMilli int64) (int64, error) {
	var removed int64
	cutoff := strconv.FormatInt(cutoffUnixMilli, 10)

	for _, failed := range []bool{false, true} {
		key := q.terminalKey(stage, failed)
		ids, err := q.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: "-inf",
			Max: cutoff,
		}).Result()
		if err != nil {
			return removed, fmt.Errorf("list terminal jobs: %w", err)
		}
		if len(ids) == 0 {
			continue
		}

		pipe := q.client.TxPipeline()
		for _, id := range ids {
			pipe.Del(ctx, q.jobKey(stage, id))
			pipe.ZRem(ctx, key, id)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, fmt.Errorf("remove terminal jobs: %w", err)
		}
		removed += int64(len(ids))
	}

	return removed, nil
}

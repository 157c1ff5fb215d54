// Package queue provides the durable crawl job queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

// DefaultKey is the Redis list holding pending jobs.
const DefaultKey = "crawl_queue"

// RedisQueue implements crawler.Queue on a Redis list. Producers push to
// the head, the worker pops from the tail, so delivery order is FIFO and
// each job is handed out at most once.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedis builds a RedisQueue on the given client. An empty key selects
// DefaultKey.
func NewRedis(client *redis.Client, key string, logger *zap.Logger) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{client: client, key: key, logger: logger}
}

// Push appends the job to the queue.
func (q *RedisQueue) Push(ctx context.Context, job crawler.CrawlJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return crawler.NewCrawlError(crawler.ErrKindQueue, fmt.Errorf("encoding job %s: %w", job.ID, err))
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return crawler.NewCrawlError(crawler.ErrKindQueue, fmt.Errorf("pushing job %s: %w", job.ID, err))
	}
	q.logger.Debug("job queued", zap.String("job_id", job.ID), zap.String("keyword", job.Keyword))
	return nil
}

// Pop removes and returns the oldest job, or (nil, nil) when the queue is
// empty.
func (q *RedisQueue) Pop(ctx context.Context) (*crawler.CrawlJob, error) {
	payload, err := q.client.RPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, crawler.NewCrawlError(crawler.ErrKindQueue, fmt.Errorf("popping job: %w", err))
	}

	var job crawler.CrawlJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, crawler.NewCrawlError(crawler.ErrKindQueue, fmt.Errorf("decoding job payload: %w", err))
	}
	return &job, nil
}

// Depth reports the number of pending jobs.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, crawler.NewCrawlError(crawler.ErrKindQueue, fmt.Errorf("reading queue depth: %w", err))
	}
	return n, nil
}

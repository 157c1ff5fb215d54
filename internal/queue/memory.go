package queue

import (
	"context"
	"sync"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

// MemoryQueue is an in-process crawler.Queue for development and tests.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []crawler.CrawlJob
}

// NewMemory builds an empty MemoryQueue.
func NewMemory() *MemoryQueue {
	return &MemoryQueue{}
}

// Push appends the job.
func (q *MemoryQueue) Push(_ context.Context, job crawler.CrawlJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

// Pop removes and returns the oldest job, or (nil, nil) when empty.
func (q *MemoryQueue) Pop(context.Context) (*crawler.CrawlJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return &job, nil
}

// Depth reports the number of pending jobs.
func (q *MemoryQueue) Depth(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

// Package scheduler enqueues recurring crawl jobs on cron cadences.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

// Entry is one recurring crawl definition.
type Entry struct {
	// Schedule is a standard five-field cron expression.
	Schedule  string            `mapstructure:"schedule" yaml:"schedule"`
	Keyword   string            `mapstructure:"keyword" yaml:"keyword"`
	Engine    crawler.Engine    `mapstructure:"engine" yaml:"engine"`
	Selectors map[string]string `mapstructure:"selectors" yaml:"selectors"`
}

// Scheduler fires entries into the queue on their cadence. Enqueueing is
// unconditional; a backed-up queue only grows, triggers are never skipped.
type Scheduler struct {
	queue  crawler.Queue
	ids    crawler.IDGenerator
	logger *zap.Logger
	cron   *cron.Cron
}

// New validates entries and registers them. The returned Scheduler is idle
// until Start.
func New(queue crawler.Queue, ids crawler.IDGenerator, logger *zap.Logger, entries []Entry) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		queue:  queue,
		ids:    ids,
		logger: logger,
		cron:   cron.New(),
	}
	for i, entry := range entries {
		if entry.Keyword == "" {
			return nil, fmt.Errorf("schedule entry %d: keyword is required", i)
		}
		if !entry.Engine.Valid() {
			return nil, fmt.Errorf("schedule entry %d: unknown engine %q", i, entry.Engine)
		}
		entry := entry
		if _, err := s.cron.AddFunc(entry.Schedule, func() { s.fire(entry) }); err != nil {
			return nil, fmt.Errorf("schedule entry %d (%q): %w", i, entry.Schedule, err)
		}
	}
	return s, nil
}

// Start begins firing entries in background goroutines.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop halts triggering and waits for in-flight fires.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// fire enqueues one job for the entry.
func (s *Scheduler) fire(entry Entry) {
	id, err := s.ids.NewID()
	if err != nil {
		s.logger.Error("could not mint job id", zap.String("keyword", entry.Keyword), zap.Error(err))
		return
	}
	job := crawler.CrawlJob{
		ID:        id,
		Keyword:   entry.Keyword,
		Engine:    entry.Engine,
		Selectors: entry.Selectors,
	}
	if err := s.queue.Push(context.Background(), job); err != nil {
		s.logger.Error("scheduled enqueue failed",
			zap.String("job_id", id), zap.String("keyword", entry.Keyword), zap.Error(err))
		return
	}
	s.logger.Info("scheduled job enqueued",
		zap.String("job_id", id),
		zap.String("keyword", entry.Keyword),
		zap.String("engine", string(entry.Engine)),
	)
}

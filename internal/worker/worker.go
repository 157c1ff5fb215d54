// Package worker runs the crawl job poll loop.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
	"github.com/JakeFAU/serp-harvester/internal/metrics"
)

// Config controls poll pacing.
type Config struct {
	// EmptyPollDelay is the pause after an empty pop.
	EmptyPollDelay time.Duration
	// ErrorPollDelay is the pause after a queue error.
	ErrorPollDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.EmptyPollDelay <= 0 {
		c.EmptyPollDelay = time.Second
	}
	if c.ErrorPollDelay <= 0 {
		c.ErrorPollDelay = 5 * time.Second
	}
	return c
}

// Worker pops jobs one at a time and drives each through search, deep
// extraction, and persistence. A job is processed at most once; failures
// are logged and recorded, never requeued.
type Worker struct {
	queue     crawler.Queue
	searcher  crawler.Searcher
	extractor crawler.Extractor
	tasks     crawler.TaskStore
	blobs     crawler.BlobStore
	clock     crawler.Clock
	logger    *zap.Logger
	cfg       Config
	sleep     func(ctx context.Context, d time.Duration) error
}

// New constructs a Worker. tasks and blobs may be nil when persistence is
// not configured.
func New(
	queue crawler.Queue,
	searcher crawler.Searcher,
	extractor crawler.Extractor,
	tasks crawler.TaskStore,
	blobs crawler.BlobStore,
	clock crawler.Clock,
	logger *zap.Logger,
	cfg Config,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		searcher:  searcher,
		extractor: extractor,
		tasks:     tasks,
		blobs:     blobs,
		clock:     clock,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		sleep:     sleepCtx,
	}
}

// Run polls until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		zap.Duration("empty_poll_delay", w.cfg.EmptyPollDelay),
		zap.Duration("error_poll_delay", w.cfg.ErrorPollDelay),
	)
	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopping", zap.Error(err))
			return err
		}

		job, err := w.queue.Pop(ctx)
		w.reportQueueDepth(ctx)
		switch {
		case err != nil:
			w.logger.Error("queue pop failed", zap.Error(err))
			if err := w.sleep(ctx, w.cfg.ErrorPollDelay); err != nil {
				return err
			}
		case job == nil:
			if err := w.sleep(ctx, w.cfg.EmptyPollDelay); err != nil {
				return err
			}
		default:
			w.process(ctx, *job)
		}
	}
}

// depthReporter is implemented by queue backends that can report their
// backlog.
type depthReporter interface {
	Depth(ctx context.Context) (int64, error)
}

func (w *Worker) reportQueueDepth(ctx context.Context) {
	q, ok := w.queue.(depthReporter)
	if !ok {
		return
	}
	depth, err := q.Depth(ctx)
	if err != nil {
		return
	}
	metrics.SetQueueDepth(int(depth))
}

func (w *Worker) process(ctx context.Context, job crawler.CrawlJob) {
	logger := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("keyword", job.Keyword),
		zap.String("engine", string(job.Engine)),
	)
	logger.Info("processing job")

	outcome, err := w.searcher.Search(ctx, job)
	if err != nil {
		logger.Error("search failed", zap.Error(err),
			zap.String("kind", string(crawler.ErrorKindOf(err))))
		metrics.ObserveJob("error")
		return
	}
	if outcome.Failed() {
		logger.Warn("search gave no usable results", zap.String("reason", string(outcome.Failure)))
		metrics.ObserveJob(string(outcome.Failure))
		return
	}

	record := crawler.TaskRecord{
		ID:        job.ID,
		Keyword:   job.Keyword,
		Engine:    job.Engine,
		Status:    crawler.TaskStatusCompleted,
		CreatedAt: w.now(),
	}
	if resultsJSON, err := json.Marshal(outcome.Serp); err == nil {
		record.ResultsJSON = string(resultsJSON)
	}

	site := w.deepExtract(ctx, logger, outcome, &record)

	if w.blobs != nil && site.HTML != "" {
		key := fmt.Sprintf("%s/%s.html", job.Engine, job.ID)
		uri, err := w.blobs.PutObject(ctx, key, "text/html", []byte(site.HTML))
		if err != nil {
			logger.Warn("blob upload failed", zap.String("key", key), zap.Error(err))
		} else {
			logger.Info("stored first page capture", zap.String("uri", uri))
		}
	}

	if w.tasks != nil {
		if err := w.tasks.CreateTask(ctx, record); err != nil {
			logger.Error("task insert failed", zap.Error(err))
			metrics.ObserveJob("error")
			return
		}
	}

	logger.Info("job finished",
		zap.String("status", string(record.Status)),
		zap.String("method", outcome.Method),
		zap.Int("results", len(outcome.Serp.Results)),
	)
	metrics.ObserveJob(string(record.Status))
}

// deepExtract follows the first organic result one hop and folds the page
// distillate into the record. An extraction failure downgrades the task but
// keeps the search results.
func (w *Worker) deepExtract(
	ctx context.Context,
	logger *zap.Logger,
	outcome crawler.Outcome,
	record *crawler.TaskRecord,
) crawler.WebsiteData {
	if w.extractor == nil || len(outcome.Serp.Results) == 0 {
		return crawler.WebsiteData{}
	}
	first := outcome.Serp.Results[0].Link
	site, err := w.extractor.Extract(ctx, first)
	if err != nil {
		logger.Warn("deep extraction failed", zap.String("url", first), zap.Error(err))
		record.Status = crawler.TaskStatusFailed
		return crawler.WebsiteData{}
	}

	record.ExtractedText = site.MainText
	record.FirstPageHTML = site.HTML
	record.MetaDescription = site.MetaDescription
	record.MetaKeywords = site.MetaKeywords
	record.MetaAuthor = site.MetaAuthor
	record.MetaDate = site.MetaDate
	return site
}

func (w *Worker) now() time.Time {
	if w.clock != nil {
		return w.clock.Now()
	}
	return time.Now().UTC()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

type scriptedQueue struct {
	pops       []func() (*crawler.CrawlJob, error)
	idx        int
	stop       context.CancelFunc
	depthCalls int
}

func (q *scriptedQueue) Push(context.Context, crawler.CrawlJob) error { return nil }

func (q *scriptedQueue) Pop(context.Context) (*crawler.CrawlJob, error) {
	if q.idx >= len(q.pops) {
		q.stop()
		return nil, nil
	}
	pop := q.pops[q.idx]
	q.idx++
	return pop()
}

func (q *scriptedQueue) Depth(context.Context) (int64, error) {
	q.depthCalls++
	return int64(len(q.pops) - q.idx), nil
}

type stubSearcher struct {
	outcome crawler.Outcome
	err     error
	calls   int
}

func (s *stubSearcher) Search(context.Context, crawler.CrawlJob) (crawler.Outcome, error) {
	s.calls++
	return s.outcome, s.err
}

type stubExtractor struct {
	data crawler.WebsiteData
	err  error
	urls []string
}

func (e *stubExtractor) Extract(_ context.Context, url string) (crawler.WebsiteData, error) {
	e.urls = append(e.urls, url)
	return e.data, e.err
}

type capturingStore struct {
	records []crawler.TaskRecord
}

func (s *capturingStore) CreateTask(_ context.Context, record crawler.TaskRecord) error {
	s.records = append(s.records, record)
	return nil
}

func (s *capturingStore) GetTask(context.Context, string) (crawler.TaskRecord, error) {
	return crawler.TaskRecord{}, nil
}

func (s *capturingStore) ListTasks(context.Context) ([]crawler.TaskSummary, error) {
	return nil, nil
}

type capturingBlobs struct {
	keys []string
}

func (b *capturingBlobs) PutObject(_ context.Context, path, _ string, _ []byte) (string, error) {
	b.keys = append(b.keys, path)
	return "memory://" + path, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func runWorker(t *testing.T, q *scriptedQueue, w *Worker) []time.Duration {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	q.stop = cancel

	var sleeps []time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sleeps = append(sleeps, d)
		return nil
	}

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	return sleeps
}

func job() *crawler.CrawlJob {
	return &crawler.CrawlJob{ID: "job-1", Keyword: "consumer prices", Engine: crawler.EngineBing}
}

func successOutcome() crawler.Outcome {
	return crawler.Outcome{
		Method: "landmarks",
		Serp: crawler.SerpData{Results: []crawler.SearchResult{
			{Title: "CPI", Link: "https://example.com/report", Snippet: "s"},
		}},
	}
}

func TestWorkerPersistsCompletedJob(t *testing.T) {
	q := &scriptedQueue{pops: []func() (*crawler.CrawlJob, error){
		func() (*crawler.CrawlJob, error) { return job(), nil },
	}}
	searcher := &stubSearcher{outcome: successOutcome()}
	extractor := &stubExtractor{data: crawler.WebsiteData{
		HTML:            "<html>page</html>",
		MainText:        "main text",
		MetaDescription: "desc",
	}}
	store := &capturingStore{}
	blobs := &capturingBlobs{}
	now := time.Unix(1700000000, 0).UTC()

	w := New(q, searcher, extractor, store, blobs, fixedClock{now}, zap.NewNop(), Config{})
	runWorker(t, q, w)

	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, "job-1", rec.ID)
	assert.Equal(t, crawler.TaskStatusCompleted, rec.Status)
	assert.Equal(t, "main text", rec.ExtractedText)
	assert.Equal(t, "desc", rec.MetaDescription)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Contains(t, rec.ResultsJSON, "https://example.com/report")

	assert.Equal(t, []string{"https://example.com/report"}, extractor.urls)
	assert.Equal(t, []string{"bing/job-1.html"}, blobs.keys)
}

func TestWorkerSkipsRecordOnSoftFailure(t *testing.T) {
	q := &scriptedQueue{pops: []func() (*crawler.CrawlJob, error){
		func() (*crawler.CrawlJob, error) { return job(), nil },
	}}
	searcher := &stubSearcher{outcome: crawler.Outcome{Failure: crawler.FailureChallengeDetected}}
	store := &capturingStore{}

	w := New(q, searcher, &stubExtractor{}, store, &capturingBlobs{}, nil, zap.NewNop(), Config{})
	runWorker(t, q, w)

	assert.Empty(t, store.records)
}

func TestWorkerSkipsRecordOnHardError(t *testing.T) {
	q := &scriptedQueue{pops: []func() (*crawler.CrawlJob, error){
		func() (*crawler.CrawlJob, error) { return job(), nil },
	}}
	searcher := &stubSearcher{err: crawler.NewCrawlError(crawler.ErrKindLaunch, errors.New("no browser"))}
	store := &capturingStore{}

	w := New(q, searcher, &stubExtractor{}, store, &capturingBlobs{}, nil, zap.NewNop(), Config{})
	runWorker(t, q, w)

	assert.Empty(t, store.records)
}

func TestWorkerDowngradesTaskWhenExtractionFails(t *testing.T) {
	q := &scriptedQueue{pops: []func() (*crawler.CrawlJob, error){
		func() (*crawler.CrawlJob, error) { return job(), nil },
	}}
	searcher := &stubSearcher{outcome: successOutcome()}
	extractor := &stubExtractor{err: errors.New("unreachable")}
	store := &capturingStore{}
	blobs := &capturingBlobs{}

	w := New(q, searcher, extractor, store, blobs, nil, zap.NewNop(), Config{})
	runWorker(t, q, w)

	require.Len(t, store.records, 1)
	assert.Equal(t, crawler.TaskStatusFailed, store.records[0].Status)
	assert.Contains(t, store.records[0].ResultsJSON, "https://example.com/report")
	assert.Empty(t, blobs.keys)
}

func TestWorkerPollPacing(t *testing.T) {
	q := &scriptedQueue{pops: []func() (*crawler.CrawlJob, error){
		func() (*crawler.CrawlJob, error) { return nil, nil },
		func() (*crawler.CrawlJob, error) { return nil, errors.New("redis down") },
		func() (*crawler.CrawlJob, error) { return nil, nil },
	}}
	searcher := &stubSearcher{}

	w := New(q, searcher, &stubExtractor{}, nil, nil, nil, zap.NewNop(), Config{})
	sleeps := runWorker(t, q, w)

	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, time.Second}, sleeps)
	assert.Zero(t, searcher.calls)
}

func TestWorkerReportsQueueDepth(t *testing.T) {
	q := &scriptedQueue{pops: []func() (*crawler.CrawlJob, error){
		func() (*crawler.CrawlJob, error) { return job(), nil },
		func() (*crawler.CrawlJob, error) { return nil, nil },
	}}
	searcher := &stubSearcher{outcome: successOutcome()}

	w := New(q, searcher, &stubExtractor{}, nil, nil, nil, zap.NewNop(), Config{})
	runWorker(t, q, w)

	// One depth read per poll, including the final empty poll that stops
	// the loop.
	assert.Equal(t, 3, q.depthCalls)
}

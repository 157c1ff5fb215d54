package crawler

import (
	"context"
	"time"
)

// Queue provides push/pop semantics for crawl jobs. Pop returns (nil, nil)
// when the queue is empty; delivery is at most once.
type Queue interface {
	Push(ctx context.Context, job CrawlJob) error
	Pop(ctx context.Context) (*CrawlJob, error)
}

// TaskStore persists terminal task records.
type TaskStore interface {
	CreateTask(ctx context.Context, record TaskRecord) error
	GetTask(ctx context.Context, id string) (TaskRecord, error)
	ListTasks(ctx context.Context) ([]TaskSummary, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Searcher runs one job's search attempt(s) and returns the terminal outcome.
type Searcher interface {
	Search(ctx context.Context, job CrawlJob) (Outcome, error)
}

// Extractor performs the one-hop deep extraction of a result URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (WebsiteData, error)
}

// ArtifactSink receives diagnostic artifacts for failed attempts.
type ArtifactSink interface {
	SaveHTML(engine Engine, reason FailureReason, html string)
	SaveScreenshot(engine Engine, reason FailureReason, png []byte)
	LogFailure(event FailureEvent)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

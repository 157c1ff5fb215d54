package crawler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a hard renderer-level or infrastructure failure.
type ErrorKind string

// Error kinds surfaced by the crawl pipeline.
const (
	ErrKindLaunch      ErrorKind = "launch"
	ErrKindNavigation  ErrorKind = "navigation"
	ErrKindScript      ErrorKind = "script"
	ErrKindQueue       ErrorKind = "queue"
	ErrKindPersistence ErrorKind = "persistence"
)

// CrawlError wraps a failure with its pipeline classification. It aborts the
// current attempt; soft outcomes (challenge, zero results) are never
// represented this way.
type CrawlError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *CrawlError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// NewCrawlError wraps err with the given kind.
func NewCrawlError(kind ErrorKind, err error) *CrawlError {
	return &CrawlError{Kind: kind, Err: err}
}

// ErrorKindOf extracts the classification from err, or "" if it carries none.
func ErrorKindOf(err error) ErrorKind {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

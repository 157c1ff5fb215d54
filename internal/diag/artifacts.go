// Package diag persists debugging artifacts for failed search attempts.
package diag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

const failureLogName = "crawl_failures.log"

// FileSink writes the last failed page per engine plus an append-only
// failure log. Artifact writes are best effort; a full disk must not take
// down the worker.
type FileSink struct {
	dir    string
	logger *zap.Logger

	mu sync.Mutex
}

// NewFileSink creates the artifact directory if needed.
func NewFileSink(dir string, logger *zap.Logger) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &FileSink{dir: dir, logger: logger}, nil
}

// SaveHTML overwrites the debug page capture for the engine/reason pair.
func (s *FileSink) SaveHTML(engine crawler.Engine, reason crawler.FailureReason, html string) {
	path := filepath.Join(s.dir, artifactName(engine, reason, "html"))
	if err := os.WriteFile(path, []byte(html), 0o600); err != nil {
		s.logger.Warn("could not save debug html", zap.String("path", path), zap.Error(err))
	}
}

// SaveScreenshot overwrites the debug screenshot for the engine/reason pair.
func (s *FileSink) SaveScreenshot(engine crawler.Engine, reason crawler.FailureReason, png []byte) {
	path := filepath.Join(s.dir, artifactName(engine, reason, "png"))
	if err := os.WriteFile(path, png, 0o600); err != nil {
		s.logger.Warn("could not save debug screenshot", zap.String("path", path), zap.Error(err))
	}
}

func artifactName(engine crawler.Engine, reason crawler.FailureReason, ext string) string {
	if reason == crawler.FailureNone {
		return fmt.Sprintf("debug_%s.%s", engine, ext)
	}
	return fmt.Sprintf("debug_%s_%s.%s", engine, reason, ext)
}

// LogFailure appends one JSON line to the failure log.
func (s *FileSink) LogFailure(event crawler.FailureEvent) {
	line, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("could not encode failure event", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.dir, failureLogName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		s.logger.Warn("could not open failure log", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		s.logger.Warn("could not append failure event", zap.Error(err))
	}
}

// NopSink discards all artifacts.
type NopSink struct{}

func (NopSink) SaveHTML(crawler.Engine, crawler.FailureReason, string)       {}
func (NopSink) SaveScreenshot(crawler.Engine, crawler.FailureReason, []byte) {}
func (NopSink) LogFailure(crawler.FailureEvent)                              {}

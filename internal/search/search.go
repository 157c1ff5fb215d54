// Package search drives browser-based search attempts against one engine.
package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
	"github.com/JakeFAU/serp-harvester/internal/metrics"
	"github.com/JakeFAU/serp-harvester/internal/proxy"
	"github.com/JakeFAU/serp-harvester/internal/renderer"
)

// Config controls attempt behavior across all engine variants.
type Config struct {
	UserAgent          string
	BingHomeURL        string
	GoogleHomeURL      string
	MinPageBytes       int
	TypeDelayBase      time.Duration
	TypeDelayJitter    time.Duration
	GoogleMaxAttempts  int
	GoogleRetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.BingHomeURL == "" {
		c.BingHomeURL = "https://www.bing.com/?cc=US"
	}
	if c.GoogleHomeURL == "" {
		c.GoogleHomeURL = "https://www.google.com/?hl=en"
	}
	if c.MinPageBytes == 0 {
		// A real results page is typically well over 200KB.
		c.MinPageBytes = 50_000
	}
	if c.TypeDelayBase <= 0 {
		c.TypeDelayBase = 80 * time.Millisecond
	}
	if c.TypeDelayJitter <= 0 {
		c.TypeDelayJitter = 120 * time.Millisecond
	}
	if c.GoogleMaxAttempts <= 0 {
		c.GoogleMaxAttempts = 3
	}
	if c.GoogleRetryBackoff <= 0 {
		c.GoogleRetryBackoff = 5 * time.Second
	}
	return c
}

// Automation runs one job's search attempt(s). It owns the stealth and
// human-cadence policy; the renderer only executes it.
type Automation struct {
	renderer  renderer.Renderer
	pool      *proxy.Pool
	artifacts crawler.ArtifactSink
	clock     crawler.Clock
	logger    *zap.Logger
	cfg       Config
	sleep     sleeper
}

// New constructs an Automation.
func New(
	r renderer.Renderer,
	pool *proxy.Pool,
	artifacts crawler.ArtifactSink,
	clock crawler.Clock,
	logger *zap.Logger,
	cfg Config,
) *Automation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Automation{
		renderer:  r,
		pool:      pool,
		artifacts: artifacts,
		clock:     clock,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		sleep:     realSleep,
	}
}

// Search dispatches the job to its engine variant and returns the terminal
// outcome. Soft failures (challenge, too-small, zero results) come back as
// outcome values; hard renderer failures come back as CrawlErrors.
func (a *Automation) Search(ctx context.Context, job crawler.CrawlJob) (crawler.Outcome, error) {
	switch job.Engine {
	case crawler.EngineGoogle:
		return a.searchGoogle(ctx, job)
	case crawler.EngineGeneric:
		return a.searchGeneric(ctx, job)
	case crawler.EngineBing:
		return a.searchBing(ctx, job)
	default:
		return crawler.Outcome{}, fmt.Errorf("unknown engine %q", job.Engine)
	}
}

// startSession takes the next egress point and launches a browser through
// it. A launch failure counts against the proxy.
func (a *Automation) startSession(ctx context.Context) (renderer.Session, string, error) {
	opts := renderer.LaunchOptions{UserAgent: a.cfg.UserAgent}
	proxyID := ""
	if a.pool != nil {
		if d := a.pool.Next(); d != nil {
			opts.ProxyURL = d.URL()
			proxyID = d.ID
			a.logger.Debug("routing attempt through proxy", zap.String("proxy_id", d.ID))
		}
	}
	session, err := a.renderer.Launch(ctx, opts)
	if err != nil {
		a.recordProxyOutcome(proxyID, false)
		return nil, "", err
	}
	return session, proxyID, nil
}

func (a *Automation) recordProxyOutcome(proxyID string, success bool) {
	if a.pool == nil || proxyID == "" {
		return
	}
	a.pool.RecordOutcome(proxyID, success)
}

func (a *Automation) typeDelay() time.Duration {
	return a.cfg.TypeDelayBase + rand.N(a.cfg.TypeDelayJitter)
}

// humanize dispatches mouse movement and gradual scrolling. Failures here
// are logged and swallowed: realism must never break extraction.
func (a *Automation) humanize(ctx context.Context, s renderer.Session) {
	if err := s.Evaluate(ctx, mouseMoveScript, false, nil); err != nil {
		a.logger.Debug("mouse simulation failed", zap.Error(err))
	}
	_ = a.sleep(ctx, 500*time.Millisecond)
	if err := s.Evaluate(ctx, scrollScript, true, nil); err != nil {
		a.logger.Debug("scroll simulation failed", zap.Error(err))
	}
}

// settle waits for DOM mutation quiescence with a hard ceiling.
func (a *Automation) settle(ctx context.Context, s renderer.Session, debounce, ceiling time.Duration) {
	var result string
	script := settleScript(int(debounce.Milliseconds()), int(ceiling.Milliseconds()))
	if err := s.Evaluate(ctx, script, true, &result); err != nil {
		a.logger.Debug("settle wait failed", zap.Error(err))
		return
	}
	a.logger.Debug("dom settled", zap.String("result", result))
}

// failAttempt persists diagnostic artifacts for a soft failure and returns
// the classified outcome.
func (a *Automation) failAttempt(
	ctx context.Context,
	s renderer.Session,
	job crawler.CrawlJob,
	html string,
	method string,
	reason crawler.FailureReason,
) crawler.Outcome {
	a.logger.Warn("search attempt classified as failed",
		zap.String("engine", string(job.Engine)),
		zap.String("keyword", job.Keyword),
		zap.String("reason", string(reason)),
		zap.Int("html_len", len(html)),
	)
	if a.artifacts != nil {
		a.artifacts.SaveHTML(job.Engine, reason, html)
		if png, err := s.Screenshot(ctx); err == nil {
			a.artifacts.SaveScreenshot(job.Engine, reason, png)
		}
		a.artifacts.LogFailure(crawler.FailureEvent{
			Timestamp: a.now(),
			Engine:    job.Engine,
			Keyword:   job.Keyword,
			Reason:    reason,
			HTMLLen:   len(html),
		})
	}
	metrics.ObserveSearch(string(job.Engine), string(reason))
	return crawler.Outcome{Method: method, Failure: reason}
}

func (a *Automation) succeed(job crawler.CrawlJob, serp crawler.SerpData, method string) crawler.Outcome {
	metrics.ObserveSearch(string(job.Engine), "ok")
	metrics.ObserveExtractionMethod(method)
	return crawler.Outcome{Serp: serp, Method: method}
}

func (a *Automation) now() time.Time {
	if a.clock != nil {
		return a.clock.Now()
	}
	return time.Now().UTC()
}

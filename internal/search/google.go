package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
	"github.com/JakeFAU/serp-harvester/internal/renderer"
)

func evaluateString(ctx context.Context, s renderer.Session, script string) (string, error) {
	var out string
	if err := s.Evaluate(ctx, script, true, &out); err != nil {
		return "", err
	}
	return out, nil
}

const googleSettleCeiling = 12 * time.Second

// googlePayload is the JSON envelope returned by the in-page extraction
// scripts.
type googlePayload struct {
	Method     string                 `json:"method"`
	Results    []crawler.SearchResult `json:"results"`
	RawSnippet string                 `json:"raw_snippet,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// searchGoogle wraps the single-attempt flow in a bounded retry loop.
// An attempt is retried when it errors or produces zero results; backoff
// grows linearly with the attempt number.
func (a *Automation) searchGoogle(ctx context.Context, job crawler.CrawlJob) (crawler.Outcome, error) {
	policy := retryPolicy{maxAttempts: a.cfg.GoogleMaxAttempts, baseDelay: a.cfg.GoogleRetryBackoff}

	var lastOutcome crawler.Outcome
	var lastErr error
	for attempt := 1; attempt <= policy.maxAttempts; attempt++ {
		outcome, err := a.googleAttempt(ctx, job)
		if err == nil && !outcome.Failed() {
			return outcome, nil
		}
		lastOutcome, lastErr = outcome, err

		if attempt == policy.maxAttempts {
			break
		}
		delay := policy.delay(attempt)
		a.logger.Info("retrying google search",
			zap.String("keyword", job.Keyword),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if sleepErr := a.sleep(ctx, delay); sleepErr != nil {
			return lastOutcome, sleepErr
		}
	}
	return lastOutcome, lastErr
}

func (a *Automation) googleAttempt(ctx context.Context, job crawler.CrawlJob) (crawler.Outcome, error) {
	session, proxyID, err := a.startSession(ctx)
	if err != nil {
		return crawler.Outcome{}, err
	}
	defer session.Close()

	attemptOK := false
	defer func() { a.recordProxyOutcome(proxyID, attemptOK) }()

	if err := session.Navigate(ctx, a.cfg.GoogleHomeURL); err != nil {
		return crawler.Outcome{}, err
	}

	// Regional consent interstitial sits in front of the homepage.
	var consent string
	if err := session.Evaluate(ctx, consentScript, false, &consent); err == nil && consent == "consent_clicked" {
		a.logger.Debug("dismissed consent interstitial")
		_ = a.sleep(ctx, 2*time.Second)
	}

	box := "textarea[name='q']"
	if err := session.WaitVisible(ctx, box); err != nil {
		box = "input[name='q']"
		if err := session.WaitVisible(ctx, box); err != nil {
			return crawler.Outcome{}, err
		}
	}
	if err := session.Click(ctx, box); err != nil {
		return crawler.Outcome{}, err
	}
	if err := session.TypeText(ctx, job.Keyword, a.typeDelay); err != nil {
		return crawler.Outcome{}, err
	}
	if err := session.PressEnter(ctx); err != nil {
		return crawler.Outcome{}, err
	}
	_ = a.sleep(ctx, 3*time.Second)

	// Undo silent query rewrites so results match the literal keyword.
	var verbatim string
	if err := session.Evaluate(ctx, verbatimScript, false, &verbatim); err == nil &&
		(verbatim == "clicked_verbatim" || verbatim == "clicked_original") {
		a.logger.Debug("reverted autocorrected query", zap.String("keyword", job.Keyword))
		_ = a.sleep(ctx, 2*time.Second)
	}

	a.humanize(ctx, session)
	_ = a.sleep(ctx, 3*time.Second)
	a.settle(ctx, session, time.Second, googleSettleCeiling)

	html, err := session.HTML(ctx)
	if err != nil {
		return crawler.Outcome{}, err
	}
	if reason := classifyPage(html, a.cfg.MinPageBytes); reason != crawler.FailureNone {
		return a.failAttempt(ctx, session, job, html, "", reason), nil
	}

	serp, method, err := a.extractGoogle(ctx, session)
	if err != nil {
		return crawler.Outcome{}, err
	}
	serp.Truncate()
	if len(serp.Results) == 0 {
		return a.failAttempt(ctx, session, job, html, method, crawler.FailureNoResults), nil
	}

	attemptOK = true
	return a.succeed(job, serp, method), nil
}

// extractGoogle runs the in-page extraction chain: structured landmark walk
// with a raw-text fallback inside the script, then a JS-context probe when
// the script itself cannot run.
func (a *Automation) extractGoogle(ctx context.Context, s renderer.Session) (crawler.SerpData, string, error) {
	raw, err := evaluateString(ctx, s, googleExtractScript)
	if err != nil {
		a.logger.Debug("dom extraction script failed, probing js context", zap.Error(err))
		raw, err = evaluateString(ctx, s, jsContextScript)
		if err != nil {
			return crawler.SerpData{}, "js_context", err
		}
	}

	var payload googlePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return crawler.SerpData{}, "", crawler.NewCrawlError(crawler.ErrKindScript,
			fmt.Errorf("decoding extraction payload: %w", err))
	}
	if payload.Error != "" {
		a.logger.Debug("extraction script reported error", zap.String("error", payload.Error))
	}
	return crawler.SerpData{Results: payload.Results}, payload.Method, nil
}

package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

// searchGeneric treats the job keyword as a target URL and the job's
// selector map as the extraction plan. With no selectors the page title
// becomes the single result.
func (a *Automation) searchGeneric(ctx context.Context, job crawler.CrawlJob) (crawler.Outcome, error) {
	session, proxyID, err := a.startSession(ctx)
	if err != nil {
		return crawler.Outcome{}, err
	}
	defer session.Close()

	attemptOK := false
	defer func() { a.recordProxyOutcome(proxyID, attemptOK) }()

	if err := session.Navigate(ctx, job.Keyword); err != nil {
		return crawler.Outcome{}, err
	}
	a.settle(ctx, session, time.Second, bingSettleCeiling)

	html, err := session.HTML(ctx)
	if err != nil {
		return crawler.Outcome{}, err
	}
	// Arbitrary sites can be legitimately tiny, so only the challenge
	// phrases disqualify a page here, never its size.
	if reason := classifyPage(html, 0); reason != crawler.FailureNone {
		return a.failAttempt(ctx, session, job, html, "", reason), nil
	}

	pageURL, err := session.CurrentURL(ctx)
	if err != nil {
		pageURL = job.Keyword
	}

	var serp crawler.SerpData
	method := "selector_map"
	if len(job.Selectors) > 0 {
		serp, err = extractBySelectors(html, job.Selectors, pageURL)
		if err != nil {
			return crawler.Outcome{}, crawler.NewCrawlError(crawler.ErrKindScript, err)
		}
	} else {
		method = "title"
		title, err := session.Title(ctx)
		if err != nil {
			return crawler.Outcome{}, err
		}
		if title != "" {
			serp.Results = append(serp.Results, crawler.SearchResult{
				Title:   title,
				Link:    pageURL,
				Snippet: title,
			})
		}
	}
	serp.Truncate()
	if len(serp.Results) == 0 {
		return a.failAttempt(ctx, session, job, html, method, crawler.FailureNoResults), nil
	}

	attemptOK = true
	return a.succeed(job, serp, method), nil
}

// extractBySelectors resolves each named field's CSS selector against the
// page and emits one result per field that matched non-empty text. Fields
// are walked in name order so output is stable.
func extractBySelectors(html string, selectors map[string]string, pageURL string) (crawler.SerpData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return crawler.SerpData{}, fmt.Errorf("parsing target page: %w", err)
	}

	fields := make([]string, 0, len(selectors))
	for field := range selectors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var serp crawler.SerpData
	for _, field := range fields {
		text := strings.TrimSpace(doc.Find(selectors[field]).First().Text())
		if text == "" {
			continue
		}
		serp.Results = append(serp.Results, crawler.SearchResult{
			Title:   field,
			Link:    pageURL,
			Snippet: text,
		})
	}
	return serp, nil
}

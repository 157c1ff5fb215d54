package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

const bingSettleCeiling = 8 * time.Second

func (a *Automation) searchBing(ctx context.Context, job crawler.CrawlJob) (crawler.Outcome, error) {
	session, proxyID, err := a.startSession(ctx)
	if err != nil {
		return crawler.Outcome{}, err
	}
	defer session.Close()

	attemptOK := false
	defer func() { a.recordProxyOutcome(proxyID, attemptOK) }()

	if err := session.Navigate(ctx, a.cfg.BingHomeURL); err != nil {
		return crawler.Outcome{}, err
	}
	if err := session.WaitVisible(ctx, "#sb_form_q"); err != nil {
		return crawler.Outcome{}, err
	}
	if err := session.Click(ctx, "#sb_form_q"); err != nil {
		return crawler.Outcome{}, err
	}
	if err := session.TypeText(ctx, job.Keyword, a.typeDelay); err != nil {
		return crawler.Outcome{}, err
	}
	if err := session.PressEnter(ctx); err != nil {
		return crawler.Outcome{}, err
	}

	a.humanize(ctx, session)
	a.settle(ctx, session, time.Second, bingSettleCeiling)

	html, err := session.HTML(ctx)
	if err != nil {
		return crawler.Outcome{}, err
	}
	if reason := classifyPage(html, a.cfg.MinPageBytes); reason != crawler.FailureNone {
		return a.failAttempt(ctx, session, job, html, "landmarks", reason), nil
	}

	serp, err := parseBingSerp(html)
	if err != nil {
		return crawler.Outcome{}, crawler.NewCrawlError(crawler.ErrKindScript, err)
	}
	if len(serp.Results) == 0 {
		return a.failAttempt(ctx, session, job, html, "landmarks", crawler.FailureNoResults), nil
	}

	attemptOK = true
	return a.succeed(job, serp, "landmarks"), nil
}

// parseBingSerp pulls organic results and answer-box supplements out of a
// rendered Bing results page.
func parseBingSerp(html string) (crawler.SerpData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return crawler.SerpData{}, fmt.Errorf("parsing results page: %w", err)
	}

	var serp crawler.SerpData
	doc.Find("li.b_algo").Each(func(_ int, sel *goquery.Selection) {
		anchor := sel.Find("h2 > a").First()
		title := strings.TrimSpace(anchor.Text())
		link, _ := anchor.Attr("href")
		snippet := strings.TrimSpace(sel.Find("p").First().Text())
		if title == "" && link == "" {
			return
		}
		serp.Results = append(serp.Results, crawler.SearchResult{
			Title:   title,
			Link:    link,
			Snippet: snippet,
		})
	})

	doc.Find("div.b_ans div.df_qntext").Each(func(_ int, sel *goquery.Selection) {
		if q := strings.TrimSpace(sel.Text()); q != "" {
			serp.PeopleAlsoAsk = append(serp.PeopleAlsoAsk, q)
		}
	})
	doc.Find("ol#b_context li.b_ans a, ul.b_vList li a.b_rs, div.b_rs li a").Each(func(_ int, sel *goquery.Selection) {
		if r := strings.TrimSpace(sel.Text()); r != "" {
			serp.RelatedSearches = append(serp.RelatedSearches, r)
		}
	})
	serp.FeaturedSnippet = strings.TrimSpace(doc.Find("div.b_ans p.b_focusTextLarge").First().Text())
	serp.TotalResults = strings.TrimSpace(doc.Find("span.sb_count").First().Text())

	serp.Truncate()
	return serp, nil
}

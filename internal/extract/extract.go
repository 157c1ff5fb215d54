// Package extract performs the one-hop deep extraction of a search result:
// fetch the destination page and distill structured content from it.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
	"github.com/JakeFAU/serp-harvester/internal/fetch"
)

// Caps on harvested collections. Pages can carry thousands of links and
// images; the record only needs a representative sample.
const (
	maxImages        = 20
	maxOutboundLinks = 50
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\(?\d[\d\s().\-]{5,}\d`)
)

// PageFetcher retrieves one URL. Satisfied by fetch.Fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Result, error)
}

// Pipeline implements crawler.Extractor. Individual field extractors are
// failure-tolerant: a page that defeats one of them still yields a record
// with the fields that did work.
type Pipeline struct {
	fetcher PageFetcher
	logger  *zap.Logger
}

// New builds a Pipeline.
func New(fetcher PageFetcher, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{fetcher: fetcher, logger: logger}
}

// Extract unwraps engine redirect links, fetches the destination once, and
// distills the page. Only the fetch itself can fail the call.
func (p *Pipeline) Extract(ctx context.Context, rawURL string) (crawler.WebsiteData, error) {
	target := DecodeSearchURL(rawURL)
	if target != rawURL {
		p.logger.Debug("unwrapped redirect link",
			zap.String("wrapped", rawURL), zap.String("target", target))
	}

	res, err := p.fetcher.Fetch(ctx, target)
	if err != nil {
		return crawler.WebsiteData{}, crawler.NewCrawlError(crawler.ErrKindNavigation, err)
	}

	data := crawler.WebsiteData{
		URL:      target,
		FinalURL: res.FinalURL,
		HTML:     string(res.Body),
		HTMLSize: len(res.Body),
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		p.logger.Warn("page did not parse, keeping raw record",
			zap.String("url", target), zap.Error(err))
		return data, nil
	}

	data.Title = strings.TrimSpace(doc.Find("title").First().Text())
	data.MainText = p.mainText(res, doc)
	data.WordCount = len(strings.Fields(data.MainText))

	p.collectMeta(doc, &data)
	p.collectSchemaOrg(doc, &data)
	data.Emails = collectEmails(data.HTML)
	data.PhoneNumbers = collectPhones(doc)
	data.Images = collectImages(doc)
	data.OutboundLinks = collectOutboundLinks(doc, res.FinalURL)

	return data, nil
}

// mainText prefers a readability pass and falls back to stripped visible
// body text when the page defeats it.
func (p *Pipeline) mainText(res fetch.Result, doc *goquery.Document) string {
	pageURL, _ := url.Parse(res.FinalURL)
	article, err := readability.FromReader(bytes.NewReader(res.Body), pageURL)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return collapseWhitespace(text)
		}
	} else {
		p.logger.Debug("readability pass failed, using visible text",
			zap.String("url", res.FinalURL), zap.Error(err))
	}

	body := doc.Clone()
	body.Find("script, style, noscript, template").Remove()
	return collapseWhitespace(body.Find("body").Text())
}

func (p *Pipeline) collectMeta(doc *goquery.Document, data *crawler.WebsiteData) {
	metaName := func(name string) string {
		content, _ := doc.Find("meta[name='" + name + "']").First().Attr("content")
		return strings.TrimSpace(content)
	}
	metaProperty := func(prop string) string {
		content, _ := doc.Find("meta[property='" + prop + "']").First().Attr("content")
		return strings.TrimSpace(content)
	}

	data.MetaDescription = metaName("description")
	data.MetaKeywords = metaName("keywords")
	data.MetaAuthor = metaName("author")
	for _, candidate := range []string{"date", "publish-date", "article:published_time"} {
		if v := metaName(candidate); v != "" {
			data.MetaDate = v
			break
		}
		if v := metaProperty(candidate); v != "" {
			data.MetaDate = v
			break
		}
	}

	data.OGTitle = metaProperty("og:title")
	data.OGDescription = metaProperty("og:description")
	data.OGImage = metaProperty("og:image")
	data.OGType = metaProperty("og:type")
}

// collectSchemaOrg keeps each ld+json block verbatim, skipping blocks that
// are not valid JSON.
func (p *Pipeline) collectSchemaOrg(doc *goquery.Document, data *crawler.WebsiteData) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		block := strings.TrimSpace(sel.Text())
		if block == "" || !json.Valid([]byte(block)) {
			return
		}
		data.SchemaOrg = append(data.SchemaOrg, block)
	})
}

func collectEmails(html string) []string {
	seen := make(map[string]struct{})
	var emails []string
	for _, m := range emailPattern.FindAllString(html, -1) {
		m = strings.ToLower(m)
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		emails = append(emails, m)
	}
	return emails
}

func collectPhones(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var phones []string
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if digitCount(candidate) < 7 || digitCount(candidate) > 15 {
			return
		}
		if _, dup := seen[candidate]; dup {
			return
		}
		seen[candidate] = struct{}{}
		phones = append(phones, candidate)
	}

	doc.Find(`a[href^="tel:"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		add(strings.TrimPrefix(href, "tel:"))
	})
	for _, m := range phonePattern.FindAllString(doc.Text(), -1) {
		add(m)
	}
	return phones
}

// trackingSrcMarkers flag pixel beacons by their src when the tag carries
// no size attributes.
var trackingSrcMarkers = []string{"pixel", "tracker", "tracking", "beacon", "1x1"}

func collectImages(doc *goquery.Document) []crawler.ImageRef {
	var images []crawler.ImageRef
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		// 1x1 images are tracking pixels, not content.
		if w, _ := sel.Attr("width"); w == "1" {
			return true
		}
		if h, _ := sel.Attr("height"); h == "1" {
			return true
		}
		lowerSrc := strings.ToLower(src)
		for _, marker := range trackingSrcMarkers {
			if strings.Contains(lowerSrc, marker) {
				return true
			}
		}
		alt, _ := sel.Attr("alt")
		title, _ := sel.Attr("title")
		images = append(images, crawler.ImageRef{Src: src, Alt: alt, Title: title})
		return len(images) < maxImages
	})
	return images
}

// collectOutboundLinks keeps absolute links pointing off the page's host.
func collectOutboundLinks(doc *goquery.Document, pageURL string) []string {
	pageHost := ""
	if u, err := url.Parse(pageURL); err == nil {
		pageHost = strings.ToLower(u.Hostname())
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find(`a[href^="http"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		host := strings.ToLower(u.Hostname())
		if host == "" || host == pageHost {
			return true
		}
		if _, dup := seen[href]; dup {
			return true
		}
		seen[href] = struct{}{}
		links = append(links, href)
		return len(links) < maxOutboundLinks
	})
	return links
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

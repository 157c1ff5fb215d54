package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
	"github.com/JakeFAU/serp-harvester/internal/fetch"
)

type stubFetcher struct {
	requested []string
	result    fetch.Result
	err       error
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (fetch.Result, error) {
	s.requested = append(s.requested, url)
	if s.err != nil {
		return fetch.Result{}, s.err
	}
	res := s.result
	if res.FinalURL == "" {
		res.FinalURL = url
	}
	return res, nil
}

const articleFixture = `<!DOCTYPE html>
<html>
<head>
<title>Price Report</title>
<meta name="description" content="Monthly price movements.">
<meta name="keywords" content="prices, inflation">
<meta name="author" content="J. Doe">
<meta property="article:published_time" content="2026-08-01">
<meta property="og:title" content="Price Report OG">
<meta property="og:type" content="article">
<script type="application/ld+json">{"@type":"Article","headline":"Price Report"}</script>
<script type="application/ld+json">{not valid json</script>
</head>
<body>
<article>
<h1>Price Report</h1>
<p>Grocery prices rose two percent. Contact a@b.com or a@b.com for details,
or call <a href="tel:+1 (555) 123-4567">+1 (555) 123-4567</a>.</p>
<img src="https://cdn.example.com/chart.png" alt="chart">
<img src="https://tracker.example.com/p.gif" width="1" height="1">
<img src="https://ads.example.com/pixel.gif?cb=42">
<img src="https://cdn.example.com/img/1x1.png">
<img src="data:image/gif;base64,R0lGOD">
<a href="https://other.example.org/source">source</a>
<a href="https://other.example.org/source">source again</a>
<a href="https://example.com/internal">internal</a>
</article>
</body>
</html>`

func TestExtractDistillsPage(t *testing.T) {
	fetcher := &stubFetcher{result: fetch.Result{
		FinalURL: "https://example.com/report",
		Body:     []byte(articleFixture),
	}}
	p := New(fetcher, zap.NewNop())

	data, err := p.Extract(context.Background(), "https://example.com/report")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/report", data.FinalURL)
	assert.Equal(t, "Price Report", data.Title)
	assert.Equal(t, "Monthly price movements.", data.MetaDescription)
	assert.Equal(t, "prices, inflation", data.MetaKeywords)
	assert.Equal(t, "J. Doe", data.MetaAuthor)
	assert.Equal(t, "2026-08-01", data.MetaDate)
	assert.Equal(t, "Price Report OG", data.OGTitle)
	assert.Equal(t, "article", data.OGType)

	assert.Contains(t, data.MainText, "Grocery prices rose")
	assert.Greater(t, data.WordCount, 5)
	assert.Equal(t, len(articleFixture), data.HTMLSize)

	require.Len(t, data.SchemaOrg, 1)
	assert.Contains(t, data.SchemaOrg[0], `"@type":"Article"`)

	assert.Equal(t, []string{"a@b.com"}, data.Emails)

	require.NotEmpty(t, data.PhoneNumbers)
	assert.Equal(t, "+1 (555) 123-4567", data.PhoneNumbers[0])

	require.Len(t, data.Images, 1)
	assert.Equal(t, "https://cdn.example.com/chart.png", data.Images[0].Src)

	assert.Equal(t, []string{"https://other.example.org/source"}, data.OutboundLinks)
}

func TestExtractUnwrapsRedirectBeforeFetching(t *testing.T) {
	target := "https://example.com/article"
	wrapped := "https://www.bing.com/ck/a?u=a1" +
		base64.RawURLEncoding.EncodeToString([]byte(target))

	fetcher := &stubFetcher{result: fetch.Result{Body: []byte("<html><body>x</body></html>")}}
	p := New(fetcher, zap.NewNop())

	data, err := p.Extract(context.Background(), wrapped)
	require.NoError(t, err)

	require.Len(t, fetcher.requested, 1)
	assert.Equal(t, target, fetcher.requested[0])
	assert.Equal(t, target, data.URL)
}

func TestExtractWrapsFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	p := New(fetcher, zap.NewNop())

	_, err := p.Extract(context.Background(), "https://example.com/down")
	require.Error(t, err)
	assert.Equal(t, crawler.ErrKindNavigation, crawler.ErrorKindOf(err))
}

package extract

import (
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSearchURL(t *testing.T) {
	t.Parallel()

	bingWrapped := func(target string) string {
		enc := "a1" + base64.RawURLEncoding.EncodeToString([]byte(target))
		return "https://www.bing.com/ck/a?!&&p=abc&u=" + enc + "&ntb=1"
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bing click wrapper",
			in:   bingWrapped("https://www.example.com/article?id=7"),
			want: "https://www.example.com/article?id=7",
		},
		{
			name: "bing click wrapper with padded payload",
			in: "https://www.bing.com/ck/a?u=a1" +
				base64.StdEncoding.EncodeToString([]byte("https://example.com")),
			want: "https://example.com",
		},
		{
			name: "bing click wrapper with padded url-safe payload",
			in: "https://www.bing.com/ck/a?u=a1" +
				base64.URLEncoding.EncodeToString([]byte("https://example.com/a?b=c&d=e")),
			want: "https://example.com/a?b=c&d=e",
		},
		{
			name: "google url wrapper",
			in:   "https://www.google.com/url?url=" + url.QueryEscape("https://example.com/a b"),
			want: "https://example.com/a b",
		},
		{
			name: "google q wrapper",
			in:   "https://www.google.com/url?q=https://example.com/page",
			want: "https://example.com/page",
		},
		{
			name: "plain url passes through",
			in:   "https://example.com/direct",
			want: "https://example.com/direct",
		},
		{
			name: "bing wrapper without marker passes through",
			in:   "https://www.bing.com/ck/a?u=zzzz",
			want: "https://www.bing.com/ck/a?u=zzzz",
		},
		{
			name: "bing wrapper with junk payload passes through",
			in:   "https://www.bing.com/ck/a?u=a1%%%",
			want: "https://www.bing.com/ck/a?u=a1%%%",
		},
		{
			name: "relative garbage passes through",
			in:   "not a url",
			want: "not a url",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecodeSearchURL(tc.in))
		})
	}
}

func TestDecodeSearchURLIdempotent(t *testing.T) {
	t.Parallel()

	in := "https://www.bing.com/ck/a?u=a1" +
		base64.RawURLEncoding.EncodeToString([]byte("https://example.com/x"))
	once := DecodeSearchURL(in)
	assert.Equal(t, once, DecodeSearchURL(once))
}

package extract

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// DecodeSearchURL unwraps engine redirect links so the pipeline fetches the
// destination site, never the engine's click tracker. Unrecognized or
// malformed wrappers pass through unchanged.
func DecodeSearchURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case strings.HasSuffix(host, "bing.com") && strings.HasPrefix(u.Path, "/ck/"):
		if target := decodeBingClickURL(u); target != "" {
			return target
		}
	case strings.HasSuffix(host, "google.com") && u.Path == "/url":
		if target := u.Query().Get("url"); target != "" {
			return target
		}
		if target := u.Query().Get("q"); target != "" {
			return target
		}
	}
	return raw
}

// decodeBingClickURL reverses Bing's /ck/a wrapper: the u parameter carries
// the destination as "a1" + base64(url), unpadded.
func decodeBingClickURL(u *url.URL) string {
	encoded := u.Query().Get("u")
	if len(encoded) < 3 || !strings.HasPrefix(encoded, "a1") {
		return ""
	}
	// Wrappers in the wild carry the payload both padded and unpadded.
	payload := strings.TrimRight(encoded[2:], "=")
	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		if decoded, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return ""
		}
	}
	target := string(decoded)
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return ""
	}
	return target
}

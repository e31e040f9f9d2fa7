package search

import (
	"html"
	"net/url"
	"strings"
)

// adLinkPrefixes mark entries in the engine's ad/redirect namespace.
// Results carrying these hrefs are dropped, not returned.
var adLinkPrefixes = []string{
	"http://www.google.com/search?q=",
	"https://duckduckgo.com/y.js?ad_domain",
}

func isAdLink(href string) bool {
	for _, p := range adLinkPrefixes {
		if strings.HasPrefix(href, p) {
			return true
		}
	}
	return false
}

// normalizeText unescapes HTML entities and collapses runs of whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// normalizeHref resolves a result link to an absolute http(s) URL: relative
// paths resolve against the backend endpoint, and the engine's /l/ click
// tracker is unwrapped to the target it carries (dropping the tracking
// parameters alongside it). The second return is false for links that
// cannot yield a usable URL; those results are dropped silently.
func normalizeHref(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	// Click-tracking redirect: //duckduckgo.com/l/?uddg=<target>&rut=...
	if strings.HasSuffix(u.Path, "/l/") {
		target := u.Query().Get("uddg")
		if target == "" {
			return "", false
		}
		unwrapped, err := url.Parse(target)
		if err != nil {
			return "", false
		}
		u = unwrapped
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	return u.String(), true
}

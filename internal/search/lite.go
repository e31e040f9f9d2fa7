package search

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const liteEndpoint = "https://lite.duckduckgo.com/lite/"

var liteExhaustedMarker = []byte("No more results.")

// liteBackend parses the lightweight table-based page. The last table lists
// results as fixed groups of four rows: the link row, the snippet row, and
// two filler rows. Skipped entries (ads, duplicates, broken links) still
// consume a whole group.
type liteBackend struct {
	endpoint string
	base     *url.URL
}

// NewLiteBackend creates the lite-format backend. An empty endpoint uses
// the production URL; tests point it at a local server.
func NewLiteBackend(endpoint string) Backend {
	if endpoint == "" {
		endpoint = liteEndpoint
	}
	base, _ := url.Parse(endpoint)
	return &liteBackend{endpoint: endpoint, base: base}
}

func (b *liteBackend) ID() BackendID { return BackendLite }

func (b *liteBackend) Endpoint() string { return b.endpoint }

func (b *liteBackend) Exhausted(body []byte) bool {
	return bytes.Contains(body, liteExhaustedMarker)
}

func (b *liteBackend) Parse(body []byte, seen map[string]struct{}) []Result {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	rows := doc.Find("table").Last().Find("tr")
	n := rows.Length()

	var results []Result
	for i := 0; i < n; i += 4 {
		link := rows.Eq(i).Find("a").First()
		href, ok := link.Attr("href")
		if !ok || href == "" || isAdLink(href) {
			continue
		}
		normalized, ok := normalizeHref(href, b.base)
		if !ok {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}

		var snippet string
		if i+1 < n {
			snippet = rows.Eq(i + 1).Find("td.result-snippet").Text()
		}
		results = append(results, Result{
			Title: normalizeText(link.Text()),
			Href:  normalized,
			Body:  normalizeText(snippet),
		})
	}
	return results
}

func (b *liteBackend) NextPayload(body []byte) url.Values {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	// The continuation form is the one whose submit button reads "Next ...";
	// matching on "ext" tolerates label variations the page has shipped.
	var payload url.Values
	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		isNext := false
		form.Find("input").Each(func(_ int, in *goquery.Selection) {
			if v, ok := in.Attr("value"); ok && strings.Contains(v, "ext") {
				isNext = true
			}
		})
		if !isNext {
			return true
		}

		candidate := url.Values{}
		form.Find("input").Each(func(_ int, in *goquery.Selection) {
			name, ok := in.Attr("name")
			if !ok || name == "" {
				return
			}
			candidate.Set(name, in.AttrOr("value", ""))
		})
		if candidate.Get("s") == "" {
			return true
		}
		payload = candidate
		return false
	})
	return payload
}

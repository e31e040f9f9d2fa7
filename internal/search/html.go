package search

import (
	"bytes"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

const htmlEndpoint = "https://html.duckduckgo.com/html"

// The marker really does carry a double space.
var htmlExhaustedMarker = []byte("No  results.")

// htmlBackend parses the full HTML results page. Each result is a <div>
// with a direct <h2> child holding the title link; the snippet lives in the
// div's direct child anchors.
type htmlBackend struct {
	endpoint string
	base     *url.URL
}

// NewHTMLBackend creates the html-format backend. An empty endpoint uses
// the production URL; tests point it at a local server.
func NewHTMLBackend(endpoint string) Backend {
	if endpoint == "" {
		endpoint = htmlEndpoint
	}
	base, _ := url.Parse(endpoint)
	return &htmlBackend{endpoint: endpoint, base: base}
}

func (b *htmlBackend) ID() BackendID { return BackendHTML }

func (b *htmlBackend) Endpoint() string { return b.endpoint }

func (b *htmlBackend) Exhausted(body []byte) bool {
	return bytes.Contains(body, htmlExhaustedMarker)
}

func (b *htmlBackend) Parse(body []byte, seen map[string]struct{}) []Result {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var results []Result
	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		if s.ChildrenFiltered("h2").Length() == 0 {
			return
		}

		anchors := s.ChildrenFiltered("a")
		href, ok := anchors.First().Attr("href")
		if !ok || href == "" || isAdLink(href) {
			return
		}
		normalized, ok := normalizeHref(href, b.base)
		if !ok {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}

		title := s.ChildrenFiltered("h2").Find("a").First().Text()
		results = append(results, Result{
			Title: normalizeText(title),
			Href:  normalized,
			Body:  normalizeText(anchors.Text()),
		})
	})
	return results
}

func (b *htmlBackend) NextPayload(body []byte) url.Values {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	// The last nav-link block holds the "next" form; earlier ones page back.
	nav := doc.Find("div.nav-link").Last()
	if nav.Length() == 0 {
		return nil
	}

	payload := url.Values{}
	nav.Find(`input[type="hidden"]`).Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		payload.Set(name, in.AttrOr("value", ""))
	})
	if len(payload) == 0 {
		return nil
	}
	return payload
}

package search

import "net/url"

// Result is one search hit. Results are deduplicated by Href within a
// single backend attempt.
type Result struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// BackendID selects which result-page format to use.
type BackendID string

const (
	// BackendAuto tries every available backend in randomized order.
	BackendAuto BackendID = "auto"
	// BackendHTML uses the full HTML results endpoint.
	BackendHTML BackendID = "html"
	// BackendLite uses the lightweight table-based endpoint.
	BackendLite BackendID = "lite"
)

// Backend abstracts one result-page format. The two implementations differ
// only in page structure; both feed the same pagination loop.
type Backend interface {
	// ID names the backend.
	ID() BackendID
	// Endpoint is the URL queried for result pages.
	Endpoint() string
	// Exhausted reports whether the page carries the backend's explicit
	// "no more results" marker.
	Exhausted(body []byte) bool
	// Parse extracts the page's results, skipping ad links, unparseable
	// links, and hrefs already in seen. It inserts new hrefs into seen.
	Parse(body []byte, seen map[string]struct{}) []Result
	// NextPayload extracts the continuation parameters embedded in the
	// page, or nil when the page carries none (end of results).
	NextPayload(body []byte) url.Values
}

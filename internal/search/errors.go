package search

import "fmt"

// TimeoutError reports a transport-level timeout. It is fatal for the
// current attempt; the dispatcher retries only on throttling statuses.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("search: timeout requesting %s: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError reports a non-timeout transport failure (DNS, connection
// reset, TLS). Fatal for the current attempt.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("search: request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports an HTTP status outside the retryable set. Fatal,
// never retried.
type ProtocolError struct {
	URL        string
	StatusCode int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("search: %s returned status %d", e.URL, e.StatusCode)
}

// RateLimitError reports that the server kept signaling throttling until
// the attempt budget was exhausted.
type RateLimitError struct {
	URL      string
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("search: %s exceeded rate limit after %d attempts", e.URL, e.Attempts)
}

// SearchError is returned when every candidate backend failed. It wraps the
// most recent underlying error for diagnostics.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search: all backends failed: %v", e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Config defines the setup for the HTTP client.
type Config struct {
	Timeout time.Duration
	// FollowRedirects enables transparent redirect handling. Left false,
	// redirect statuses surface to the caller, which the dispatcher needs:
	// a 301 from the search endpoint is a throttling signal, not a move.
	FollowRedirects bool
	// UseCookieJar persists cookies across requests on the same client.
	UseCookieJar bool
	// Transport supplies the RoundTripper, e.g. a uTLS fingerprint transport.
	Transport http.RoundTripper
}

// Client wraps a standard http.Client with the redirect and cookie behavior
// a polite scraping client needs. One Client instance is meant to live as
// long as its owner so cookies and connections persist.
type Client struct {
	*http.Client
}

// New creates an HTTP client from the configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	if !cfg.FollowRedirects {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c}, nil
}

// Do executes the request under the provided context. The context governs
// cancellation independently of the client-level timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

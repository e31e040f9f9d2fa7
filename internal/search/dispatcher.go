package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mallardworks/duckdive/internal/bypass"
	"github.com/mallardworks/duckdive/internal/metrics"
	"github.com/mallardworks/duckdive/pkg/backoff"
	"github.com/mallardworks/duckdive/pkg/httpclient"
	"github.com/mallardworks/duckdive/pkg/proxy"
	"github.com/mallardworks/duckdive/pkg/ratelimit"
)

type contextKey string

const proxyContextKey contextKey = "proxy_url"

// DefaultMaxAttempts bounds retries per dispatched request.
const DefaultMaxAttempts = 5

// DefaultRetryStatuses are the statuses treated as throttling signals for
// this target: 202 and 403 are soft blocks, 301 is the redirect-to-challenge
// dance. Anything else is structural and not worth retrying. The set is
// configuration because the target's behavior shifts over time.
var DefaultRetryStatuses = []int{
	http.StatusAccepted,
	http.StatusMovedPermanently,
	http.StatusForbidden,
}

// DispatcherConfig configures a request dispatcher.
type DispatcherConfig struct {
	Client  *httpclient.Client
	Limiter *ratelimit.Bucket
	Backoff *backoff.Policy
	// Headers are sent on every request (client identity, referer).
	Headers http.Header
	// MaxAttempts per Send call. Defaults to DefaultMaxAttempts.
	MaxAttempts int
	// RetryStatuses overrides DefaultRetryStatuses when non-empty.
	RetryStatuses []int
	// Detectors recognize challenge pages; a challenge behind a 200 is
	// treated as a throttling signal. Defaults to bypass.DefaultDetectors.
	Detectors []bypass.Detector
	// Proxies optionally rotates requests across a proxy pool. A fixed
	// proxy on the transport takes precedence.
	Proxies *proxy.Pool
	Logger  *slog.Logger
}

// Dispatcher issues single page requests through the shared rate limiter,
// retrying throttling signals with exponential backoff. One dispatcher is
// shared by every search a client runs, so pacing is enforced client-wide.
type Dispatcher struct {
	client      *httpclient.Client
	limiter     *ratelimit.Bucket
	backoff     *backoff.Policy
	headers     http.Header
	maxAttempts int
	retryable   map[int]struct{}
	detectors   []bypass.Detector
	proxies     *proxy.Pool
	logger      *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher. The HTTP client is required; every
// other field has a working default.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Client == nil {
		return nil, errors.New("search: dispatcher requires an http client")
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewBucket(ratelimit.Config{})
	}
	if cfg.Backoff == nil {
		cfg.Backoff = backoff.NewPolicy(0)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	statuses := cfg.RetryStatuses
	if len(statuses) == 0 {
		statuses = DefaultRetryStatuses
	}
	retryable := make(map[int]struct{}, len(statuses))
	for _, s := range statuses {
		retryable[s] = struct{}{}
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Dispatcher{
		client:      cfg.Client,
		limiter:     cfg.Limiter,
		backoff:     cfg.Backoff,
		headers:     cfg.Headers,
		maxAttempts: cfg.MaxAttempts,
		retryable:   retryable,
		detectors:   cfg.Detectors,
		proxies:     cfg.Proxies,
		logger:      cfg.Logger,
		sleep:       sleepContext,
	}, nil
}

// Send issues one logical page request, retrying throttling signals until
// the attempt budget runs out. It returns the response body on a clean 200,
// or a TimeoutError, TransportError, ProtocolError or RateLimitError.
func (d *Dispatcher) Send(ctx context.Context, method, endpoint string, payload url.Values) ([]byte, error) {
	var encoded string
	if payload != nil {
		encoded = payload.Encode()
	}

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		// Pacing applies to every attempt, retries included.
		if err := d.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("search: rate limiter interrupted: %w", err)
		}

		body, status, header, err := d.attempt(ctx, method, endpoint, encoded)
		if err != nil {
			return nil, err
		}

		metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
		d.logger.Debug("request dispatched", "url", endpoint, "status", status, "bytes", len(body))

		challenged, source := bypass.Analyze(status, header, body, d.detectors)
		if challenged {
			metrics.ChallengesTotal.WithLabelValues(source).Inc()
		}

		if status == http.StatusOK && !challenged {
			return body, nil
		}

		_, retry := d.retryable[status]
		if status == http.StatusOK && challenged {
			// A challenge interstitial behind a 200 is a soft block.
			retry = true
		}
		if !retry {
			return nil, &ProtocolError{URL: endpoint, StatusCode: status}
		}

		if attempt < d.maxAttempts {
			delay := d.backoff.Delay(attempt)
			reason := strconv.Itoa(status)
			if challenged {
				reason = source
			}
			metrics.RetriesTotal.WithLabelValues(endpoint, reason).Inc()
			d.logger.Info("throttling signal, backing off",
				"url", endpoint, "status", status, "challenge", source,
				"delay", delay, "attempt", attempt, "max_attempts", d.maxAttempts)
			if err := d.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("search: backoff interrupted: %w", err)
			}
		}
	}

	return nil, &RateLimitError{URL: endpoint, Attempts: d.maxAttempts}
}

// attempt issues exactly one HTTP request and reads its body.
func (d *Dispatcher) attempt(ctx context.Context, method, endpoint, encoded string) ([]byte, int, http.Header, error) {
	var activeProxy *url.URL
	reqCtx := ctx
	if d.proxies != nil {
		if activeProxy = d.proxies.Next(); activeProxy != nil {
			// The transport's proxy function reads this value, which lets
			// one transport rotate proxies without rebuilding connections.
			reqCtx = context.WithValue(ctx, proxyContextKey, activeProxy)
		}
	}

	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, strings.NewReader(encoded))
	if err != nil {
		return nil, 0, nil, &TransportError{URL: endpoint, Err: err}
	}
	for k, vs := range d.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if encoded != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := d.client.Do(reqCtx, req)
	if err != nil {
		if activeProxy != nil {
			_ = d.proxies.MarkFailure(activeProxy)
		}
		metrics.RequestsTotal.WithLabelValues(endpoint, "error").Inc()
		if isTimeout(err) {
			return nil, 0, nil, &TimeoutError{URL: endpoint, Err: err}
		}
		return nil, 0, nil, &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if activeProxy != nil {
			_ = d.proxies.MarkFailure(activeProxy)
		}
		return nil, 0, nil, &TransportError{URL: endpoint, Err: err}
	}
	if activeProxy != nil {
		_ = d.proxies.MarkSuccess(activeProxy)
	}

	return body, resp.StatusCode, resp.Header, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// proxyFromContext builds the transport proxy function. A fixed proxy wins;
// otherwise the per-request value planted by the dispatcher is used.
func proxyFromContext(fixed *url.URL) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if fixed != nil {
			return fixed, nil
		}
		if v := req.Context().Value(proxyContextKey); v != nil {
			if u, ok := v.(*url.URL); ok {
				return u, nil
			}
		}
		return nil, nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

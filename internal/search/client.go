package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mallardworks/duckdive/internal/fingerprint"
	"github.com/mallardworks/duckdive/internal/history"
	"github.com/mallardworks/duckdive/internal/metrics"
	"github.com/mallardworks/duckdive/pkg/backoff"
	"github.com/mallardworks/duckdive/pkg/httpclient"
	"github.com/mallardworks/duckdive/pkg/proxy"
	"github.com/mallardworks/duckdive/pkg/ratelimit"
	"github.com/mallardworks/duckdive/pkg/useragent"
)

// DefaultRegion is the engine's worldwide region code.
const DefaultRegion = "wt-wt"

const referer = "https://duckduckgo.com/"

// Options tunes a single search call.
type Options struct {
	// Region code, e.g. "wt-wt", "us-en". Defaults to DefaultRegion.
	Region string
	// TimeLimit filters by age: "d", "w", "m", "y". Empty means no filter.
	TimeLimit string
	// MaxResults caps the returned results. 0 paginates to exhaustion.
	MaxResults int
	// Backend selects the page format. Defaults to BackendAuto.
	Backend BackendID
}

// Config configures a search client.
type Config struct {
	// Headers merged into every request, on top of the client identity.
	Headers map[string]string
	// Proxy URL. The DUCKDIVE_PROXY environment variable overrides it and
	// "tb" aliases the Tor Browser SOCKS endpoint.
	Proxy string
	// ProxyPool optionally rotates across several proxies. Ignored when a
	// single Proxy is set.
	ProxyPool *proxy.Pool
	// Timeout per HTTP request. Defaults to 10 seconds.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// Profile pins the TLS fingerprint. Empty picks one from Profiles at
	// construction time and keeps it for the client's lifetime.
	Profile fingerprint.Profile
	// Profiles is the identity pool for the random pick. Empty uses
	// fingerprint.DefaultProfiles.
	Profiles []fingerprint.Profile
	// UserAgents is the header identity pool. Empty uses the default pool.
	UserAgents []string
	// RateLimit tunes the shared token bucket.
	RateLimit ratelimit.Config
	// MaxAttempts, RetryStatuses and BaseDelay tune the dispatcher.
	MaxAttempts   int
	RetryStatuses []int
	BaseDelay     time.Duration
	// History optionally records one audit entry per search call.
	History history.Backend
	Logger  *slog.Logger
	// Seed fixes the random source used for identity selection and backend
	// shuffling. 0 seeds from the clock.
	Seed int64

	// Endpoint overrides, used by tests to target a local server.
	HTMLEndpoint string
	LiteEndpoint string
}

// Client is the search orchestrator. It owns one HTTP identity (TLS
// fingerprint, User-Agent, cookie jar) and one rate limiter, both shared by
// every search it runs, concurrent calls included.
type Client struct {
	dispatcher *Dispatcher
	backends   map[BackendID]Backend
	history    history.Backend
	logger     *slog.Logger

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

// New creates a search client.
func New(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))

	proxyURL, err := proxy.Resolve(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	profile := cfg.Profile
	if profile == "" {
		profile = fingerprint.Pick(cfg.Profiles, rnd)
	}
	transport, err := fingerprint.Transport(profile, fingerprint.Options{
		Proxy:              proxyFromContext(proxyURL),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		UseCookieJar: true,
		Transport:    transport,
	})
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Referer", referer)
	headers.Set("User-Agent", useragent.NewPool(cfg.UserAgents).Pick(rnd))
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	headers.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	pool := cfg.ProxyPool
	if proxyURL != nil {
		// A fixed proxy makes the pool moot.
		pool = nil
	}

	dispatcher, err := NewDispatcher(DispatcherConfig{
		Client:        client,
		Limiter:       ratelimit.NewBucket(cfg.RateLimit),
		Backoff:       backoff.NewPolicy(cfg.BaseDelay),
		Headers:       headers,
		MaxAttempts:   cfg.MaxAttempts,
		RetryStatuses: cfg.RetryStatuses,
		Proxies:       pool,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("client identity selected",
		"fingerprint", profile, "user_agent", headers.Get("User-Agent"))

	return &Client{
		dispatcher: dispatcher,
		backends: map[BackendID]Backend{
			BackendHTML: NewHTMLBackend(cfg.HTMLEndpoint),
			BackendLite: NewLiteBackend(cfg.LiteEndpoint),
		},
		history: cfg.History,
		logger:  logger,
		rnd:     rnd,
	}, nil
}

// Search runs one query and returns the ordered, deduplicated results.
// Callers get either the complete result set of one backend or an error,
// never a silently truncated list. With Backend auto, failures fall back to
// the next backend and a SearchError is returned only when every candidate
// failed; a specifically requested backend propagates its error directly.
func (c *Client) Search(ctx context.Context, keywords string, opts Options) ([]Result, error) {
	if strings.TrimSpace(keywords) == "" {
		return nil, errors.New("search: keywords are empty")
	}
	region := opts.Region
	if region == "" {
		region = DefaultRegion
	}

	candidates, err := c.candidates(opts.Backend)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var lastErr error
	for _, b := range candidates {
		results, err := c.paginate(ctx, b, keywords, region, opts)
		if err != nil {
			// Partial pages from a failed backend are discarded; the next
			// candidate starts from scratch.
			c.logger.Info("backend failed", "backend", b.ID(), "err", err)
			lastErr = err
			continue
		}

		elapsed := time.Since(start)
		metrics.RecordSearch(string(b.ID()), len(results), elapsed)
		c.record(ctx, keywords, region, opts, b.ID(), len(results), elapsed, nil)
		return results, nil
	}

	c.record(ctx, keywords, region, opts, "", 0, time.Since(start), lastErr)
	if opts.Backend != "" && opts.Backend != BackendAuto {
		return nil, lastErr
	}
	return nil, &SearchError{Err: lastErr}
}

// SearchMany runs independent queries concurrently, sharing the client's
// rate limiter so the global request cadence holds. The first failing query
// cancels the rest.
func (c *Client) SearchMany(ctx context.Context, queries []string, opts Options, concurrency int) ([][]Result, error) {
	if concurrency <= 0 {
		concurrency = 2
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	out := make([][]Result, len(queries))
	for i, q := range queries {
		g.Go(func() error {
			results, err := c.Search(gctx, q, opts)
			if err != nil {
				return fmt.Errorf("query %q: %w", q, err)
			}
			out[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// candidates resolves the backend selection to an ordered attempt list.
// Auto shuffles so the first backend tried varies across calls.
func (c *Client) candidates(id BackendID) ([]Backend, error) {
	switch id {
	case "", BackendAuto:
		list := []Backend{c.backends[BackendHTML], c.backends[BackendLite]}
		c.mu.Lock()
		c.rnd.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
		c.mu.Unlock()
		return list, nil
	case BackendHTML, BackendLite:
		return []Backend{c.backends[id]}, nil
	default:
		return nil, fmt.Errorf("search: unknown backend %q", id)
	}
}

// paginate drives the request/parse loop for one backend attempt. The seen
// set is fresh per attempt: a different backend derives results from a
// differently shaped page, so cross-backend href bookkeeping has no value.
func (c *Client) paginate(ctx context.Context, b Backend, keywords, region string, opts Options) ([]Result, error) {
	payload := buildPayload(keywords, region, opts.TimeLimit)
	seen := make(map[string]struct{})
	var results []Result

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := c.dispatcher.Send(ctx, http.MethodPost, b.Endpoint(), payload)
		if err != nil {
			return nil, err
		}
		if b.Exhausted(body) {
			break
		}

		results = append(results, b.Parse(body, seen)...)
		if opts.MaxResults > 0 && len(results) >= opts.MaxResults {
			return results[:opts.MaxResults], nil
		}

		next := b.NextPayload(body)
		if next == nil {
			break
		}
		payload = next
	}

	return results, nil
}

// buildPayload assembles the first page request.
func buildPayload(keywords, region, timeLimit string) url.Values {
	payload := url.Values{
		"q":           {keywords},
		"s":           {"0"},
		"o":           {"json"},
		"api":         {"d.js"},
		"vqd":         {""},
		"kl":          {region},
		"bing_market": {region},
	}
	if timeLimit != "" {
		payload.Set("df", timeLimit)
	}
	return payload
}

// record writes the audit entry for one search call, when history is wired.
func (c *Client) record(ctx context.Context, keywords, region string, opts Options, backend BackendID, results int, elapsed time.Duration, searchErr error) {
	if c.history == nil {
		return
	}

	rec := &history.Record{
		ID:        uuid.New().String(),
		Keywords:  keywords,
		Region:    region,
		TimeLimit: opts.TimeLimit,
		Backend:   string(backend),
		Results:   results,
		Duration:  elapsed,
		CreatedAt: time.Now().UTC(),
	}
	if searchErr != nil {
		rec.Error = searchErr.Error()
	}

	if err := c.history.Save(ctx, rec); err != nil {
		c.logger.Error("failed to record search", "err", err)
	}
}

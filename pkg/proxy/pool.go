package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// EnvVar overrides any explicitly configured proxy when set.
const EnvVar = "DUCKDIVE_PROXY"

// torBrowserAlias is the shorthand accepted for the Tor Browser SOCKS port.
const torBrowserAlias = "tb"

const torBrowserProxy = "socks5://127.0.0.1:9150"

// Resolve determines the proxy for a client: the DUCKDIVE_PROXY environment
// variable wins over the explicit value, and the "tb" alias expands to the
// Tor Browser SOCKS endpoint. An empty result means direct connection.
func Resolve(explicit string) (*url.URL, error) {
	raw := os.Getenv(EnvVar)
	if raw == "" {
		raw = explicit
	}
	if raw == torBrowserAlias {
		raw = torBrowserProxy
	}
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("proxy: invalid url %q: %w", raw, err)
	}
	return u, nil
}

// endpoint tracks the health of a single proxy.
type endpoint struct {
	url           *url.URL
	failures      int
	successes     int
	lastUsed      time.Time
	disabledUntil time.Time
}

func (e *endpoint) disabled(now time.Time) bool {
	return now.Before(e.disabledUntil)
}

// Pool rotates search traffic across a set of proxies, temporarily benching
// endpoints that keep failing. All methods are safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	order       []string
	byURL       map[string]*endpoint
	next        int
	maxFailures int
	cooldown    time.Duration
}

// Config defines pool health thresholds.
type Config struct {
	// MaxFailures before an endpoint is benched. Defaults to 3.
	MaxFailures int
	// Cooldown is how long a benched endpoint sits out. Defaults to 5 minutes.
	Cooldown time.Duration
}

// NewPool creates an empty proxy pool.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		byURL:       make(map[string]*endpoint),
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// LoadFile reads proxy URLs from a file, one per line. Empty lines and lines
// starting with '#' are skipped.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	return p.Add(urls...)
}

// Add parses and registers proxy URLs. A URL without a scheme defaults to http.
func (p *Pool) Add(rawURLs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
		key := u.String()
		if _, ok := p.byURL[key]; ok {
			continue
		}
		p.byURL[key] = &endpoint{url: u}
		p.order = append(p.order, key)
	}
	return nil
}

// Next returns the next healthy proxy in round-robin order, or nil when the
// pool is empty or every endpoint is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.order)
	if n == 0 {
		return nil
	}

	now := time.Now()
	for i := 0; i < n; i++ {
		e := p.byURL[p.order[p.next]]
		p.next = (p.next + 1) % n
		if e.disabled(now) {
			continue
		}
		e.lastUsed = now
		return e.url
	}
	return nil
}

// MarkSuccess records a successful request through the given proxy and decays
// its failure count.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	e, unlock, err := p.lookup(proxyURL)
	if err != nil {
		return err
	}
	defer unlock()

	e.successes++
	if e.failures > 0 {
		e.failures--
	}
	return nil
}

// MarkFailure records a failed request through the given proxy. Hitting the
// failure threshold benches the endpoint for the configured cooldown.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	e, unlock, err := p.lookup(proxyURL)
	if err != nil {
		return err
	}
	defer unlock()

	e.failures++
	if e.failures >= p.maxFailures {
		e.disabledUntil = time.Now().Add(p.cooldown)
		e.failures = 0
	}
	return nil
}

func (p *Pool) lookup(proxyURL *url.URL) (*endpoint, func(), error) {
	if proxyURL == nil {
		return nil, nil, errors.New("proxy: url cannot be nil")
	}
	p.mu.Lock()
	e, ok := p.byURL[proxyURL.String()]
	if !ok {
		p.mu.Unlock()
		return nil, nil, fmt.Errorf("proxy: %s not in pool", proxyURL)
	}
	return e, p.mu.Unlock, nil
}

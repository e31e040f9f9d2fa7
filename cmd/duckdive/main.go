// Command duckdive runs text searches against DuckDuckGo's HTML endpoints
// and prints the results.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mallardworks/duckdive/internal/config"
	"github.com/mallardworks/duckdive/internal/fingerprint"
	"github.com/mallardworks/duckdive/internal/history"
	"github.com/mallardworks/duckdive/internal/history/jsonbackend"
	"github.com/mallardworks/duckdive/internal/history/postgres"
	"github.com/mallardworks/duckdive/internal/history/sqlite"
	"github.com/mallardworks/duckdive/internal/metrics"
	"github.com/mallardworks/duckdive/internal/report"
	"github.com/mallardworks/duckdive/internal/search"
	"github.com/mallardworks/duckdive/pkg/proxy"
	"github.com/mallardworks/duckdive/pkg/ratelimit"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		query      = flag.String("q", "", "search query (required unless -report)")
		region     = flag.String("region", "", "region code, e.g. wt-wt, us-en")
		timeLimit  = flag.String("timelimit", "", "freshness filter: d, w, m, y")
		backend    = flag.String("backend", "auto", "result backend: auto, html, lite")
		maxResults = flag.Int("max", 0, "maximum results (0 = all pages)")
		jsonOut    = flag.Bool("json", false, "print results as JSON")
		proxyURL   = flag.String("proxy", "", `proxy URL ("tb" = Tor Browser)`)
		showReport = flag.Bool("report", false, "print a summary of recorded searches and exit")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *region != "" {
		cfg.Search.Region = *region
	}
	if *proxyURL != "" {
		cfg.Proxy.URL = *proxyURL
	}

	logger := newLogger(cfg.Log)

	store, err := openHistory(cfg.History)
	if err != nil {
		logger.Error("failed to open history backend", "err", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *showReport {
		if err := printReport(ctx, store); err != nil {
			logger.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if *query == "" {
		fmt.Fprintln(os.Stderr, "usage: duckdive -q <query> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if cfg.Metrics.Enabled {
		srv := metrics.Start(cfg.Metrics.Port)
		defer srv.Stop(context.Background())
	}

	var pool *proxy.Pool
	if cfg.Proxy.File != "" {
		pool = proxy.NewPool(proxy.Config{})
		if err := pool.LoadFile(cfg.Proxy.File); err != nil {
			logger.Error("failed to load proxy file", "err", err)
			os.Exit(1)
		}
	}

	client, err := search.New(search.Config{
		Headers:       cfg.Search.Headers,
		Proxy:         cfg.Proxy.URL,
		ProxyPool:     pool,
		Timeout:       cfg.Search.Timeout.Std(),
		Profile:       fingerprint.Profile(cfg.Search.Fingerprint),
		UserAgents:    cfg.Search.UserAgents,
		RateLimit:     ratelimit.Config{Capacity: cfg.Search.RateCapacity, RefillRate: cfg.Search.RefillRate},
		MaxAttempts:   cfg.Search.MaxAttempts,
		RetryStatuses: cfg.Search.RetryStatuses,
		BaseDelay:     cfg.Search.BaseDelay.Std(),
		History:       store,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to build search client", "err", err)
		os.Exit(1)
	}

	results, err := client.Search(ctx, *query, search.Options{
		Region:     cfg.Search.Region,
		TimeLimit:  *timeLimit,
		MaxResults: *maxResults,
		Backend:    search.BackendID(*backend),
	})
	if err != nil {
		logger.Error("search failed", "query", *query, "err", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			logger.Error("failed to encode results", "err", err)
			os.Exit(1)
		}
		return
	}

	for i, r := range results {
		fmt.Printf("%d. %s\n   %s\n   %s\n\n", i+1, r.Title, r.Href, r.Body)
	}
	logger.Info("search complete", "query", *query, "results", len(results))
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func openHistory(cfg config.HistoryConfig) (history.Backend, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "sqlite":
		return sqlite.New(cfg.DSN)
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return postgres.New(ctx, cfg.DSN)
	case "json":
		return jsonbackend.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.Driver)
	}
}

func printReport(ctx context.Context, store history.Backend) error {
	if store == nil {
		return fmt.Errorf("no history backend configured")
	}
	records, err := store.Query(ctx, history.Filter{})
	if err != nil {
		return err
	}
	return report.WriteText(os.Stdout, report.GenerateSummary(records))
}

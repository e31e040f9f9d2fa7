package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdive_requests_total",
			Help: "Total number of page requests dispatched",
		},
		[]string{"endpoint", "status"},
	)

	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdive_retries_total",
			Help: "Total number of retried attempts, by throttling signal",
		},
		[]string{"endpoint", "reason"},
	)

	ChallengesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdive_challenges_total",
			Help: "Total number of detected anti-bot challenges",
		},
		[]string{"source"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdive_search_duration_seconds",
			Help:    "Duration of complete search calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"backend"},
	)

	ResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdive_results_total",
			Help: "Total number of search results returned to callers",
		},
		[]string{"backend"},
	)
)

// RecordSearch updates the per-search metrics.
func RecordSearch(backend string, results int, duration time.Duration) {
	SearchDuration.WithLabelValues(backend).Observe(duration.Seconds())
	ResultsTotal.WithLabelValues(backend).Add(float64(results))
}

// Server encapsulates an HTTP server exposing Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

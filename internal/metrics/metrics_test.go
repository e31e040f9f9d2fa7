package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(8899)
	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	defer srv.Stop(context.Background())

	RequestsTotal.WithLabelValues("https://html.example.test/html", "200").Inc()
	RetriesTotal.WithLabelValues("https://html.example.test/html", "403").Inc()
	ChallengesTotal.WithLabelValues("anomaly").Inc()
	RecordSearch("html", 7, 2*time.Second)

	resp, err := http.Get("http://localhost:8899/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	output := string(body)

	for _, want := range []string{
		"duckdive_requests_total",
		"duckdive_retries_total",
		`duckdive_challenges_total{source="anomaly"}`,
		"duckdive_search_duration_seconds_bucket",
		`duckdive_results_total{backend="html"} 7`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}

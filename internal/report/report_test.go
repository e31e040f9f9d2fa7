package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mallardworks/duckdive/internal/history"
)

func sampleRecords() []*history.Record {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return []*history.Record{
		{ID: "a", Keywords: "q1", Region: "wt-wt", Backend: "html", Results: 25, Duration: 2 * time.Second, CreatedAt: base},
		{ID: "b", Keywords: "q2", Region: "us-en", Backend: "lite", Results: 10, Duration: time.Second, CreatedAt: base.Add(time.Hour)},
		{ID: "c", Keywords: "q3", Region: "wt-wt", Results: 0, Duration: 3 * time.Second, CreatedAt: base.Add(30 * time.Minute), Error: "search: all backends failed"},
	}
}

func TestGenerateSummary(t *testing.T) {
	s := GenerateSummary(sampleRecords())

	if s.TotalSearches != 3 {
		t.Errorf("TotalSearches = %d, want 3", s.TotalSearches)
	}
	if s.TotalErrors != 1 {
		t.Errorf("TotalErrors = %d, want 1", s.TotalErrors)
	}
	if s.TotalResults != 35 {
		t.Errorf("TotalResults = %d, want 35", s.TotalResults)
	}
	if s.Backends["html"] != 1 || s.Backends["lite"] != 1 {
		t.Errorf("Backends = %v", s.Backends)
	}
	if _, ok := s.Backends[""]; ok {
		t.Error("failed searches must not count toward a backend")
	}
	if s.Regions["wt-wt"] != 2 {
		t.Errorf("Regions = %v", s.Regions)
	}
	if s.AvgDuration != 2*time.Second {
		t.Errorf("AvgDuration = %v, want 2s", s.AvgDuration)
	}
	if s.Span != time.Hour {
		t.Errorf("Span = %v, want 1h", s.Span)
	}
}

func TestGenerateSummaryEmpty(t *testing.T) {
	s := GenerateSummary(nil)
	if s.TotalSearches != 0 || s.AvgDuration != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, GenerateSummary(sampleRecords())); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"TotalSearches": 3`) {
		t.Errorf("json output missing totals:\n%s", out)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, GenerateSummary(sampleRecords())); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Total Searches: 3", "html: 1", "wt-wt: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, GenerateSummary(sampleRecords())); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"<title>Duckdive Search Report</title>", "<td>lite</td>"} {
		if !strings.Contains(out, want) {
			t.Errorf("html output missing %q", want)
		}
	}
}

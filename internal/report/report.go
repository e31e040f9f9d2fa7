package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/mallardworks/duckdive/internal/history"
)

// Summary contains aggregated metrics about a set of recorded searches.
type Summary struct {
	TotalSearches int
	TotalErrors   int
	TotalResults  int
	Backends      map[string]int
	Regions       map[string]int
	AvgDuration   time.Duration
	StartTime     time.Time
	EndTime       time.Time
	Span          time.Duration
}

// GenerateSummary aggregates a slice of search records into summary metrics.
func GenerateSummary(records []*history.Record) Summary {
	s := Summary{
		Backends: make(map[string]int),
		Regions:  make(map[string]int),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	var totalDuration time.Duration
	for _, r := range records {
		s.TotalSearches++
		if r.Error != "" {
			s.TotalErrors++
		}
		s.TotalResults += r.Results
		if r.Backend != "" {
			s.Backends[r.Backend]++
		}
		if r.Region != "" {
			s.Regions[r.Region]++
		}
		totalDuration += r.Duration

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.AvgDuration = totalDuration / time.Duration(s.TotalSearches)
	s.Span = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Duckdive Search Summary
-----------------------
Time:           {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Span:           {{.Span}}
Total Searches: {{.TotalSearches}}
Total Results:  {{.TotalResults}}
Total Errors:   {{.TotalErrors}}
Avg Duration:   {{.AvgDuration}}

Backends:
{{- range $backend, $count := .Backends}}
  {{$backend}}: {{$count}}
{{- else}}
  None
{{- end}}

Regions:
{{- range $region, $count := .Regions}}
  {{$region}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Duckdive Search Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Duckdive Search Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Span}})</p>

  <div class="stat-card">
    <div>Total Searches</div>
    <div class="stat-val">{{.TotalSearches}}</div>
  </div>
  <div class="stat-card">
    <div>Total Results</div>
    <div class="stat-val">{{.TotalResults}}</div>
  </div>
  <div class="stat-card">
    <div>Errors</div>
    <div class="stat-val" style="color: {{if gt .TotalErrors 0}}red{{else}}green{{end}};">{{.TotalErrors}}</div>
  </div>
  <div class="stat-card">
    <div>Avg Duration</div>
    <div class="stat-val">{{.AvgDuration}}</div>
  </div>

  <h3>Backends</h3>
  <table>
    <tr><th>Backend</th><th>Count</th></tr>
    {{- range $backend, $count := .Backends}}
    <tr><td>{{$backend}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Regions</h3>
  <table>
    <tr><th>Region</th><th>Count</th></tr>
    {{- range $region, $count := .Regions}}
    <tr><td>{{$region}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := template.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	return nil
}

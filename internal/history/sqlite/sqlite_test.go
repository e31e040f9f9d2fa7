package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mallardworks/duckdive/internal/history"
)

func newTestBackend(t *testing.T) history.Backend {
	t.Helper()

	b, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSaveAndQuery(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	rec := &history.Record{
		ID:        "rec-1",
		Keywords:  "golang concurrency",
		Region:    "wt-wt",
		TimeLimit: "w",
		Backend:   "html",
		Results:   27,
		Duration:  1540 * time.Millisecond,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := b.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := b.Query(ctx, history.Filter{Keywords: "golang concurrency"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	r := got[0]
	if r.ID != rec.ID || r.Backend != rec.Backend || r.Results != rec.Results {
		t.Errorf("record mismatch: %+v", r)
	}
	if r.Duration != rec.Duration {
		t.Errorf("duration = %v, want %v", r.Duration, rec.Duration)
	}
}

func TestQueryFilters(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	records := []*history.Record{
		{ID: "a", Keywords: "q1", Region: "wt-wt", Backend: "html", Results: 10, CreatedAt: base.Add(-2 * time.Hour)},
		{ID: "b", Keywords: "q1", Region: "wt-wt", Backend: "lite", Results: 8, CreatedAt: base.Add(-time.Hour)},
		{ID: "c", Keywords: "q2", Region: "us-en", Backend: "html", Results: 5, CreatedAt: base},
	}
	for _, r := range records {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Save(%s): %v", r.ID, err)
		}
	}

	got, err := b.Query(ctx, history.Filter{Backend: "html"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("backend filter: got %d, want 2", len(got))
	}
	// Newest first.
	if got[0].ID != "c" || got[1].ID != "a" {
		t.Errorf("order = [%s %s], want [c a]", got[0].ID, got[1].ID)
	}

	since := base.Add(-90 * time.Minute)
	got, err = b.Query(ctx, history.Filter{Since: &since})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("since filter: got %d, want 2", len(got))
	}

	got, err = b.Query(ctx, history.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("limit/offset: got %+v, want [b]", got)
	}
}

func TestQueryEmpty(t *testing.T) {
	b := newTestBackend(t)

	got, err := b.Query(context.Background(), history.Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records from empty store", len(got))
	}
}

func TestFailedSearchRecord(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	rec := &history.Record{
		ID:        "fail-1",
		Keywords:  "blocked query",
		Region:    "wt-wt",
		Results:   0,
		CreatedAt: time.Now().UTC(),
		Error:     "search: https://html.duckduckgo.com/html gave up after 5 attempts",
	}
	if err := b.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := b.Query(ctx, history.Filter{Keywords: "blocked query"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].Error == "" {
		t.Errorf("failed search not recorded: %+v", got)
	}
}

// Package history records the outcome of search calls for auditing and
// reporting. Records hold counts and timings only, never page bodies or
// result snippets, so the store is not a result cache.
package history

import (
	"context"
	"time"
)

// Record represents the outcome of one search call.
type Record struct {
	ID        string        `json:"id"`
	Keywords  string        `json:"keywords"`
	Region    string        `json:"region"`
	TimeLimit string        `json:"time_limit,omitempty"`
	Backend   string        `json:"backend,omitempty"` // backend that produced the results, empty if all failed
	Results   int           `json:"results"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
	Error     string        `json:"error,omitempty"` // non-empty if the search failed
}

// Filter selects records to query.
type Filter struct {
	Keywords string
	Backend  string
	Since    *time.Time
	Limit    int
	Offset   int
}

// Backend defines the interface for storing and querying search records.
type Backend interface {
	Save(ctx context.Context, rec *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}

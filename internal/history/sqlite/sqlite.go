package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mallardworks/duckdive/internal/history"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements history.Backend
var _ history.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS search_records (
	id TEXT PRIMARY KEY,
	keywords TEXT NOT NULL,
	region TEXT NOT NULL,
	time_limit TEXT,
	backend TEXT,
	results INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	error TEXT
);
`

// New creates a SQLite-backed history.Backend.
func New(dsn string) (history.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, rec *history.Record) error {
	query := `
	INSERT INTO search_records (
		id, keywords, region, time_limit, backend, results, duration_ms, created_at, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		rec.ID,
		rec.Keywords,
		rec.Region,
		rec.TimeLimit,
		rec.Backend,
		rec.Results,
		rec.Duration.Milliseconds(),
		rec.CreatedAt,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter history.Filter) ([]*history.Record, error) {
	query := `SELECT id, keywords, region, time_limit, backend, results, duration_ms, created_at, error FROM search_records WHERE 1=1`
	args := []any{}

	if filter.Keywords != "" {
		query += ` AND keywords = ?`
		args = append(args, filter.Keywords)
	}
	if filter.Backend != "" {
		query += ` AND backend = ?`
		args = append(args, filter.Backend)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var records []*history.Record
	for rows.Next() {
		var r history.Record
		var durationMs int64

		err := rows.Scan(
			&r.ID, &r.Keywords, &r.Region, &r.TimeLimit, &r.Backend,
			&r.Results, &durationMs, &r.CreatedAt, &r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}

		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	return records, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mallardworks/duckdive/internal/history"
)

// ensure postgresBackend implements history.Backend
var _ history.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS search_records (
	id TEXT PRIMARY KEY,
	keywords TEXT NOT NULL,
	region TEXT NOT NULL,
	time_limit TEXT,
	backend TEXT,
	results INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	error TEXT
);
`

// New creates a Postgres-backed history.Backend.
func New(ctx context.Context, dsn string) (history.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *history.Record) error {
	query := `
	INSERT INTO search_records (
		id, keywords, region, time_limit, backend, results, duration_ms, created_at, error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := b.pool.Exec(ctx, query,
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

func (b *postgresBackend) Query(ctx context.Context, filter history.Filter) ([]*history.Record, error) {
	query := `SELECT id, keywords, region, time_limit, backend, results, duration_ms, created_at, error FROM search_records WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Keywords != "" {
		query += fmt.Sprintf(` AND keywords = $%d`, paramCount)
		args = append(args, filter.Keywords)
		paramCount++
	}
	if filter.Backend != "" {
		query += fmt.Sprintf(` AND backend = $%d`, paramCount)
		args = append(args, filter.Backend)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
		paramCount++
	}

	rows, err := b.pool.Query(ctx, query, args...)
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

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}

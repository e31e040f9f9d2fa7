package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mallardworks/duckdive/internal/history"
)

// ensure jsonBackend implements history.Backend
var _ history.Backend = (*jsonBackend)(nil)

// jsonBackend appends one JSON document per search record (NDJSON).
type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// New creates an NDJSON-backed history.Backend.
func New(filePath string) (history.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	return &jsonBackend{file: f}, nil
}

func (b *jsonBackend) Save(ctx context.Context, rec *history.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("history: %w", err)
	}

	return nil
}

func (b *jsonBackend) Query(ctx context.Context, filter history.Filter) ([]*history.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	var matched []*history.Record
	scanner := bufio.NewScanner(b.file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r history.Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}

		if filter.Keywords != "" && r.Keywords != filter.Keywords {
			continue
		}
		if filter.Backend != "" && r.Backend != filter.Backend {
			continue
		}
		if filter.Since != nil && r.CreatedAt.Before(*filter.Since) {
			continue
		}

		matched = append(matched, &r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	// Order by created_at DESC (records are appended in order)
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*history.Record{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}

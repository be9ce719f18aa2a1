package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGStore implements Store on a Postgres kv_entries table, for agents
// co-located with server infrastructure. Schema ships as a goose migration.
type PGStore struct {
	DB    *sql.DB
	Quota int64
}

// NewPGStore constructs a PGStore over an existing connection pool.
func NewPGStore(db *sql.DB, quotaBytes int64) *PGStore {
	return &PGStore{DB: db, Quota: quotaBytes}
}

// Get returns the stored value for key.
func (s *PGStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM kv_entries WHERE key = $1`
	var value []byte
	err := s.DB.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key via upsert.
func (s *PGStore) Set(ctx context.Context, key string, value []byte) error {
	const query = `
INSERT INTO kv_entries (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.DB.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key; removing a missing key is not an error.
func (s *PGStore) Remove(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_entries WHERE key = $1`
	if _, err := s.DB.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("kv remove %s: %w", key, err)
	}
	return nil
}

// Keys returns every key in the store in sorted order.
func (s *PGStore) Keys(ctx context.Context) ([]string, error) {
	const query = `SELECT key FROM kv_entries ORDER BY key`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("kv keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("kv keys scan: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv keys rows: %w", err)
	}
	return keys, nil
}

// Info reports usage as the sum of stored key and value bytes.
func (s *PGStore) Info(ctx context.Context) (StorageInfo, error) {
	const query = `SELECT COALESCE(SUM(octet_length(key) + octet_length(value)), 0) FROM kv_entries`
	var used int64
	if err := s.DB.QueryRowContext(ctx, query).Scan(&used); err != nil {
		return StorageInfo{}, fmt.Errorf("kv info: %w", err)
	}
	return StorageInfo{UsedBytes: used, QuotaBytes: s.Quota}, nil
}

// Close is a no-op; the *sql.DB pool is owned by the caller.
func (s *PGStore) Close() error { return nil }

var _ Store = (*PGStore)(nil)

package kv

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for tests and dev runs.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int64
}

// NewMemoryStore constructs a MemoryStore with the given quota.
// A zero or negative quota means unlimited.
func NewMemoryStore(quotaBytes int64) *MemoryStore {
	return &MemoryStore{
		data:  make(map[string][]byte),
		quota: quotaBytes,
	}
}

// Get returns the stored value for key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// Set stores value under key, overwriting any previous value.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = stored
	return nil
}

// Remove deletes key if present; removing a missing key is not an error.
func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys returns all stored keys in sorted order.
func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Info reports approximate usage as the sum of key and value lengths.
func (s *MemoryStore) Info(ctx context.Context) (StorageInfo, error) {
	if err := ctx.Err(); err != nil {
		return StorageInfo{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var used int64
	for k, v := range s.data {
		used += int64(len(k) + len(v))
	}
	return StorageInfo{UsedBytes: used, QuotaBytes: s.quota}, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)

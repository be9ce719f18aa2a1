package kv

import (
	"context"
	"errors"
)

// ErrNotFound indicates the key does not exist in the store.
var ErrNotFound = errors.New("key not found")

// StorageInfo reports how much of the store's quota is in use.
type StorageInfo struct {
	UsedBytes  int64 `json:"usedBytes"`
	QuotaBytes int64 `json:"quotaBytes"`
}

// Store defines the durable key-value facility the offline state is
// mirrored into. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Info(ctx context.Context) (StorageInfo, error)
	Close() error
}

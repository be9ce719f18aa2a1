// Package cache keeps completed analysis results available while the agent
// is offline. Entries live for a fixed TTL and are persisted as a single
// JSON document so the cache survives restarts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"fineprint-agent/internal/shared/metrics"
	"fineprint-agent/internal/shared/storage/kv"
	"fineprint-agent/internal/shared/telemetry"
	"fineprint-agent/internal/shared/util"
)

// StorageKey is the persistence key for the full cache contents.
const StorageKey = "fineprint/cached_analyses"

// DefaultTTL is how long a cached analysis stays valid.
const DefaultTTL = 24 * time.Hour

// SchemaVersion marks the persisted entry layout. Bump it when the
// CachedAnalysis shape changes so stale snapshots are discarded on load.
const SchemaVersion = 1

// ErrNotFound is returned when no live entry exists for a document.
var ErrNotFound = errors.New("analysis not cached")

// CachedAnalysis is one stored analysis result.
type CachedAnalysis struct {
	ID            string          `json:"id"`
	DocumentID    string          `json:"documentId"`
	FileName      string          `json:"fileName"`
	Result        json.RawMessage `json:"result"`
	CreatedAt     time.Time       `json:"createdAt"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	SchemaVersion int             `json:"schemaVersion"`
	Checksum      string          `json:"checksum"`
}

// Cache is a TTL-bound result cache backed by a key-value store.
type Cache struct {
	mu      sync.Mutex
	entries map[string]CachedAnalysis
	store   kv.Store
	ttl     time.Duration
	now     func() time.Time
}

// New creates an empty cache over the given store. A zero ttl means
// DefaultTTL.
func New(store kv.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]CachedAnalysis),
		store:   store,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetNow overrides the clock, primarily for tests.
func (c *Cache) SetNow(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Load restores cache contents from the store. A missing key leaves the
// cache empty; a corrupt snapshot is discarded rather than failing startup.
func (c *Cache) Load(ctx context.Context) error {
	data, err := c.store.Get(ctx, StorageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var entries map[string]CachedAnalysis
	if err := json.Unmarshal(data, &entries); err != nil {
		telemetry.Warn("discarding unreadable analysis cache", map[string]any{"error": err.Error()})
		return nil
	}

	c.mu.Lock()
	c.entries = make(map[string]CachedAnalysis, len(entries))
	for docID, entry := range entries {
		if entry.SchemaVersion != SchemaVersion {
			continue
		}
		c.entries[docID] = entry
	}
	c.mu.Unlock()
	return nil
}

// Put stores an analysis result for a document, stamping creation and
// expiry times. An existing entry for the same document is replaced.
func (c *Cache) Put(ctx context.Context, id, documentID, fileName string, result json.RawMessage) (CachedAnalysis, error) {
	c.mu.Lock()
	now := c.now()
	entry := CachedAnalysis{
		ID:            id,
		DocumentID:    documentID,
		FileName:      fileName,
		Result:        result,
		CreatedAt:     now,
		ExpiresAt:     now.Add(c.ttl),
		SchemaVersion: SchemaVersion,
		Checksum:      util.Checksum(result),
	}
	c.entries[documentID] = entry
	c.mu.Unlock()

	c.persist(ctx)
	return entry, nil
}

// Get returns the live entry for a document. An expired entry is removed
// on access and reported as a miss.
func (c *Cache) Get(ctx context.Context, documentID string) (CachedAnalysis, error) {
	c.mu.Lock()
	entry, ok := c.entries[documentID]
	expired := ok && !c.now().Before(entry.ExpiresAt)
	if expired {
		delete(c.entries, documentID)
	}
	c.mu.Unlock()

	if expired {
		c.persist(ctx)
	}
	if !ok || expired {
		metrics.RecordCacheMiss()
		return CachedAnalysis{}, ErrNotFound
	}

	metrics.RecordCacheHit()
	return entry, nil
}

// Remove drops the entry for a document if present.
func (c *Cache) Remove(ctx context.Context, documentID string) {
	c.mu.Lock()
	_, ok := c.entries[documentID]
	delete(c.entries, documentID)
	c.mu.Unlock()

	if ok {
		c.persist(ctx)
	}
}

// SweepExpired removes every entry past its expiry and returns how many
// were dropped.
func (c *Cache) SweepExpired(ctx context.Context) int {
	c.mu.Lock()
	now := c.now()
	removed := 0
	for docID, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, docID)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.persist(ctx)
	}
	return removed
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]CachedAnalysis)
	c.mu.Unlock()

	c.persist(ctx)
}

// Size returns the number of entries, live or not.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns all entries ordered by creation time, newest first.
func (c *Cache) Snapshot() []CachedAnalysis {
	c.mu.Lock()
	out := make([]CachedAnalysis, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, entry)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// persist writes the full cache contents to the store. Storage failures
// are logged, not returned: the in-memory cache stays authoritative for
// the life of the process.
func (c *Cache) persist(ctx context.Context) {
	c.mu.Lock()
	data, err := json.Marshal(c.entries)
	c.mu.Unlock()
	if err != nil {
		telemetry.Error("marshal analysis cache", map[string]any{"error": err.Error()})
		return
	}
	if err := c.store.Set(ctx, StorageKey, data); err != nil {
		telemetry.Error("persist analysis cache", map[string]any{"error": err.Error()})
	}
}

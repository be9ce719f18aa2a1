package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fineprint-agent/internal/shared/metrics"
	"fineprint-agent/internal/shared/storage/kv"
)

var sampleResult = json.RawMessage(`{"riskScore":72,"findings":["auto-renewal"]}`)

func newTestCache(t *testing.T) (*Cache, kv.Store, *time.Time) {
	t.Helper()
	metrics.Reset()
	t.Cleanup(metrics.Reset)

	store := kv.NewMemoryStore(0)
	c := New(store, 0)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	c.SetNow(func() time.Time { return now })
	return c, store, &now
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c, _, now := newTestCache(t)
	ctx := context.Background()

	entry, err := c.Put(ctx, "an-1", "doc-1", "terms.pdf", sampleResult)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := entry.ExpiresAt.Sub(entry.CreatedAt); got != 24*time.Hour {
		t.Fatalf("ttl = %v, want 24h", got)
	}

	if _, err := c.Get(ctx, "doc-1"); err != nil {
		t.Fatalf("get before expiry: %v", err)
	}

	// One nanosecond short of expiry is still a hit.
	*now = entry.ExpiresAt.Add(-time.Nanosecond)
	if _, err := c.Get(ctx, "doc-1"); err != nil {
		t.Fatalf("get just before expiry: %v", err)
	}

	*now = entry.ExpiresAt
	if _, err := c.Get(ctx, "doc-1"); err != ErrNotFound {
		t.Fatalf("get at expiry = %v, want ErrNotFound", err)
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry not removed, size = %d", c.Size())
	}
}

func TestGetUpdatesHitRate(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	if _, err := c.Put(ctx, "an-1", "doc-1", "terms.pdf", sampleResult); err != nil {
		t.Fatalf("put: %v", err)
	}

	c.Get(ctx, "doc-1")
	c.Get(ctx, "doc-1")
	if got := metrics.Read().CacheHitRate; got != 0.75 {
		t.Fatalf("hit rate = %v, want 0.75", got)
	}

	c.Get(ctx, "missing")
	snap := metrics.Read()
	if snap.CacheHitRate != 0.75 {
		t.Fatalf("hit rate after miss = %v, want 0.75", snap.CacheHitRate)
	}
	if snap.CacheMisses != 1 {
		t.Fatalf("misses = %d, want 1", snap.CacheMisses)
	}
}

func TestSweepExpired(t *testing.T) {
	c, _, now := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, "an-1", "doc-old", "old.pdf", sampleResult)
	*now = now.Add(12 * time.Hour)
	c.Put(ctx, "an-2", "doc-new", "new.pdf", sampleResult)

	*now = now.Add(13 * time.Hour)
	if removed := c.SweepExpired(ctx); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := c.Get(ctx, "doc-new"); err != nil {
		t.Fatalf("surviving entry lost: %v", err)
	}
}

func TestLoadRestoresEntries(t *testing.T) {
	c, store, now := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, "an-1", "doc-1", "terms.pdf", sampleResult)

	restored := New(store, 0)
	restored.SetNow(func() time.Time { return *now })
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	entry, err := restored.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get after restore: %v", err)
	}
	if entry.ID != "an-1" || string(entry.Result) != string(sampleResult) {
		t.Fatalf("restored entry mismatch: %+v", entry)
	}
}

func TestLoadSkipsUnknownSchema(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	stale := map[string]CachedAnalysis{
		"doc-1": {ID: "an-1", DocumentID: "doc-1", SchemaVersion: SchemaVersion + 1},
	}
	data, _ := json.Marshal(stale)
	if err := store.Set(ctx, StorageKey, data); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Size() != 0 {
		t.Fatalf("entry with unknown schema survived load, size = %d", c.Size())
	}
}

func TestClearRemovesPersistedState(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, "an-1", "doc-1", "terms.pdf", sampleResult)
	c.Clear(ctx)

	data, err := store.Get(ctx, StorageKey)
	if err != nil {
		t.Fatalf("get persisted cache: %v", err)
	}
	var entries map[string]CachedAnalysis
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal persisted cache: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("persisted cache not empty after clear: %d entries", len(entries))
	}
}

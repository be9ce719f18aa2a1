package kv

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	badgerStore, err := OpenBadger(BadgerOptions{InMemory: true, GCInterval: -1})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { badgerStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(0),
		"badger": badgerStore,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			if err := store.Set(ctx, "a", []byte("one")); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := store.Set(ctx, "b", []byte("two")); err != nil {
				t.Fatalf("set: %v", err)
			}

			val, err := store.Get(ctx, "a")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(val) != "one" {
				t.Fatalf("expected one, got %s", val)
			}

			// Overwrite.
			if err := store.Set(ctx, "a", []byte("uno")); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			val, err = store.Get(ctx, "a")
			if err != nil {
				t.Fatalf("get after overwrite: %v", err)
			}
			if string(val) != "uno" {
				t.Fatalf("expected uno, got %s", val)
			}

			keys, err := store.Keys(ctx)
			if err != nil {
				t.Fatalf("keys: %v", err)
			}
			if !reflect.DeepEqual(keys, []string{"a", "b"}) {
				t.Fatalf("expected [a b], got %v", keys)
			}

			if err := store.Remove(ctx, "a"); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after remove, got %v", err)
			}
			// Removing again is idempotent.
			if err := store.Remove(ctx, "a"); err != nil {
				t.Fatalf("second remove: %v", err)
			}
		})
	}
}

func TestStoreHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set(ctx, "a", []byte("x")); err == nil {
				t.Fatalf("expected context error on Set")
			}
			if _, err := store.Get(ctx, "a"); err == nil {
				t.Fatalf("expected context error on Get")
			}
		})
	}
}

func TestMemoryStoreInfo(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(1024)

	if err := store.Set(ctx, "key", []byte("value")); err != nil {
		t.Fatalf("set: %v", err)
	}

	info, err := store.Info(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.UsedBytes != int64(len("key")+len("value")) {
		t.Fatalf("expected %d used bytes, got %d", len("key")+len("value"), info.UsedBytes)
	}
	if info.QuotaBytes != 1024 {
		t.Fatalf("expected quota 1024, got %d", info.QuotaBytes)
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	buf := []byte("original")
	if err := store.Set(ctx, "k", buf); err != nil {
		t.Fatalf("set: %v", err)
	}
	buf[0] = 'X'

	val, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(val) != "original" {
		t.Fatalf("expected stored value isolated from caller buffer, got %s", val)
	}
}

func TestBadgerStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenBadger(BadgerOptions{Path: dir, GCInterval: -1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Set(ctx, "persisted", []byte("yes")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenBadger(BadgerOptions{Path: dir, GCInterval: -1})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	val, err := reopened.Get(ctx, "persisted")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(val) != "yes" {
		t.Fatalf("expected persisted value, got %s", val)
	}
}

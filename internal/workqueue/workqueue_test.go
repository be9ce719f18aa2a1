package workqueue

import (
	"context"
	"testing"
	"time"

	"fineprint-agent/internal/shared/storage/kv"
)

func newTestQueue(t *testing.T) (*Queue, kv.Store, *time.Time) {
	t.Helper()
	store := kv.NewMemoryStore(0)
	q := New(store)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	q.SetNow(func() time.Time { return now })
	return q, store, &now
}

func enqueue(t *testing.T, q *Queue, docID string) Item {
	t.Helper()
	item, err := q.Enqueue(context.Background(), EnqueueInput{
		DocumentID: docID,
		FileName:   docID + ".pdf",
		MimeType:   "application/pdf",
		Content:    "clause text",
	})
	if err != nil {
		t.Fatalf("enqueue %s: %v", docID, err)
	}
	return item
}

func TestEnqueuePreservesArrivalOrder(t *testing.T) {
	q, _, _ := newTestQueue(t)

	a := enqueue(t, q, "doc-a")
	b := enqueue(t, q, "doc-b")
	c := enqueue(t, q, "doc-c")

	snap := q.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("items = %d, want 3", len(snap))
	}
	if snap[0].ID != a.ID || snap[1].ID != b.ID || snap[2].ID != c.ID {
		t.Fatal("snapshot out of arrival order")
	}
}

func TestEnqueueRequiresDocumentID(t *testing.T) {
	q, _, _ := newTestQueue(t)
	if _, err := q.Enqueue(context.Background(), EnqueueInput{FileName: "x.pdf"}); err == nil {
		t.Fatal("expected error for missing document id")
	}
}

func TestRecordFailureIncrements(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()
	item := enqueue(t, q, "doc-a")

	for want := 1; want <= MaxRetries; want++ {
		count, err := q.RecordFailure(ctx, item.ID, "upstream timeout")
		if err != nil {
			t.Fatalf("record failure: %v", err)
		}
		if count != want {
			t.Fatalf("retry count = %d, want %d", count, want)
		}
	}

	got, _ := q.Get(item.ID)
	if got.Status != StatusFailed || got.LastError != "upstream timeout" {
		t.Fatalf("item after failures: %+v", got)
	}
}

func TestSetStatusCompletedStampsTime(t *testing.T) {
	q, _, now := newTestQueue(t)
	ctx := context.Background()
	item := enqueue(t, q, "doc-a")

	*now = now.Add(time.Minute)
	if err := q.SetStatus(ctx, item.ID, StatusCompleted, ""); err != nil {
		t.Fatalf("set status: %v", err)
	}

	got, _ := q.Get(item.ID)
	if got.CompletedAt == nil || !got.CompletedAt.Equal(*now) {
		t.Fatalf("completedAt = %v, want %v", got.CompletedAt, *now)
	}
}

func TestLoadResetsProcessingToPending(t *testing.T) {
	q, store, _ := newTestQueue(t)
	ctx := context.Background()
	item := enqueue(t, q, "doc-a")

	if err := q.SetStatus(ctx, item.ID, StatusProcessing, ""); err != nil {
		t.Fatalf("set status: %v", err)
	}

	restored := New(store)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := restored.Get(item.ID)
	if !ok {
		t.Fatal("item lost across restart")
	}
	if got.Status != StatusPending {
		t.Fatalf("status after restart = %s, want pending", got.Status)
	}
}

func TestPruneCompletedHonorsRetention(t *testing.T) {
	q, _, now := newTestQueue(t)
	ctx := context.Background()

	old := enqueue(t, q, "doc-old")
	q.SetStatus(ctx, old.ID, StatusCompleted, "")

	*now = now.Add(6 * 24 * time.Hour)
	fresh := enqueue(t, q, "doc-fresh")
	q.SetStatus(ctx, fresh.ID, StatusCompleted, "")
	pending := enqueue(t, q, "doc-pending")

	*now = now.Add(2 * 24 * time.Hour)
	removed := q.PruneCompleted(ctx, 0)
	if len(removed) != 1 || removed[0].ID != old.ID {
		t.Fatalf("removed = %+v, want only the 8-day-old item", removed)
	}
	if _, ok := q.Get(fresh.ID); !ok {
		t.Fatal("1-day-old completed item pruned")
	}
	if _, ok := q.Get(pending.ID); !ok {
		t.Fatal("pending item pruned")
	}
}

func TestCountByStatus(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	enqueue(t, q, "doc-a")
	b := enqueue(t, q, "doc-b")
	c := enqueue(t, q, "doc-c")
	q.RecordFailure(ctx, b.ID, "boom")
	q.SetStatus(ctx, c.ID, StatusCompleted, "")

	counts := q.CountByStatus()
	if counts[StatusPending] != 1 || counts[StatusFailed] != 1 || counts[StatusCompleted] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

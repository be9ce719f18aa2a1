// Package workqueue holds documents waiting for cloud analysis. Items are
// processed in arrival order and the full queue is persisted on every
// mutation so pending work survives restarts.
package workqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fineprint-agent/internal/shared/metrics"
	"fineprint-agent/internal/shared/storage/kv"
	"fineprint-agent/internal/shared/telemetry"
)

// StorageKey is the persistence key for the full queue contents.
const StorageKey = "fineprint/analysis_queue"

// MaxRetries is how many failed attempts an item gets before it is dropped.
const MaxRetries = 3

// CompletedRetention is how long completed items stay queued before
// maintenance prunes them.
const CompletedRetention = 7 * 24 * time.Hour

// Status describes where an item is in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrNotFound is returned when no item exists for an ID.
var ErrNotFound = errors.New("queue item not found")

// AnalysisOptions carries per-document analysis preferences through to the
// cloud API.
type AnalysisOptions struct {
	Priority     string `json:"priority,omitempty"`
	AnalysisType string `json:"analysisType,omitempty"`
	DeepScan     bool   `json:"deepScan,omitempty"`
	CompareMode  bool   `json:"compareMode,omitempty"`
}

// Item is one document queued for analysis.
type Item struct {
	ID          string          `json:"id"`
	DocumentID  string          `json:"documentId"`
	FileName    string          `json:"fileName"`
	MimeType    string          `json:"mimeType"`
	SizeBytes   int64           `json:"sizeBytes"`
	UserID      string          `json:"userId,omitempty"`
	StorageKey  string          `json:"storageKey,omitempty"`
	Content     string          `json:"content"`
	Options     AnalysisOptions `json:"options"`
	Status      Status          `json:"status"`
	RetryCount  int             `json:"retryCount"`
	LastError   string          `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// EnqueueInput is what callers supply when queueing a document.
type EnqueueInput struct {
	DocumentID string
	FileName   string
	MimeType   string
	SizeBytes  int64
	UserID     string
	StorageKey string
	Content    string
	Options    AnalysisOptions
}

// Queue is a persistent FIFO of analysis work.
type Queue struct {
	mu    sync.Mutex
	items []Item
	store kv.Store
	now   func() time.Time
}

// New creates an empty queue over the given store.
func New(store kv.Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

// SetNow overrides the clock, primarily for tests.
func (q *Queue) SetNow(now func() time.Time) {
	q.mu.Lock()
	q.now = now
	q.mu.Unlock()
}

// Load restores queue contents from the store. Items caught mid-processing
// by a crash are reset to pending so they run again.
func (q *Queue) Load(ctx context.Context) error {
	data, err := q.store.Get(ctx, StorageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		telemetry.Warn("discarding unreadable analysis queue", map[string]any{"error": err.Error()})
		return nil
	}

	q.mu.Lock()
	for i := range items {
		if items[i].Status == StatusProcessing {
			items[i].Status = StatusPending
		}
	}
	q.items = items
	q.mu.Unlock()
	return nil
}

// Enqueue appends a new pending item and persists the queue.
func (q *Queue) Enqueue(ctx context.Context, in EnqueueInput) (Item, error) {
	if in.DocumentID == "" {
		return Item{}, errors.New("document id is required")
	}

	q.mu.Lock()
	item := Item{
		ID:         uuid.NewString(),
		DocumentID: in.DocumentID,
		FileName:   in.FileName,
		MimeType:   in.MimeType,
		SizeBytes:  in.SizeBytes,
		UserID:     in.UserID,
		StorageKey: in.StorageKey,
		Content:    in.Content,
		Options:    in.Options,
		Status:     StatusPending,
		CreatedAt:  q.now(),
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	metrics.IncOperationsEnqueued()
	q.persist(ctx)
	return item, nil
}

// Get returns the item with the given ID.
func (q *Queue) Get(id string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// ByDocument returns the most recent item for a document.
func (q *Queue) ByDocument(documentID string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := len(q.items) - 1; i >= 0; i-- {
		if q.items[i].DocumentID == documentID {
			return q.items[i], true
		}
	}
	return Item{}, false
}

// Snapshot returns every item in arrival order.
func (q *Queue) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Item(nil), q.items...)
}

// SetStatus moves an item to the given status. Completing an item stamps
// CompletedAt and clears its last error.
func (q *Queue) SetStatus(ctx context.Context, id string, status Status, lastError string) error {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	q.items[idx].Status = status
	q.items[idx].LastError = lastError
	if status == StatusCompleted {
		done := q.now()
		q.items[idx].CompletedAt = &done
		q.items[idx].LastError = ""
	}
	q.mu.Unlock()

	q.persist(ctx)
	return nil
}

// RecordFailure marks an item failed, increments its retry count, and
// returns the new count.
func (q *Queue) RecordFailure(ctx context.Context, id string, cause string) (int, error) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	q.items[idx].Status = StatusFailed
	q.items[idx].RetryCount++
	q.items[idx].LastError = cause
	count := q.items[idx].RetryCount
	q.mu.Unlock()

	q.persist(ctx)
	return count, nil
}

// Remove deletes an item from the queue.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	q.mu.Unlock()

	q.persist(ctx)
	return nil
}

// Clear drops every item.
func (q *Queue) Clear(ctx context.Context) {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()

	q.persist(ctx)
}

// PruneCompleted removes completed items older than maxAge and returns
// the removed items so callers can release their stored blobs.
func (q *Queue) PruneCompleted(ctx context.Context, maxAge time.Duration) []Item {
	if maxAge <= 0 {
		maxAge = CompletedRetention
	}

	q.mu.Lock()
	cutoff := q.now().Add(-maxAge)
	var kept []Item
	var removed []Item
	for _, item := range q.items {
		if item.Status == StatusCompleted && item.CreatedAt.Before(cutoff) {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	q.mu.Unlock()

	if len(removed) > 0 {
		q.persist(ctx)
	}
	return removed
}

// Size returns the number of queued items in any status.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// CountByStatus tallies items per status.
func (q *Queue) CountByStatus() map[Status]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[Status]int, 4)
	for _, item := range q.items {
		out[item.Status]++
	}
	return out
}

func (q *Queue) indexLocked(id string) int {
	for i, item := range q.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// persist writes the full queue to the store. Storage failures are logged,
// not returned.
func (q *Queue) persist(ctx context.Context) {
	q.mu.Lock()
	items := q.items
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	q.mu.Unlock()
	if err != nil {
		telemetry.Error("marshal analysis queue", map[string]any{"error": err.Error()})
		return
	}
	if err := q.store.Set(ctx, StorageKey, data); err != nil {
		telemetry.Error("persist analysis queue", map[string]any{"error": err.Error()})
	}
}

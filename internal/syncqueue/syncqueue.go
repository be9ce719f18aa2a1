// Package syncqueue buffers local mutations made while offline until they
// can be replayed against the cloud API.
package syncqueue

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
const StorageKey = "fineprint/sync_queue"

// MaxRetries is how many failed replays an operation gets before it is
// dropped.
const MaxRetries = 3

// Kind names the resource an operation applies to.
type Kind string

const (
	KindAnalysis     Kind = "analysis"
	KindNotification Kind = "notification"
	KindPreference   Kind = "preference"
	KindUserData     Kind = "user_data"
)

// Action names what an operation does to its resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Status describes where an operation is in its replay lifecycle.
// Successful operations are removed rather than kept as completed.
type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusFailed  Status = "failed"
)

// ErrNotFound is returned when no operation exists for an ID.
var ErrNotFound = errors.New("sync operation not found")

// Operation is one buffered mutation.
type Operation struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Action      Action          `json:"action"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	RetryCount  int             `json:"retryCount"`
	LastError   string          `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	LastAttempt *time.Time      `json:"lastAttempt,omitempty"`
}

// Queue is a persistent FIFO of mutations awaiting replay.
type Queue struct {
	mu    sync.Mutex
	ops   []Operation
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

// Load restores queue contents from the store. Operations caught
// mid-replay by a crash are reset to pending so they run again.
func (q *Queue) Load(ctx context.Context) error {
	data, err := q.store.Get(ctx, StorageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		telemetry.Warn("discarding unreadable sync queue", map[string]any{"error": err.Error()})
		return nil
	}

	q.mu.Lock()
	for i := range ops {
		if ops[i].Status == StatusSyncing {
			ops[i].Status = StatusPending
		}
	}
	q.ops = ops
	q.mu.Unlock()
	return nil
}

// Enqueue appends a new pending operation and persists the queue.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, action Action, payload json.RawMessage) (Operation, error) {
	if !validKind(kind) {
		return Operation{}, fmt.Errorf("unknown operation kind: %s", kind)
	}
	if !validAction(action) {
		return Operation{}, fmt.Errorf("unknown operation action: %s", action)
	}

	q.mu.Lock()
	op := Operation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Action:    action,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: q.now(),
	}
	q.ops = append(q.ops, op)
	q.mu.Unlock()

	metrics.IncOperationsEnqueued()
	q.persist(ctx)
	return op, nil
}

// Get returns the operation with the given ID.
func (q *Queue) Get(id string) (Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, op := range q.ops {
		if op.ID == id {
			return op, true
		}
	}
	return Operation{}, false
}

// Snapshot returns every operation in arrival order.
func (q *Queue) Snapshot() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Operation(nil), q.ops...)
}

// MarkSyncing claims an operation for an in-flight replay attempt.
func (q *Queue) MarkSyncing(ctx context.Context, id string) error {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	q.ops[idx].Status = StatusSyncing
	q.mu.Unlock()

	q.persist(ctx)
	return nil
}

// RecordFailure marks an operation failed, increments its retry count,
// stamps the attempt time, and returns the new count.
func (q *Queue) RecordFailure(ctx context.Context, id string, cause string) (int, error) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	attempt := q.now()
	q.ops[idx].Status = StatusFailed
	q.ops[idx].RetryCount++
	q.ops[idx].LastError = cause
	q.ops[idx].LastAttempt = &attempt
	count := q.ops[idx].RetryCount
	q.mu.Unlock()

	q.persist(ctx)
	return count, nil
}

// Remove deletes an operation from the queue.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	q.ops = append(q.ops[:idx], q.ops[idx+1:]...)
	q.mu.Unlock()

	q.persist(ctx)
	return nil
}

// Clear drops every operation.
func (q *Queue) Clear(ctx context.Context) {
	q.mu.Lock()
	q.ops = nil
	q.mu.Unlock()

	q.persist(ctx)
}

// Size returns the number of buffered operations.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

func (q *Queue) indexLocked(id string) int {
	for i, op := range q.ops {
		if op.ID == id {
			return i
		}
	}
	return -1
}

func validKind(kind Kind) bool {
	switch kind {
	case KindAnalysis, KindNotification, KindPreference, KindUserData:
		return true
	}
	return false
}

func validAction(action Action) bool {
	switch action {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// persist writes the full queue to the store. Storage failures are logged,
// not returned.
func (q *Queue) persist(ctx context.Context) {
	q.mu.Lock()
	ops := q.ops
	if ops == nil {
		ops = []Operation{}
	}
	data, err := json.Marshal(ops)
	q.mu.Unlock()
	if err != nil {
		telemetry.Error("marshal sync queue", map[string]any{"error": err.Error()})
		return
	}
	if err := q.store.Set(ctx, StorageKey, data); err != nil {
		telemetry.Error("persist sync queue", map[string]any{"error": err.Error()})
	}
}

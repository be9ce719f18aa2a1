// Package engine drives synchronization between the agent's local queues
// and the Fine Print cloud API. At most one drain cycle runs at a time;
// triggers while a cycle is in flight are silently coalesced into it.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"fineprint-agent/internal/cache"
	"fineprint-agent/internal/connectivity"
	"fineprint-agent/internal/remote"
	"fineprint-agent/internal/shared/metrics"
	"fineprint-agent/internal/shared/storage/kv"
	"fineprint-agent/internal/shared/storage/object"
	"fineprint-agent/internal/shared/telemetry"
	"fineprint-agent/internal/syncqueue"
	"fineprint-agent/internal/workqueue"
)

// Engine owns the drain cycle over both queues.
type Engine struct {
	work      *workqueue.Queue
	syncQ     *syncqueue.Queue
	cache     *cache.Cache
	monitor   *connectivity.Monitor
	analyses  remote.AnalysisClient
	mutations remote.MutationClient
	blobs     object.BlobStore
	store     kv.Store
	autoSync  bool
	now       func() time.Time

	mu      sync.Mutex
	syncing bool
}

// Options wires an Engine's collaborators.
type Options struct {
	Work      *workqueue.Queue
	Sync      *syncqueue.Queue
	Cache     *cache.Cache
	Monitor   *connectivity.Monitor
	Analyses  remote.AnalysisClient
	Mutations remote.MutationClient
	Blobs     object.BlobStore
	Store     kv.Store
	AutoSync  bool
}

// New creates an engine.
func New(opts Options) *Engine {
	return &Engine{
		work:      opts.Work,
		syncQ:     opts.Sync,
		cache:     opts.Cache,
		monitor:   opts.Monitor,
		analyses:  opts.Analyses,
		mutations: opts.Mutations,
		blobs:     opts.Blobs,
		store:     opts.Store,
		autoSync:  opts.AutoSync,
		now:       time.Now,
	}
}

// SetNow overrides the clock, primarily for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// Result summarizes one StartSync call.
type Result struct {
	Ran      bool   `json:"ran"`
	Reason   string `json:"reason,omitempty"`
	Synced   int    `json:"synced"`
	Failed   int    `json:"failed"`
	Dropped  int    `json:"dropped"`
	Duration time.Duration `json:"duration"`
}

// StartSync runs one drain cycle. It is a no-op when a cycle is already
// in flight, the agent is offline, or there is nothing to drain.
func (e *Engine) StartSync(ctx context.Context) Result {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return Result{Reason: "sync already in progress"}
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	if !e.monitor.Online() {
		return Result{Reason: "offline"}
	}
	if e.syncQ.Size() == 0 && e.work.Size() == 0 {
		return Result{Reason: "nothing to sync"}
	}

	start := e.now()
	metrics.MarkSyncAttempt(start)

	res := Result{Ran: true}
	e.drainSyncQueue(ctx, &res)
	e.drainWorkQueue(ctx, &res)

	res.Duration = e.now().Sub(start)
	metrics.ObserveSyncDuration(res.Duration)
	if res.Synced > 0 {
		metrics.MarkSyncSuccess(e.now())
	}

	telemetry.Info("sync cycle finished", map[string]any{
		"synced":     res.Synced,
		"failed":     res.Failed,
		"dropped":    res.Dropped,
		"durationMs": res.Duration.Milliseconds(),
	})
	return res
}

// TriggerAsync starts a drain cycle on its own goroutine, detached from
// the caller's request lifetime.
func (e *Engine) TriggerAsync() {
	go e.StartSync(context.Background())
}

// NotifyEnqueued is called after anything is queued. It kicks off a drain
// when auto-sync is on and the agent is online.
func (e *Engine) NotifyEnqueued() {
	if e.autoSync && e.monitor.Online() {
		e.TriggerAsync()
	}
}

// drainSyncQueue replays buffered mutations in arrival order. The queue is
// snapshotted up front so operations enqueued mid-cycle wait for the next
// one.
func (e *Engine) drainSyncQueue(ctx context.Context, res *Result) {
	for _, op := range e.syncQ.Snapshot() {
		if ctx.Err() != nil {
			return
		}

		if err := e.syncQ.MarkSyncing(ctx, op.ID); err != nil {
			continue
		}
		err := e.mutations.Apply(ctx, string(op.Kind), string(op.Action), op.Payload)
		if err == nil {
			if err := e.syncQ.Remove(ctx, op.ID); err != nil {
				telemetry.Warn("synced operation already gone", map[string]any{"operationId": op.ID})
			}
			metrics.IncSyncSuccess()
			res.Synced++
			continue
		}

		metrics.IncSyncFailure()
		res.Failed++

		if !remote.Temporary(err) {
			e.dropOperation(ctx, op.ID, op.Kind, err, res)
			continue
		}

		count, recErr := e.syncQ.RecordFailure(ctx, op.ID, err.Error())
		if recErr != nil {
			continue
		}
		if count >= syncqueue.MaxRetries {
			e.dropOperation(ctx, op.ID, op.Kind, err, res)
		}
	}
}

func (e *Engine) dropOperation(ctx context.Context, id string, kind syncqueue.Kind, cause error, res *Result) {
	if err := e.syncQ.Remove(ctx, id); err != nil {
		return
	}
	metrics.IncItemDropped()
	res.Dropped++
	telemetry.Error("dropping sync operation", map[string]any{
		"operationId": id,
		"kind":        string(kind),
		"error":       cause.Error(),
	})
}

// drainWorkQueue submits queued documents for analysis. A successful
// submission caches the result and removes the item; items completed
// out of band stay queued until maintenance prunes them.
func (e *Engine) drainWorkQueue(ctx context.Context, res *Result) {
	for _, item := range e.work.Snapshot() {
		if ctx.Err() != nil {
			return
		}
		if item.Status != workqueue.StatusPending && item.Status != workqueue.StatusFailed {
			continue
		}

		if err := e.work.SetStatus(ctx, item.ID, workqueue.StatusProcessing, ""); err != nil {
			continue
		}

		result, err := e.analyses.SubmitAnalysis(ctx, remote.AnalysisRequest{
			DocumentID:   item.DocumentID,
			FileName:     item.FileName,
			MimeType:     item.MimeType,
			Content:      item.Content,
			Priority:     item.Options.Priority,
			AnalysisType: item.Options.AnalysisType,
			DeepScan:     item.Options.DeepScan,
			CompareMode:  item.Options.CompareMode,
		})
		if err == nil {
			e.cacheResult(ctx, item, result)
			e.work.SetStatus(ctx, item.ID, workqueue.StatusCompleted, "")
			if err := e.work.Remove(ctx, item.ID); err == nil {
				e.removeBlob(ctx, item)
			}
			metrics.IncSyncSuccess()
			res.Synced++
			continue
		}

		metrics.IncSyncFailure()
		res.Failed++

		if !remote.Temporary(err) {
			e.dropItem(ctx, item, err, res)
			continue
		}

		count, recErr := e.work.RecordFailure(ctx, item.ID, err.Error())
		if recErr != nil {
			continue
		}
		if count >= workqueue.MaxRetries {
			e.dropItem(ctx, item, err, res)
		}
	}
}

func (e *Engine) dropItem(ctx context.Context, item workqueue.Item, cause error, res *Result) {
	if err := e.work.Remove(ctx, item.ID); err != nil {
		return
	}
	e.removeBlob(ctx, item)
	metrics.IncItemDropped()
	res.Dropped++
	telemetry.Error("dropping analysis item", map[string]any{
		"itemId":     item.ID,
		"documentId": item.DocumentID,
		"error":      cause.Error(),
	})
}

func (e *Engine) cacheResult(ctx context.Context, item workqueue.Item, result json.RawMessage) {
	var probe struct {
		ID string `json:"id"`
	}
	json.Unmarshal(result, &probe)
	id := probe.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := e.cache.Put(ctx, id, item.DocumentID, item.FileName, result); err != nil {
		telemetry.Error("cache analysis result", map[string]any{
			"documentId": item.DocumentID,
			"error":      err.Error(),
		})
	}
}

func (e *Engine) removeBlob(ctx context.Context, item workqueue.Item) {
	if e.blobs == nil || item.StorageKey == "" {
		return
	}
	if err := e.blobs.Remove(ctx, item.StorageKey); err != nil {
		telemetry.Warn("remove document blob", map[string]any{
			"storageKey": item.StorageKey,
			"error":      err.Error(),
		})
	}
}

package engine

import (
	"context"
	"time"

	"fineprint-agent/internal/cache"
	"fineprint-agent/internal/connectivity"
	"fineprint-agent/internal/shared/metrics"
	"fineprint-agent/internal/shared/storage/kv"
	"fineprint-agent/internal/shared/telemetry"
)

// CleanupReport summarizes one maintenance pass.
type CleanupReport struct {
	ExpiredAnalyses int `json:"expiredAnalyses"`
	PrunedItems     int `json:"prunedItems"`
}

// CleanupStorage drops expired cache entries, prunes old completed work
// items, and releases the document blobs those items were holding.
func (e *Engine) CleanupStorage(ctx context.Context) CleanupReport {
	report := CleanupReport{
		ExpiredAnalyses: e.cache.SweepExpired(ctx),
	}

	pruned := e.work.PruneCompleted(ctx, 0)
	report.PrunedItems = len(pruned)
	for _, item := range pruned {
		e.removeBlob(ctx, item)
	}

	if report.ExpiredAnalyses > 0 || report.PrunedItems > 0 {
		telemetry.Info("storage cleanup finished", map[string]any{
			"expiredAnalyses": report.ExpiredAnalyses,
			"prunedItems":     report.PrunedItems,
		})
	}
	return report
}

// RunMaintenance runs CleanupStorage on the given interval until the
// context is cancelled. A non-positive interval disables the loop.
func (e *Engine) RunMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.CleanupStorage(ctx)
		}
	}
}

// ClearQueues empties both queues and resets counters.
func (e *Engine) ClearQueues(ctx context.Context) {
	e.work.Clear(ctx)
	e.syncQ.Clear(ctx)
	metrics.Reset()
	telemetry.Info("queues cleared", nil)
}

// Status is a point-in-time view of the whole subsystem.
type Status struct {
	Connectivity connectivity.State `json:"connectivity"`
	SyncInFlight bool               `json:"syncInFlight"`
	PendingItems int                `json:"pendingItems"`
	FailedItems  int                `json:"failedItems"`
	QueuedItems  int                `json:"queuedItems"`
	QueuedOps    int                `json:"queuedOperations"`
	CachedCount  int                `json:"cachedAnalyses"`
	Storage      kv.StorageInfo     `json:"storage"`
	Metrics      metrics.Snapshot   `json:"metrics"`
}

// CurrentStatus assembles the status report. Pending and failed counts are
// recomputed from the queue rather than tracked incrementally so they stay
// honest after drops and restarts.
func (e *Engine) CurrentStatus(ctx context.Context) Status {
	e.mu.Lock()
	inFlight := e.syncing
	e.mu.Unlock()

	counts := e.work.CountByStatus()
	status := Status{
		Connectivity: e.monitor.Status(),
		SyncInFlight: inFlight,
		PendingItems: counts["pending"] + counts["processing"],
		FailedItems:  counts["failed"],
		QueuedItems:  e.work.Size(),
		QueuedOps:    e.syncQ.Size(),
		CachedCount:  e.cache.Size(),
		Metrics:      metrics.Read(),
	}

	if e.store != nil {
		info, err := e.store.Info(ctx)
		if err != nil {
			telemetry.Warn("read storage info", map[string]any{"error": err.Error()})
		} else {
			status.Storage = info
		}
	}
	return status
}

// Cache exposes the result cache for read paths.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

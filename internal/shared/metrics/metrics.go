package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	operationsEnqueuedTotal atomic.Uint64
	syncSuccessTotal        atomic.Uint64
	syncFailureTotal        atomic.Uint64
	itemsDroppedTotal       atomic.Uint64
	cacheHitsTotal          atomic.Uint64
	cacheMissesTotal        atomic.Uint64

	syncDuration = newHistogram([]float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})

	rollingMu          sync.Mutex
	cacheHitRate       float64
	avgSyncDurationMs  float64
	lastSyncAttempt    time.Time
	lastSuccessfulSync time.Time
)

// IncOperationsEnqueued increments the lifetime enqueue counter. It covers
// both work-queue items and sync operations.
func IncOperationsEnqueued() {
	operationsEnqueuedTotal.Add(1)
}

// IncSyncSuccess increments the per-item sync success counter.
func IncSyncSuccess() {
	syncSuccessTotal.Add(1)
}

// IncSyncFailure increments the per-item sync failure counter.
func IncSyncFailure() {
	syncFailureTotal.Add(1)
}

// IncItemDropped increments the retry-ceiling drop counter.
func IncItemDropped() {
	itemsDroppedTotal.Add(1)
}

// RecordCacheHit counts a hit and nudges the rolling hit rate upward.
func RecordCacheHit() {
	cacheHitsTotal.Add(1)
	rollingMu.Lock()
	cacheHitRate = (cacheHitRate + 1) / 2
	rollingMu.Unlock()
}

// RecordCacheMiss counts a miss. Misses do not penalize the rolling rate.
func RecordCacheMiss() {
	cacheMissesTotal.Add(1)
}

// ObserveSyncDuration records one drain cycle's elapsed time and folds it
// into the rolling average.
func ObserveSyncDuration(elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000.0
	if ms < 0 {
		ms = 0
	}
	syncDuration.Observe(ms)

	rollingMu.Lock()
	if avgSyncDurationMs == 0 {
		avgSyncDurationMs = ms
	} else {
		avgSyncDurationMs = (avgSyncDurationMs + ms) / 2
	}
	rollingMu.Unlock()
}

// MarkSyncAttempt records when a drain cycle started.
func MarkSyncAttempt(t time.Time) {
	rollingMu.Lock()
	lastSyncAttempt = t
	rollingMu.Unlock()
}

// MarkSyncSuccess records when a drain cycle last completed with at least
// one successful operation.
func MarkSyncSuccess(t time.Time) {
	rollingMu.Lock()
	lastSuccessfulSync = t
	rollingMu.Unlock()
}

// Snapshot captures the incrementally-maintained metric fields.
type Snapshot struct {
	TotalOperations    uint64    `json:"totalOperations"`
	SyncSuccesses      uint64    `json:"syncSuccesses"`
	SyncFailures       uint64    `json:"syncFailures"`
	ItemsDropped       uint64    `json:"itemsDropped"`
	CacheHits          uint64    `json:"cacheHits"`
	CacheMisses        uint64    `json:"cacheMisses"`
	CacheHitRate       float64   `json:"cacheHitRate"`
	AvgSyncDurationMs  float64   `json:"avgSyncDurationMs"`
	LastSyncAttempt    time.Time `json:"lastSyncAttempt"`
	LastSuccessfulSync time.Time `json:"lastSuccessfulSync"`
}

// Read returns the current snapshot.
func Read() Snapshot {
	rollingMu.Lock()
	snap := Snapshot{
		CacheHitRate:       cacheHitRate,
		AvgSyncDurationMs:  avgSyncDurationMs,
		LastSyncAttempt:    lastSyncAttempt,
		LastSuccessfulSync: lastSuccessfulSync,
	}
	rollingMu.Unlock()

	snap.TotalOperations = operationsEnqueuedTotal.Load()
	snap.SyncSuccesses = syncSuccessTotal.Load()
	snap.SyncFailures = syncFailureTotal.Load()
	snap.ItemsDropped = itemsDroppedTotal.Load()
	snap.CacheHits = cacheHitsTotal.Load()
	snap.CacheMisses = cacheMissesTotal.Load()
	return snap
}

// Reset zeroes all counters and rolling state. Used by clear-all and tests.
func Reset() {
	operationsEnqueuedTotal.Store(0)
	syncSuccessTotal.Store(0)
	syncFailureTotal.Store(0)
	itemsDroppedTotal.Store(0)
	cacheHitsTotal.Store(0)
	cacheMissesTotal.Store(0)
	syncDuration.reset()

	rollingMu.Lock()
	cacheHitRate = 0
	avgSyncDurationMs = 0
	lastSyncAttempt = time.Time{}
	lastSuccessfulSync = time.Time{}
	rollingMu.Unlock()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "offline_operations_enqueued_total", "Total operations ever enqueued", operationsEnqueuedTotal.Load())
	writeCounter(&buf, "offline_sync_success_total", "Total per-item sync successes", syncSuccessTotal.Load())
	writeCounter(&buf, "offline_sync_failure_total", "Total per-item sync failures", syncFailureTotal.Load())
	writeCounter(&buf, "offline_items_dropped_total", "Total items dropped at the retry ceiling", itemsDroppedTotal.Load())
	writeCounter(&buf, "offline_cache_hits_total", "Total result cache hits", cacheHitsTotal.Load())
	writeCounter(&buf, "offline_cache_misses_total", "Total result cache misses", cacheMissesTotal.Load())
	writeHistogram(&buf, "offline_sync_duration_ms", "Drain cycle duration in milliseconds", syncDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func (h *histogram) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts = make([]uint64, len(h.buckets))
	h.sum = 0
	h.count = 0
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

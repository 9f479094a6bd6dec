package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	documentsIngestedTotal atomic.Uint64
	documentsFailedTotal   atomic.Uint64
	enrichmentFailedTotal  atomic.Uint64
	enrichmentQueuedTotal  atomic.Uint64
	searchFallbackTotal    atomic.Uint64
	searchDegradedTotal    atomic.Uint64
	chatTurnsTotal         atomic.Uint64
	chatStreamFailedTotal  atomic.Uint64

	enrichmentJobsReceivedTotal             atomic.Uint64
	enrichmentJobsCompletedTotal            atomic.Uint64
	enrichmentJobsFailedTotal               atomic.Uint64
	enrichmentJobsDeletedUnrecoverableTotal atomic.Uint64

	ingestDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
	chatDuration   = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncDocumentsIngested counts a document that reached status ready.
func IncDocumentsIngested() { documentsIngestedTotal.Add(1) }

// IncDocumentsFailed counts a document that ended in status error.
func IncDocumentsFailed() { documentsFailedTotal.Add(1) }

// IncEnrichmentFailed counts a failed structured term extraction.
func IncEnrichmentFailed() { enrichmentFailedTotal.Add(1) }

// IncEnrichmentQueued counts an extraction handed to the worker queue.
func IncEnrichmentQueued() { enrichmentQueuedTotal.Add(1) }

// IncSearchFallback counts searches answered by the fallback strategy.
func IncSearchFallback() { searchFallbackTotal.Add(1) }

// IncSearchDegraded counts searches where every strategy failed.
func IncSearchDegraded() { searchDegradedTotal.Add(1) }

// IncChatTurns counts chat turns started.
func IncChatTurns() { chatTurnsTotal.Add(1) }

// IncChatStreamFailed counts chat streams that ended in an error.
func IncChatStreamFailed() { chatStreamFailedTotal.Add(1) }

// IncEnrichmentJobsReceived counts queue messages picked up by the worker.
func IncEnrichmentJobsReceived() { enrichmentJobsReceivedTotal.Add(1) }

// IncEnrichmentJobsCompleted counts queue messages processed and deleted.
func IncEnrichmentJobsCompleted() { enrichmentJobsCompletedTotal.Add(1) }

// IncEnrichmentJobsFailed counts queue messages left for redelivery.
func IncEnrichmentJobsFailed() { enrichmentJobsFailedTotal.Add(1) }

// IncEnrichmentJobsDeletedUnrecoverable counts malformed messages dropped.
func IncEnrichmentJobsDeletedUnrecoverable() { enrichmentJobsDeletedUnrecoverableTotal.Add(1) }

// ObserveIngestDurationMs records a per-file ingest duration in milliseconds.
func ObserveIngestDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	ingestDuration.Observe(value)
}

// ObserveChatDurationMs records a full chat stream duration in milliseconds.
func ObserveChatDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	chatDuration.Observe(value)
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
	writeCounter(&buf, "documents_ingested_total", "Documents ingested to status ready", documentsIngestedTotal.Load())
	writeCounter(&buf, "documents_failed_total", "Documents that ended in status error", documentsFailedTotal.Load())
	writeCounter(&buf, "enrichment_failed_total", "Structured term extractions that failed", enrichmentFailedTotal.Load())
	writeCounter(&buf, "enrichment_queued_total", "Structured term extractions queued for the worker", enrichmentQueuedTotal.Load())
	writeCounter(&buf, "search_fallback_total", "Searches answered by the fallback strategy", searchFallbackTotal.Load())
	writeCounter(&buf, "search_degraded_total", "Searches where every strategy failed", searchDegradedTotal.Load())
	writeCounter(&buf, "chat_turns_total", "Chat turns started", chatTurnsTotal.Load())
	writeCounter(&buf, "chat_stream_failed_total", "Chat streams that ended in an error", chatStreamFailedTotal.Load())
	writeCounter(&buf, "enrichment_jobs_received_total", "Enrichment jobs received by the worker", enrichmentJobsReceivedTotal.Load())
	writeCounter(&buf, "enrichment_jobs_completed_total", "Enrichment jobs completed", enrichmentJobsCompletedTotal.Load())
	writeCounter(&buf, "enrichment_jobs_failed_total", "Enrichment jobs left for redelivery", enrichmentJobsFailedTotal.Load())
	writeCounter(&buf, "enrichment_jobs_deleted_unrecoverable_total", "Malformed enrichment jobs deleted", enrichmentJobsDeletedUnrecoverableTotal.Load())
	writeHistogram(&buf, "ingest_duration_ms", "Per-file ingest duration in milliseconds", ingestDuration.Snapshot())
	writeHistogram(&buf, "chat_stream_duration_ms", "Chat stream duration in milliseconds", chatDuration.Snapshot())
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
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
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

package metrics

import (
	"strings"
	"testing"
)

func TestRenderIncludesCountersAndHistograms(t *testing.T) {
	IncDocumentsIngested()
	IncSearchFallback()
	ObserveIngestDurationMs(300)
	ObserveIngestDurationMs(-5)

	out := Render()
	for _, want := range []string{
		"# TYPE documents_ingested_total counter",
		"# TYPE search_fallback_total counter",
		"# TYPE ingest_duration_ms histogram",
		`ingest_duration_ms_bucket{le="+Inf"}`,
		"chat_stream_duration_ms_count",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	var b strings.Builder
	snap := h.Snapshot()
	var cumulative uint64
	for i := range snap.buckets {
		cumulative += snap.counts[i]
		b.WriteString(formatFloat(snap.buckets[i]))
		b.WriteString("=")
		b.WriteString(formatFloat(float64(cumulative)))
		b.WriteString(" ")
	}
	if got := b.String(); got != "10=1 100=2 " {
		t.Fatalf("unexpected cumulative buckets %q", got)
	}
	if snap.count != 3 || snap.sum != 555 {
		t.Fatalf("unexpected count/sum %d/%v", snap.count, snap.sum)
	}
}

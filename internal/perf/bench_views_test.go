package perf

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/odyssey-erp/costlens/internal/analytics"
	"github.com/odyssey-erp/costlens/internal/ingest"
	"github.com/odyssey-erp/costlens/internal/orders"
)

func newIngester() *ingest.Ingester {
	return ingest.NewIngester(ingest.Options{StatusFilter: true}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func ingestSource(tb testing.TB, body string) *ingest.Dataset {
	tb.Helper()
	ds, err := newIngester().Ingest(context.Background(), ingest.Source{Name: "orders.csv", Reader: strings.NewReader(body)})
	if err != nil {
		tb.Fatalf("ingest: %v", err)
	}
	return ds
}

func computeDashboard(records []orders.Record) {
	aggs := analytics.GroupByAccount(records)
	_ = analytics.ComputeTotals(records)
	_ = analytics.ComputeBreakdown(records)
	_ = analytics.Rank(aggs, analytics.MetricAbsMargin, 15)
	_ = analytics.ComputePareto(aggs)
	_ = analytics.ComputeMonthly(records)
	_ = analytics.ComputeCountries(records, 10)
	_ = analytics.ComputeStatuses(records, 8)
	_ = analytics.ComputeProblems(aggs, 0)
}

func BenchmarkIngestCSV(b *testing.B) {
	body := generateSource(10000)
	b.SetBytes(int64(len(body)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ingestSource(b, body)
	}
}

func BenchmarkDashboardViews(b *testing.B) {
	ds := ingestSource(b, generateSource(10000))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		computeDashboard(ds.Records)
	}
}

func TestDashboardLatencyTargets(t *testing.T) {
	body := generateSource(5000)
	var ingestSamples, viewSamples []time.Duration
	for i := 0; i < 10; i++ {
		start := time.Now()
		ds := ingestSource(t, body)
		ingestSamples = append(ingestSamples, time.Since(start))

		start = time.Now()
		computeDashboard(ds.Records)
		viewSamples = append(viewSamples, time.Since(start))
	}

	scenarios := []struct {
		name      string
		samples   []time.Duration
		threshold time.Duration
	}{
		{name: "ingest", samples: ingestSamples, threshold: 5 * time.Second},
		{name: "views", samples: viewSamples, threshold: 2 * time.Second},
	}
	for _, scenario := range scenarios {
		p95 := percentile95(scenario.samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func TestGeneratedSourceRetainsBilledRows(t *testing.T) {
	ds := ingestSource(t, generateSource(1000))
	if got := len(ds.Records); got != 600 {
		t.Fatalf("expected 600 billed rows, got %d", got)
	}
	if ds.Diagnostics.RowsDroppedByStatus != 400 {
		t.Fatalf("expected 400 rows dropped by status, got %d", ds.Diagnostics.RowsDroppedByStatus)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

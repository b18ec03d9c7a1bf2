package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/cashbook/internal/domain"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)
	m.EntryAdded(domain.KindIncome)
	m.RequestStarted()

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestNewTwiceOnOneRegistryPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	New(registry)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected duplicate registration to panic")
		}
	}()
	New(registry)
}

func TestLedgerRecorder(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.EntryAdded(domain.KindIncome)
	m.EntryAdded(domain.KindIncome)
	m.EntryAdded(domain.KindExpense)
	m.EntryRemoved()
	m.RecomputeCompleted(42, 3*time.Millisecond)
	m.EventPublishFailed(domain.EventTypeEntryAdded)
	m.SummaryCacheLookup(true)
	m.SummaryCacheLookup(false)
	m.SummaryCacheLookup(false)

	if got := testutil.ToFloat64(m.EntriesAdded.WithLabelValues("income")); got != 2 {
		t.Fatalf("expected 2 income entries, got %v", got)
	}
	if got := testutil.ToFloat64(m.EntriesAdded.WithLabelValues("expense")); got != 1 {
		t.Fatalf("expected 1 expense entry, got %v", got)
	}
	if got := testutil.ToFloat64(m.EntriesRemoved); got != 1 {
		t.Fatalf("expected 1 removal, got %v", got)
	}
	if got := testutil.ToFloat64(m.RecomputePasses); got != 1 {
		t.Fatalf("expected 1 recompute, got %v", got)
	}
	if got := testutil.ToFloat64(m.EventPublishFailure.WithLabelValues("entry.added")); got != 1 {
		t.Fatalf("expected 1 publish failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.SummaryCacheLookups.WithLabelValues("miss")); got != 2 {
		t.Fatalf("expected 2 cache misses, got %v", got)
	}
}

func TestRequestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RequestStarted()
	if got := testutil.ToFloat64(m.HTTPInFlight); got != 1 {
		t.Fatalf("expected 1 request in flight, got %v", got)
	}

	m.RequestFinished("GET", "/api/v1/ledgers/{ledgerID}/entries", 200, 10*time.Millisecond)
	if got := testutil.ToFloat64(m.HTTPInFlight); got != 0 {
		t.Fatalf("expected no request in flight, got %v", got)
	}

	expected := `
# HELP cashbook_http_requests_total Total HTTP requests
# TYPE cashbook_http_requests_total counter
cashbook_http_requests_total{method="GET",path="/api/v1/ledgers/{ledgerID}/entries",status="200"} 1
`
	if err := testutil.CollectAndCompare(m.HTTPRequests, strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected request counter: %v", err)
	}

	m.RateLimited()
	if got := testutil.ToFloat64(m.RateLimitHits); got != 1 {
		t.Fatalf("expected 1 rate limit hit, got %v", got)
	}
}

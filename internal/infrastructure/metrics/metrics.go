package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/cashbook/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	EntriesAdded        *prometheus.CounterVec
	EntriesRemoved      prometheus.Counter
	RecomputePasses     prometheus.Counter
	RecomputeDuration   prometheus.Histogram
	RecomputeSize       prometheus.Histogram
	EventPublishFailure *prometheus.CounterVec
	SummaryCacheLookups *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Ledger metrics
		EntriesAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashbook_entries_added_total",
				Help: "Total number of entries added by kind",
			},
			[]string{"kind"},
		),
		EntriesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashbook_entries_removed_total",
			Help: "Total number of entries removed",
		}),
		RecomputePasses: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashbook_recompute_passes_total",
			Help: "Total number of full running-balance recomputes",
		}),
		RecomputeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cashbook_recompute_duration_seconds",
			Help:    "Duration of full running-balance recomputes",
			Buckets: prometheus.DefBuckets,
		}),
		RecomputeSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cashbook_recompute_entries",
			Help:    "Number of entries rewritten by a recompute",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		}),
		EventPublishFailure: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashbook_event_publish_failures_total",
				Help: "Total ledger events that could not be published",
			},
			[]string{"event_type"},
		),
		SummaryCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashbook_summary_cache_lookups_total",
				Help: "Summary cache lookups by result",
			},
			[]string{"result"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashbook_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashbook_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cashbook_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashbook_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		}),
	}
}

// EntryAdded implements usecase.MetricsRecorder.
func (m *Metrics) EntryAdded(kind domain.Kind) {
	m.EntriesAdded.WithLabelValues(string(kind)).Inc()
}

// EntryRemoved implements usecase.MetricsRecorder.
func (m *Metrics) EntryRemoved() {
	m.EntriesRemoved.Inc()
}

// RecomputeCompleted implements usecase.MetricsRecorder.
func (m *Metrics) RecomputeCompleted(entries int, duration time.Duration) {
	m.RecomputePasses.Inc()
	m.RecomputeDuration.Observe(duration.Seconds())
	m.RecomputeSize.Observe(float64(entries))
}

// EventPublishFailed implements usecase.MetricsRecorder.
func (m *Metrics) EventPublishFailed(eventType string) {
	m.EventPublishFailure.WithLabelValues(eventType).Inc()
}

// SummaryCacheLookup implements usecase.MetricsRecorder.
func (m *Metrics) SummaryCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.SummaryCacheLookups.WithLabelValues(result).Inc()
}

// RequestStarted marks an HTTP request in flight.
func (m *Metrics) RequestStarted() {
	m.HTTPInFlight.Inc()
}

// RequestFinished records a completed HTTP request. route is the matched
// route pattern, not the raw path.
func (m *Metrics) RequestFinished(method, route string, status int, duration time.Duration) {
	m.HTTPInFlight.Dec()
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	m.RateLimitHits.Inc()
}

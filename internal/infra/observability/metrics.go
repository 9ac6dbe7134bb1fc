package observability

import (
	"time"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the analytics engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	eventsTotal     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	storeErrors     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_total",
				Help: "Financial events processed, by effective consistency action.",
			},
			[]string{"action"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_store_errors_total",
				Help: "Total errors from the durable summary store.",
			},
			[]string{"operation"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrEvent counts one processed event under its effective action
// (apply_delta, invalidate, ignore, error).
func (m *Metrics) IncrEvent(action string) {
	m.eventsTotal.WithLabelValues(action).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

// GetPipelineSnapshot returns a snapshot of event-pipeline metrics suitable
// for the GET /v1/metrics/pipeline endpoint.
func (m *Metrics) GetPipelineSnapshot() *domain.PipelineMetrics {
	applied := getCounterValue(m.eventsTotal, "apply_delta")
	invalidated := getCounterValue(m.eventsTotal, "invalidate")
	ignored := getCounterValue(m.eventsTotal, "ignore")
	failed := getCounterValue(m.eventsTotal, "error")
	total := applied + invalidated + ignored + failed

	cacheHits := getCounterValue(m.cacheHits, "summary")
	cacheMisses := getCounterValue(m.cacheMisses, "summary")

	errorRate := float64(0)
	if total > 0 {
		errorRate = failed / total
	}
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.PipelineMetrics{
		EventsTotal:       int64(total),
		EventsApplied:     int64(applied),
		EventsInvalidated: int64(invalidated),
		EventsIgnored:     int64(ignored),
		EventsFailed:      int64(failed),
		ErrorRate:         errorRate,
		CacheHitRate:      cacheHitRate,
		Period:            "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

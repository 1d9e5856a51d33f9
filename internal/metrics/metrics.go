// Package metrics exposes Prometheus instruments for the request layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Requests counts completed pipeline calls by method and outcome
	// (success, recovered, cached, stale, queued, handled, failed).
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqguard_requests_total",
			Help: "Total number of calls completed by the request pipeline",
		},
		[]string{"method", "outcome"},
	)

	// Failures counts classified transport failures.
	Failures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqguard_failures_total",
			Help: "Total number of transport failures by classification",
		},
		[]string{"type"},
	)

	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqguard_retries_total",
			Help: "Total number of retry directives issued",
		},
		[]string{"method"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqguard_cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss, expired, stale)",
		},
		[]string{"result"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqguard_cache_entries",
			Help: "Number of entries held by the response cache",
		},
	)

	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqguard_queue_length",
			Help: "Number of mutating calls waiting in the offline queue",
		},
	)

	QueueEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqguard_queue_events_total",
			Help: "Offline queue events (enqueued, evicted, replayed, requeued, dropped, expired)",
		},
		[]string{"event"},
	)

	Online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqguard_online",
			Help: "1 when connectivity is up, 0 when offline",
		},
	)
)

// RecordRequest records a completed pipeline call.
func RecordRequest(method, outcome string) {
	Requests.WithLabelValues(method, outcome).Inc()
}

// RecordFailure records a classified failure.
func RecordFailure(errorType string) {
	Failures.WithLabelValues(errorType).Inc()
}

// RecordRetry records a retry directive.
func RecordRetry(method string) {
	Retries.WithLabelValues(method).Inc()
}

// RecordCacheLookup records a cache lookup result.
func RecordCacheLookup(result string) {
	CacheLookups.WithLabelValues(result).Inc()
}

// SetCacheEntries updates the cache size gauge.
func SetCacheEntries(n int) {
	CacheEntries.Set(float64(n))
}

// SetQueueLength updates the queue length gauge.
func SetQueueLength(n int) {
	QueueLength.Set(float64(n))
}

// RecordQueueEvent records an offline queue event.
func RecordQueueEvent(event string) {
	QueueEvents.WithLabelValues(event).Inc()
}

// SetOnline updates the connectivity gauge.
func SetOnline(online bool) {
	if online {
		Online.Set(1)
		return
	}
	Online.Set(0)
}

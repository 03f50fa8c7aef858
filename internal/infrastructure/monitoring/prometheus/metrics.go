package prometheus

import (
	"strconv"
	"time"
)

// Reserve outcome labels.
const (
	ResultReserved   = "reserved"
	ResultIdempotent = "idempotent"
	ResultConflict   = "conflict"
	ResultRejected   = "rejected"
	ResultError      = "error"
)

// Rollover action labels.
const (
	RolloverRenewed = "renewed"
	RolloverExpired = "expired"
	RolloverFailed  = "failed"
)

// AppMetrics holds every metric the engine exports.  One instance is created
// at startup and shared by the HTTP layer, the application services, and the
// worker.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Allocation path
	PreviewsTotal   CounterVec
	PreviewDuration HistogramVec
	ReservesTotal   CounterVec
	ReserveDuration HistogramVec
	ConflictsTotal  CounterVec
	TxRetriesTotal  CounterVec

	// Lifecycle
	PaymentEventsTotal CounterVec
	RolloversTotal     CounterVec
	ActiveSponsorships GaugeVec

	// Infrastructure
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec
	EventsPublished  CounterVec
}

var (
	defaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	defaultClipDurationBuckets = []float64{.001, .005, .01, .05, .1, .5, 1, 5}
)

// NewAppMetrics registers all engine metrics on the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request latency", defaultHTTPDurationBuckets, "method", "path")

	m.PreviewsTotal = collector.RegisterCounter("previews_total", "Availability previews served", "slot", "sold_out")
	m.PreviewDuration = collector.RegisterHistogram("preview_duration_seconds", "Preview wall time including clipping", defaultClipDurationBuckets, "slot")
	m.ReservesTotal = collector.RegisterCounter("reserves_total", "Reserve attempts", "slot", "result")
	m.ReserveDuration = collector.RegisterHistogram("reserve_duration_seconds", "Reserve transaction wall time", defaultClipDurationBuckets, "slot")
	m.ConflictsTotal = collector.RegisterCounter("allocation_conflicts_total", "Reservations lost to a competing commit", "slot")
	m.TxRetriesTotal = collector.RegisterCounter("tx_retries_total", "Reserve transactions retried after serialization failure", "slot")

	m.PaymentEventsTotal = collector.RegisterCounter("payment_events_total", "Payment confirmations processed", "outcome")
	m.RolloversTotal = collector.RegisterCounter("rollovers_total", "Period-end rollover outcomes", "action")
	m.ActiveSponsorships = collector.RegisterGauge("holding_sponsorships", "Sponsorships currently holding geometry", "slot")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Preview cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Preview cache misses", "cache")
	m.EventsPublished = collector.RegisterCounter("events_published_total", "Lifecycle events published to the stream", "type")

	return m
}

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPreview records one availability preview.
func RecordPreview(m *AppMetrics, slot string, soldOut bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.PreviewsTotal.WithLabelValues(slot, strconv.FormatBool(soldOut)).Inc()
	m.PreviewDuration.WithLabelValues(slot).Observe(duration.Seconds())
}

// RecordReserve records one reserve attempt and its outcome.
func RecordReserve(m *AppMetrics, slot, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ReservesTotal.WithLabelValues(slot, result).Inc()
	m.ReserveDuration.WithLabelValues(slot).Observe(duration.Seconds())
	if result == ResultConflict {
		m.ConflictsTotal.WithLabelValues(slot).Inc()
	}
}

// RecordTxRetry records one serialization-failure retry.
func RecordTxRetry(m *AppMetrics, slot string) {
	if m == nil {
		return
	}
	m.TxRetriesTotal.WithLabelValues(slot).Inc()
}

// RecordPaymentEvent records one processed gateway confirmation.
func RecordPaymentEvent(m *AppMetrics, outcome string) {
	if m == nil {
		return
	}
	m.PaymentEventsTotal.WithLabelValues(outcome).Inc()
}

// RecordRollover records one rollover action.
func RecordRollover(m *AppMetrics, action string) {
	if m == nil {
		return
	}
	m.RolloversTotal.WithLabelValues(action).Inc()
}

// RecordCacheAccess records one preview cache lookup.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordEventPublished records one lifecycle event published to the stream.
func RecordEventPublished(m *AppMetrics, eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

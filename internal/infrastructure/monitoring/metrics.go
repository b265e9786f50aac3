package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Collection metrics
	BookmarksStored prometheus.Gauge
	GroupsStored    prometheus.Gauge

	// Import/export metrics
	ImportsTotal      prometheus.Counter
	ImportedBookmarks prometheus.Counter
	ExportsTotal      prometheus.Counter

	// Sync metrics
	SyncRuns     *prometheus.CounterVec
	SyncDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests int64
	TotalErrors   int64
	TotalDuration float64 // sum of all request durations
	RequestCount  int64   // count for averaging
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marksyncy_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marksyncy_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marksyncy_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marksyncy_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Collection metrics
		BookmarksStored: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marksyncy_bookmarks_stored",
				Help: "Number of bookmarks currently stored",
			},
		),
		GroupsStored: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marksyncy_groups_stored",
				Help: "Number of groups currently stored",
			},
		),

		// Import/export metrics
		ImportsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "marksyncy_imports_total",
				Help: "Total number of bookmark file imports",
			},
		),
		ImportedBookmarks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "marksyncy_imported_bookmarks_total",
				Help: "Total number of bookmarks added by imports",
			},
		),
		ExportsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "marksyncy_exports_total",
				Help: "Total number of bookmark file exports",
			},
		),

		// Sync metrics
		SyncRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marksyncy_sync_runs_total",
				Help: "Total number of sync runs",
			},
			[]string{"direction", "status"},
		),
		SyncDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marksyncy_sync_duration_seconds",
				Help:    "Sync run duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"direction"},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marksyncy_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marksyncy_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marksyncy_uptime_seconds",
				Help: "Backend uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SetCollectionSizes updates the stored-collection gauges after a mutation.
func (m *Metrics) SetCollectionSizes(bookmarks, groups int) {
	m.BookmarksStored.Set(float64(bookmarks))
	m.GroupsStored.Set(float64(groups))
}

// RecordImport records a completed bookmark file import.
func (m *Metrics) RecordImport(bookmarksAdded int) {
	m.ImportsTotal.Inc()
	m.ImportedBookmarks.Add(float64(bookmarksAdded))
}

// RecordExport records a bookmark file export.
func (m *Metrics) RecordExport() {
	m.ExportsTotal.Inc()
}

// RecordSyncRun records a finished sync run.
func (m *Metrics) RecordSyncRun(direction, status string, duration time.Duration) {
	m.SyncRuns.WithLabelValues(direction, status).Inc()
	m.SyncDuration.WithLabelValues(direction).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns aggregate request counters for the stats endpoint.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

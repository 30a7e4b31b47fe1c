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

	// Session metrics
	SessionsByState *prometheus.GaugeVec
	SessionsTotal   prometheus.Counter
	SessionRestarts prometheus.Counter

	// Stream metrics
	OutputFrames  prometheus.Counter
	OutputBytes   prometheus.Counter
	InputBytes    prometheus.Counter
	InputRejected prometheus.Counter
	DroppedFrames prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// Webhook metrics
	WebhookDeliveries *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON stats endpoint
type Snapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	TotalDuration float64 `json:"-"` // sum of all request durations
	RequestCount  int64   `json:"-"` // count for averaging
	AvgDurationMs float64 `json:"avg_duration_ms"`

	SessionsCreated int64 `json:"sessions_created"`
	SessionRestarts int64 `json:"session_restarts"`
	OutputFrames    int64 `json:"output_frames"`
	OutputBytes     int64 `json:"output_bytes"`
	InputBytes      int64 `json:"input_bytes"`
	InputRejected   int64 `json:"input_rejected"`
	DroppedFrames   int64 `json:"dropped_frames"`

	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termstream_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termstream_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termstream_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Session metrics
		SessionsByState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "termstream_sessions",
				Help: "Number of sessions by state",
			},
			[]string{"state"},
		),
		SessionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		SessionRestarts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_session_restarts_total",
				Help: "Total number of session restarts",
			},
		),

		// Stream metrics
		OutputFrames: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_output_frames_total",
				Help: "Total number of output frames published",
			},
		),
		OutputBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_output_bytes_total",
				Help: "Total bytes of PTY output published",
			},
		),
		InputBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_input_bytes_total",
				Help: "Total bytes of input written to PTYs",
			},
		),
		InputRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_input_rejected_total",
				Help: "Total input frames rejected by session state",
			},
		),
		DroppedFrames: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_dropped_frames_total",
				Help: "Total output frames dropped by slow subscribers",
			},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "termstream_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// Webhook metrics
		WebhookDeliveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_webhook_deliveries_total",
				Help: "Total number of webhook delivery attempts",
			},
			[]string{"status"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "termstream_uptime_seconds",
				Help: "Daemon uptime in seconds",
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
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SessionStateChanged moves a session between per-state gauges
func (m *Metrics) SessionStateChanged(from, to string) {
	if from != "" {
		m.SessionsByState.WithLabelValues(from).Dec()
	}
	if to != "" {
		m.SessionsByState.WithLabelValues(to).Inc()
	}
}

// IncSessionsTotal increments the created sessions counter
func (m *Metrics) IncSessionsTotal() {
	m.SessionsTotal.Inc()
	m.mu.Lock()
	m.snapshot.SessionsCreated++
	m.mu.Unlock()
}

// IncSessionRestarts increments the restart counter
func (m *Metrics) IncSessionRestarts() {
	m.SessionRestarts.Inc()
	m.mu.Lock()
	m.snapshot.SessionRestarts++
	m.mu.Unlock()
}

// RecordOutputFrame records one published output frame
func (m *Metrics) RecordOutputFrame(bytes int) {
	m.OutputFrames.Inc()
	m.OutputBytes.Add(float64(bytes))
	m.mu.Lock()
	m.snapshot.OutputFrames++
	m.snapshot.OutputBytes += int64(bytes)
	m.mu.Unlock()
}

// RecordInputBytes records accepted input
func (m *Metrics) RecordInputBytes(n int) {
	m.InputBytes.Add(float64(n))
	m.mu.Lock()
	m.snapshot.InputBytes += int64(n)
	m.mu.Unlock()
}

// IncInputRejected records input refused by session state
func (m *Metrics) IncInputRejected() {
	m.InputRejected.Inc()
	m.mu.Lock()
	m.snapshot.InputRejected++
	m.mu.Unlock()
}

// RecordDroppedFrames records subscriber-side frame loss
func (m *Metrics) RecordDroppedFrames(n uint64) {
	m.DroppedFrames.Add(float64(n))
	m.mu.Lock()
	m.snapshot.DroppedFrames += int64(n)
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// RecordWebhookDelivery records a webhook attempt by outcome
func (m *Metrics) RecordWebhookDelivery(status string) {
	m.WebhookDeliveries.WithLabelValues(status).Inc()
}

// GetSnapshot returns current metric values for the JSON stats endpoint
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	if snap.RequestCount > 0 {
		snap.AvgDurationMs = snap.TotalDuration / float64(snap.RequestCount) * 1000
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}

package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all telemetry-process metrics
type Metrics struct {
	// Frame pipeline counters
	FramesRead     atomic.Uint64
	FramesValid    atomic.Uint64
	FramesInvalid  atomic.Uint64
	CaptureErrors  atomic.Uint64
	MarkersVisible atomic.Uint64 // markers in the last processed frame

	// Register service counters
	RegisterWrites      atomic.Uint64
	RegisterWriteErrors atomic.Uint64
	Reconnects          atomic.Uint64

	// Supervision counters
	ChildRestarts atomic.Uint64

	// Latency tracking
	FrameLatencyMs atomic.Uint64 // capture-to-write latency in ms

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pose_frames_read_total",
			Help: "Total frames read from the camera",
		},
		func() float64 { return float64(m.FramesRead.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pose_samples_valid_total",
			Help: "Total pose samples with a confirmed/target marker",
		},
		func() float64 { return float64(m.FramesValid.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pose_samples_invalid_total",
			Help: "Total pose samples without a usable marker",
		},
		func() float64 { return float64(m.FramesInvalid.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pose_capture_errors_total",
			Help: "Total transient capture failures",
		},
		func() float64 { return float64(m.CaptureErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pose_markers_visible",
			Help: "Markers detected in the last processed frame",
		},
		func() float64 { return float64(m.MarkersVisible.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pose_register_writes_total",
			Help: "Total register block writes",
		},
		func() float64 { return float64(m.RegisterWrites.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pose_register_write_errors_total",
			Help: "Total failed register block writes",
		},
		func() float64 { return float64(m.RegisterWriteErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pose_register_reconnects_total",
			Help: "Total register client reconnects",
		},
		func() float64 { return float64(m.Reconnects.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pose_child_restarts_total",
			Help: "Total supervised child restarts",
		},
		func() float64 { return float64(m.ChildRestarts.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pose_frame_latency_ms",
			Help: "Capture-to-write latency of the last frame in milliseconds",
		},
		func() float64 { return float64(m.FrameLatencyMs.Load()) },
	))
}

// UpdateFrameLatency records capture-to-write latency of the last frame
func (m *Metrics) UpdateFrameLatency(captureTime time.Time) {
	latency := time.Since(captureTime).Milliseconds()
	m.FrameLatencyMs.Store(uint64(latency))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	http.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, nil)
}

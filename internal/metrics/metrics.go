package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generator metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bgenerator",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bgenerator",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Pipeline runs by mode and outcome
	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bgenerator",
			Subsystem: "pipeline",
			Name:      "renders_total",
			Help:      "Total pipeline runs",
		},
		[]string{"mode", "status"},
	)

	// Pipeline run duration
	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bgenerator",
			Subsystem: "pipeline",
			Name:      "render_duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"mode", "canvas"},
	)

	// Superseded preview results that were dropped
	StaleRendersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bgenerator",
			Subsystem: "pipeline",
			Name:      "stale_renders_total",
			Help:      "Preview results discarded because a newer one was already published",
		},
	)

	// Exports by format
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bgenerator",
			Subsystem: "export",
			Name:      "exports_total",
			Help:      "Total encoded exports",
		},
		[]string{"format", "status"},
	)

	// Export bytes counter
	ExportBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bgenerator",
			Subsystem: "export",
			Name:      "bytes_total",
			Help:      "Total bytes of encoded exports",
		},
		[]string{"format"},
	)

	// Upload counters
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bgenerator",
			Subsystem: "overlay",
			Name:      "uploads_total",
			Help:      "Total overlay uploads",
		},
		[]string{"content_type", "status"},
	)

	// Current overlay count
	OverlaysActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bgenerator",
			Subsystem: "overlay",
			Name:      "active",
			Help:      "Overlays in the current session",
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordRender records one pipeline run
func RecordRender(mode, canvas, status string, durationSec float64) {
	RendersTotal.WithLabelValues(mode, status).Inc()
	if status == "success" {
		RenderDuration.WithLabelValues(mode, canvas).Observe(durationSec)
	}
}

// RecordStale records a dropped preview result
func RecordStale() {
	StaleRendersTotal.Inc()
}

// RecordExport records an encoded export
func RecordExport(format, status string, bytes int) {
	ExportsTotal.WithLabelValues(format, status).Inc()
	if status == "success" {
		ExportBytesTotal.WithLabelValues(format).Add(float64(bytes))
	}
}

// RecordUpload records an overlay upload
func RecordUpload(contentType, status string) {
	UploadsTotal.WithLabelValues(contentType, status).Inc()
}

// SetOverlays publishes the current overlay count
func SetOverlays(n int) {
	OverlaysActive.Set(float64(n))
}

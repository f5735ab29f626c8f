package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds pipeline counters, exported through a private Prometheus registry.
type Metrics struct {
	// Camera
	Captures        atomic.Uint64
	CaptureFailures atomic.Uint64

	// Detector
	Inferences         atomic.Uint64
	InferenceFailures  atomic.Uint64
	DecodeFailures     atomic.Uint64
	FallsDetected      atomic.Uint64
	InferenceLatencyMs atomic.Uint64 // last observed

	// Publisher
	Published       atomic.Uint64
	PublishFailures atomic.Uint64

	// Live feed
	StreamClients atomic.Int64
	StreamFrames  atomic.Uint64
	StreamSkipped atomic.Uint64

	// Alerts
	AlertsSent   atomic.Uint64
	AlertsFailed atomic.Uint64

	startTime time.Time
	registry  *prometheus.Registry
}

// New creates a Metrics instance with its collectors registered.
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	counters := []struct {
		name  string
		help  string
		value *atomic.Uint64
	}{
		{"fallwatch_captures_total", "Frames fetched from the camera", &m.Captures},
		{"fallwatch_capture_failures_total", "Camera fetches that failed or timed out", &m.CaptureFailures},
		{"fallwatch_inferences_total", "Model forward passes completed", &m.Inferences},
		{"fallwatch_inference_failures_total", "Model forward passes that failed", &m.InferenceFailures},
		{"fallwatch_decode_failures_total", "Frames that could not be decoded", &m.DecodeFailures},
		{"fallwatch_falls_detected_total", "Frames classified as a fall", &m.FallsDetected},
		{"fallwatch_published_total", "Annotated images moved into the processed directory", &m.Published},
		{"fallwatch_publish_failures_total", "Annotated images that could not be published", &m.PublishFailures},
		{"fallwatch_stream_frames_total", "Frames written to live feed clients", &m.StreamFrames},
		{"fallwatch_stream_skipped_total", "Live feed ticks skipped after a failure", &m.StreamSkipped},
		{"fallwatch_alerts_sent_total", "Fall alerts published to MQTT", &m.AlertsSent},
		{"fallwatch_alerts_failed_total", "Fall alerts that failed to publish", &m.AlertsFailed},
	}

	for _, c := range counters {
		value := c.value
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(value.Load()) },
		))
	}

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "fallwatch_inference_latency_ms",
			Help: "Latency of the most recent inference in milliseconds",
		},
		func() float64 { return float64(m.InferenceLatencyMs.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "fallwatch_stream_clients",
			Help: "Live feed connections currently open",
		},
		func() float64 { return float64(m.StreamClients.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "fallwatch_uptime_seconds",
			Help: "Seconds since the server started",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	))
}

// ObserveInference records one completed forward pass.
func (m *Metrics) ObserveInference(latency time.Duration) {
	m.Inferences.Add(1)
	m.InferenceLatencyMs.Store(uint64(latency.Milliseconds()))
}

// Handler returns the Prometheus exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics exposes pipeline counters and timings to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Clip outcomes used as the status label.
const (
	StatusStored  = "stored"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Metrics holds the pipeline collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	clips    *prometheus.CounterVec
	frames   prometheus.Counter
	encode   prometheus.Histogram
	upload   prometheus.Histogram
}

// New creates and registers the pipeline collectors.
func New(encoder, store string) *Metrics {
	labels := prometheus.Labels{"encoder": encoder, "store": store}
	buckets := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		clips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "vidembed_clips_total",
			Help:        "Clips processed, by outcome.",
			ConstLabels: labels,
		}, []string{"status"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vidembed_frames_encoded_total",
			Help:        "Frames passed to the encoder.",
			ConstLabels: labels,
		}),
		encode: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "vidembed_encode_duration_seconds",
			Help:        "Time to embed one clip.",
			ConstLabels: labels,
			Buckets:     buckets,
		}),
		upload: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "vidembed_upload_duration_seconds",
			Help:        "Time to upload one clip's embedding.",
			ConstLabels: labels,
			Buckets:     buckets,
		}),
	}
	m.registry.MustRegister(m.clips, m.frames, m.encode, m.upload)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// Clip counts one clip with the given outcome.
func (m *Metrics) Clip(status string) {
	if m == nil {
		return
	}
	m.clips.WithLabelValues(status).Inc()
}

// Frames counts frames passed to the encoder.
func (m *Metrics) Frames(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.frames.Add(float64(n))
}

// Encode records one clip's embedding time.
func (m *Metrics) Encode(d time.Duration) {
	if m == nil {
		return
	}
	m.encode.Observe(d.Seconds())
}

// Upload records one clip's upload time.
func (m *Metrics) Upload(d time.Duration) {
	if m == nil {
		return
	}
	m.upload.Observe(d.Seconds())
}

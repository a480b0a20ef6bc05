// Package metrics exposes Prometheus metrics for selections, uploads and
// clipboard copies.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one server. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	selectionsTotal *prometheus.CounterVec
	uploadsTotal    *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	uploadDuration  prometheus.Histogram
	activeUploads   prometheus.Gauge
	copiesTotal     *prometheus.CounterVec
}

// New creates metrics registered on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		selectionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wavscribe_selections_total",
				Help: "File selections by result",
			},
			[]string{"result"},
		),
		uploadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wavscribe_uploads_total",
				Help: "Finished uploads by result",
			},
			[]string{"result"},
		),
		uploadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "wavscribe_upload_bytes_total",
			Help: "Request body bytes sent to the upload endpoint",
		}),
		uploadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name: "wavscribe_upload_duration_seconds",
			Help: "Duration of uploads in seconds",
			Buckets: []float64{
				0.5, // small clips on a local endpoint
				1,
				5,
				15,
				60, // long recordings
				300,
			},
		}),
		activeUploads: f.NewGauge(prometheus.GaugeOpts{
			Name: "wavscribe_active_uploads",
			Help: "Uploads currently in flight",
		}),
		copiesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wavscribe_transcript_copies_total",
				Help: "Transcript copies by clipboard method",
			},
			[]string{"method"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSelection records a selection attempt; result is "accepted" or the
// rejection reason.
func (m *Metrics) ObserveSelection(result string) {
	if m == nil {
		return
	}
	m.selectionsTotal.WithLabelValues(result).Inc()
}

// UploadStarted marks an upload as in flight
func (m *Metrics) UploadStarted() {
	if m == nil {
		return
	}
	m.activeUploads.Inc()
}

// UploadFinished records a settled upload
func (m *Metrics) UploadFinished(success bool, bytes int64, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.activeUploads.Dec()
	m.uploadsTotal.WithLabelValues(result).Inc()
	m.uploadBytes.Add(float64(bytes))
	m.uploadDuration.Observe(d.Seconds())
}

// ObserveCopy records a transcript copy through method
func (m *Metrics) ObserveCopy(method string) {
	if m == nil {
		return
	}
	m.copiesTotal.WithLabelValues(method).Inc()
}

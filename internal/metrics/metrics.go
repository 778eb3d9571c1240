// Package metrics provides Prometheus metrics for docdeps
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for docdeps
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Resolution metrics
	ResolutionsTotal        *prometheus.CounterVec
	ResolutionDuration      *prometheus.HistogramVec
	ResolutionDependencies  prometheus.Histogram
	DanglingReferencesTotal *prometheus.CounterVec

	// Corpus metrics
	CorpusDocuments    prometheus.Gauge
	CorpusReloadsTotal *prometheus.CounterVec

	ServerStartTime time.Time
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on promhttp.Handler().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}
	factory := promauto.With(reg)

	// gRPC request metrics
	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdeps_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docdeps_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "docdeps_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	// Resolution metrics
	m.ResolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdeps_resolutions_total",
			Help: "Total number of dependency resolutions",
		},
		[]string{"category", "status"},
	)

	m.ResolutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docdeps_resolution_duration_seconds",
			Help:    "Duration of dependency resolutions in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"category"},
	)

	m.ResolutionDependencies = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docdeps_resolution_dependencies",
			Help:    "Number of dependencies returned per resolution",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	m.DanglingReferencesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdeps_dangling_references_total",
			Help: "References to documents absent from the corpus",
		},
		[]string{"category"},
	)

	// Corpus metrics
	m.CorpusDocuments = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "docdeps_corpus_documents",
			Help: "Number of documents in the loaded corpus",
		},
	)

	m.CorpusReloadsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdeps_corpus_reloads_total",
			Help: "Total number of corpus loads and reloads",
		},
		[]string{"status"},
	)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "docdeps_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 {
			return time.Since(m.ServerStartTime).Seconds()
		},
	)

	return m
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordResolution records one resolution and its outcome
func (m *Metrics) RecordResolution(category string, duration time.Duration, depCount int, missing int, err error) {
	m.ResolutionsTotal.WithLabelValues(category, statusLabel(err)).Inc()
	m.ResolutionDuration.WithLabelValues(category).Observe(duration.Seconds())
	if err == nil {
		m.ResolutionDependencies.Observe(float64(depCount))
	}
	if missing > 0 {
		m.DanglingReferencesTotal.WithLabelValues(category).Add(float64(missing))
	}
}

// RecordCorpusLoad records a corpus load and updates the document gauge on success
func (m *Metrics) RecordCorpusLoad(docCount int, err error) {
	m.CorpusReloadsTotal.WithLabelValues(statusLabel(err)).Inc()
	if err == nil {
		m.CorpusDocuments.Set(float64(docCount))
	}
}

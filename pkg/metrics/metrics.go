package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 提取结果分类
const (
	OutcomeSuccess   = "success"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

// Metrics holds the service collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	extractionTotal    *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	uploadsTotal       *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	extractionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_extractions_total",
		Help: "Field extraction calls by outcome",
	}, []string{"outcome"})

	extractionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "certificate_extraction_duration_seconds",
		Help:    "Latency of the field extraction call",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
	})

	uploadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_uploads_total",
		Help: "Uploads by file type and result",
	}, []string{"file_type", "result"})

	submissionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_submissions_total",
		Help: "Submit attempts by result",
	}, []string{"result"})

	registry.MustRegister(
		requestDuration,
		requestTotal,
		extractionTotal,
		extractionDuration,
		uploadsTotal,
		submissionsTotal,
		collectors.NewGoCollector(),
	)

	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		extractionTotal:    extractionTotal,
		extractionDuration: extractionDuration,
		uploadsTotal:       uploadsTotal,
		submissionsTotal:   submissionsTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

func (m *Metrics) ObserveExtraction(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.extractionTotal.WithLabelValues(outcome).Inc()
	m.extractionDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveUpload(fileType, result string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(fileType, result).Inc()
}

func (m *Metrics) ObserveSubmission(result string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(result).Inc()
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

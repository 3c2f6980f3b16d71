package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pidb/catalog-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	storeCallDuration *prometheus.HistogramVec
	catalogLoads      *prometheus.CounterVec
	assistantQueries  *prometheus.CounterVec
	auditSinkFailures *prometheus.CounterVec
	exportJobs        *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	storeCallCount       uint64
	storeFailureCount    uint64
	storeDurationTotal   uint64
	auditFailureCount    uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
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

	storeCallDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tabular_store_call_duration_seconds",
		Help:    "Latency of remote spreadsheet calls",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"operation", "table", "outcome"})

	catalogLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_loads_total",
		Help: "Catalog table loads by program and outcome",
	}, []string{"program", "outcome"})

	assistantQueries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_queries_total",
		Help: "Assistant answers by resolution path",
	}, []string{"path", "degraded"})

	auditSinkFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_sink_failures_total",
		Help: "Audit events a sink failed to record",
	}, []string{"sink"})

	exportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_export_jobs_total",
		Help: "Catalog export jobs by format and final status",
	}, []string{"format", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, storeCallDuration, catalogLoads, assistantQueries, auditSinkFailures, exportJobs, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		storeCallDuration: storeCallDuration,
		catalogLoads:      catalogLoads,
		assistantQueries:  assistantQueries,
		auditSinkFailures: auditSinkFailures,
		exportJobs:        exportJobs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveStoreCall matches tabular.Observer and records remote call latency.
func (m *MetricsService) ObserveStoreCall(operation, table string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		atomic.AddUint64(&m.storeFailureCount, 1)
	}
	m.storeCallDuration.WithLabelValues(operation, table, outcome).Observe(elapsed.Seconds())
	atomic.AddUint64(&m.storeCallCount, 1)
	atomic.AddUint64(&m.storeDurationTotal, uint64(elapsed.Nanoseconds()))
}

func (m *MetricsService) RecordCatalogLoad(program models.Program, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.catalogLoads.WithLabelValues(string(program), outcome).Inc()
}

func (m *MetricsService) RecordAssistantAnswer(path models.AssistantPath, degraded bool) {
	if m == nil {
		return
	}
	m.assistantQueries.WithLabelValues(string(path), fmt.Sprintf("%t", degraded)).Inc()
}

func (m *MetricsService) RecordAuditFailure(sink string) {
	if m == nil {
		return
	}
	m.auditSinkFailures.WithLabelValues(sink).Inc()
	atomic.AddUint64(&m.auditFailureCount, 1)
}

func (m *MetricsService) RecordExportJob(format models.ExportFormat, status models.ExportStatus) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(string(format), string(status)).Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	storeCalls := atomic.LoadUint64(&m.storeCallCount)
	storeDuration := atomic.LoadUint64(&m.storeDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	var avgStoreMs float64
	if storeCalls > 0 {
		avgStoreMs = float64(storeDuration) / float64(storeCalls) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		StoreCalls:               storeCalls,
		StoreFailures:            atomic.LoadUint64(&m.storeFailureCount),
		AverageStoreCallMs:       avgStoreMs,
		AuditSinkFailures:        atomic.LoadUint64(&m.auditFailureCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

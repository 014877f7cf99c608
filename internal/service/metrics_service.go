package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	registrationsCreated   *prometheus.CounterVec
	cancellationsTotal     prometheus.Counter
	cancellationFeesTotal  prometheus.Counter
	intentSubmissionsTotal *prometheus.CounterVec
	exportsTotal           *prometheus.CounterVec
}

// NewMetricsService registers the service's Prometheus collectors.
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registration_cache_hits_total",
		Help: "Cache hits on the registration list cache",
	})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registration_cache_misses_total",
		Help: "Cache misses on the registration list cache",
	})

	registrationsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registrations_created_total",
		Help: "Registrations created, by trimester and type",
	}, []string{"trimester", "type"})

	cancellationsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registration_cancellations_total",
		Help: "Registrations cancelled under the cancellation policy",
	})
	cancellationFeesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cancellation_fees_dollars_total",
		Help: "Total cancellation fees assessed in dollars",
	})

	intentSubmissionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reenrollment_intents_total",
		Help: "Reenrollment intent submissions, by intent",
	}, []string{"intent"})

	exportsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_exports_total",
		Help: "Roster export jobs, by format and outcome",
	}, []string{"format", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		registrationsCreated, cancellationsTotal, cancellationFeesTotal,
		intentSubmissionsTotal, exportsTotal, goroutines)

	return &MetricsService{
		registry:               registry,
		handler:                promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:        requestDuration,
		requestTotal:           requestTotal,
		cacheHits:              cacheHits,
		cacheMisses:            cacheMisses,
		registrationsCreated:   registrationsCreated,
		cancellationsTotal:     cancellationsTotal,
		cancellationFeesTotal:  cancellationFeesTotal,
		intentSubmissionsTotal: intentSubmissionsTotal,
		exportsTotal:           exportsTotal,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup counts a registration list cache lookup.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordRegistrationCreated counts one created registration.
func (m *MetricsService) RecordRegistrationCreated(trimester, regType string) {
	if m == nil {
		return
	}
	m.registrationsCreated.WithLabelValues(trimester, regType).Inc()
}

// RecordCancellation counts a cancellation and its fee.
func (m *MetricsService) RecordCancellation(feeDollars int) {
	if m == nil {
		return
	}
	m.cancellationsTotal.Inc()
	m.cancellationFeesTotal.Add(float64(feeDollars))
}

// RecordIntent counts one reenrollment intent submission.
func (m *MetricsService) RecordIntent(intent string) {
	if m == nil {
		return
	}
	m.intentSubmissionsTotal.WithLabelValues(intent).Inc()
}

// RecordExport counts one roster export job outcome.
func (m *MetricsService) RecordExport(format, outcome string) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(format, outcome).Inc()
}

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "intake"

// Upsert outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeUpdated  = "updated"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics owns a Prometheus registry with the HTTP and application collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	upserts *prometheus.CounterVec
	lookups *prometheus.CounterVec
	records prometheus.Gauge
}

// New builds and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"method", "path"}),
		upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "upserts_total",
			Help:      "Application upserts by outcome.",
		}, []string{"outcome"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "lookups_total",
			Help:      "Application lookups by result.",
		}, []string{"result"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "records",
			Help:      "Number of stored applications.",
		}),
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.upserts,
		m.lookups,
		m.records,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument wraps next with request count, latency and in-flight tracking.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordUpsert counts one upsert with the given outcome.
func (m *Metrics) RecordUpsert(outcome string) {
	if m == nil {
		return
	}
	m.upserts.WithLabelValues(outcome).Inc()
}

// RecordLookup counts one lookup as a hit or a miss.
func (m *Metrics) RecordLookup(found bool) {
	if m == nil {
		return
	}
	result := "miss"
	if found {
		result = "hit"
	}
	m.lookups.WithLabelValues(result).Inc()
}

// SetRecords publishes the current collection size.
func (m *Metrics) SetRecords(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}

// canonicalPath collapses per-record paths so label cardinality stays bounded.
func canonicalPath(path string) string {
	if strings.HasPrefix(path, "/application/") {
		return "/application/:id"
	}
	switch path {
	case "/application", "/health":
		return path
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

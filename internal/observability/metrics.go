// Package observability instruments the worker's ops server.
package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Surfaces groups ops routes by their first path segment.
var Surfaces = []string{"dashboard", "jobs", "report", "healthz", "metrics"}

const otherSurface = "other"

// Metrics owns the ops registry: request series per surface plus the Go,
// process and build collectors. Job metrics register into the same registry.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	written  *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// NewMetrics builds a fresh registry for one process.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "execdash_ops_requests_total",
			Help: "Ops server requests by surface, route, method and status code.",
		}, []string{"surface", "route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "execdash_ops_request_duration_seconds",
			Help:    "Ops server latency by surface.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}, []string{"surface"}),
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "execdash_ops_response_bytes_total",
			Help: "Bytes written by the ops server per surface.",
		}, []string{"surface"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "execdash_ops_in_flight_requests",
			Help: "Requests currently being served by the ops server.",
		}),
	}
	registry.MustRegister(
		m.requests,
		m.latency,
		m.written,
		m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	for _, s := range Surfaces {
		m.written.WithLabelValues(s)
	}
	m.written.WithLabelValues(otherSurface)
	m.handler = promhttp.InstrumentMetricHandler(registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records every ops request once routing has resolved its pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routePattern(r)
		surface := SurfaceOf(route)
		m.requests.WithLabelValues(surface, route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.latency.WithLabelValues(surface).Observe(time.Since(start).Seconds())
		m.written.WithLabelValues(surface).Add(float64(rec.bytes))
	})
}

// Registerer is where job metrics are registered.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Gatherer exposes the registry for one-shot pushes.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.DefaultGatherer
	}
	return m.registry
}

// SurfaceOf maps a route pattern such as /dashboard/pdf to its surface.
func SurfaceOf(route string) string {
	first := strings.TrimPrefix(route, "/")
	if i := strings.IndexByte(first, '/'); i >= 0 {
		first = first[:i]
	}
	for _, s := range Surfaces {
		if first == s {
			return s
		}
	}
	return otherSurface
}

type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

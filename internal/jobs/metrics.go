package jobmetrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	sinkErrors  *prometheus.CounterVec
	arTotal     prometheus.Gauge
	openInvs    prometheus.Gauge
	mtdSales    prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	} else {
		t.metrics.lastSuccess.WithLabelValues(t.job).SetToCurrentTime()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// ObserveSnapshot records the headline figures of the latest snapshot.
func (m *Metrics) ObserveSnapshot(arTotal float64, openInvoices int, mtdSales float64) {
	if m == nil {
		return
	}
	m.arTotal.Set(arTotal)
	m.openInvs.Set(float64(openInvoices))
	m.mtdSales.Set(mtdSales)
}

// SinkFailed counts a failed remote publication.
func (m *Metrics) SinkFailed(sink string) {
	if m == nil || sink == "" {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// Push sends everything in gatherer to a Prometheus Pushgateway. One-shot
// runs use it since nothing scrapes them.
func Push(ctx context.Context, url, job string, gatherer prometheus.Gatherer) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("jobmetrics: push: %w", err)
	}
	return nil
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "execdash_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "execdash_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "execdash_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"job"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "execdash_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run per job.",
	}, []string{"job"})
	sinkErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "execdash_publish_failures_total",
		Help: "Failed publications per remote sink.",
	}, []string{"sink"})
	arTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "execdash_ar_outstanding",
		Help: "Open receivables in the latest snapshot.",
	})
	openInvs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "execdash_ar_open_invoices",
		Help: "Open invoice count in the latest snapshot.",
	})
	mtdSales := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "execdash_sales_mtd",
		Help: "Month-to-date sales in the latest snapshot.",
	})
	registerer.MustRegister(runs, failures, duration, lastSuccess, sinkErrors, arTotal, openInvs, mtdSales)
	return &Metrics{
		runs:        runs,
		failures:    failures,
		duration:    duration,
		lastSuccess: lastSuccess,
		sinkErrors:  sinkErrors,
		arTotal:     arTotal,
		openInvs:    openInvs,
		mtdSales:    mtdSales,
	}
}

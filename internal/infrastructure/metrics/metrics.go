// Package metrics exposes Prometheus collectors for HTTP traffic,
// allocations and background jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lotkeeper/internal/domain/allocation"
)

const namespace = "lotkeeper"

// Metrics holds every collector of a process.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	allocations *prometheus.CounterVec
	shortfall   *prometheus.HistogramVec
	conflicts   *prometheus.CounterVec
	attempts    *prometheus.HistogramVec

	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

// New creates a registry with Go and process collectors plus the service
// collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "route"})

	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Number of HTTP requests currently being processed",
	})

	m.allocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "allocations_total",
		Help:      "Withdrawals by lot strategy and outcome",
	}, []string{"strategy", "outcome"})

	m.shortfall = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "allocation_shortfall_units",
		Help:      "Unfulfilled quantity of partially served withdrawals",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"strategy"})

	m.conflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "allocation_conflicts_total",
		Help:      "Commits rejected because a lot changed after allocation",
	}, []string{"strategy"})

	m.attempts = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "allocation_commit_attempts",
		Help:      "Commit attempts per successful withdrawal",
		Buckets:   prometheus.LinearBuckets(1, 1, 5),
	}, []string{"strategy"})

	m.jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Background job runs by status",
	}, []string{"job", "status"})

	m.jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Background job duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight,
		m.allocations, m.shortfall, m.conflicts, m.attempts,
		m.jobRuns, m.jobDuration,
	)
	return m
}

var _ allocation.Metrics = (*Metrics)(nil)

// ObserveAllocation counts a withdrawal outcome.
func (m *Metrics) ObserveAllocation(strategy allocation.Strategy, outcome string, shortfall float64) {
	m.allocations.WithLabelValues(strategy.String(), outcome).Inc()
	if shortfall > 0 {
		m.shortfall.WithLabelValues(strategy.String()).Observe(shortfall)
	}
}

// ObserveConflict counts a commit conflict.
func (m *Metrics) ObserveConflict(strategy allocation.Strategy) {
	m.conflicts.WithLabelValues(strategy.String()).Inc()
}

// ObserveAttempts records the commit attempts of a successful withdrawal.
func (m *Metrics) ObserveAttempts(strategy allocation.Strategy, attempts int) {
	m.attempts.WithLabelValues(strategy.String()).Observe(float64(attempts))
}

// Tracker records one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts a tracker for job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records duration and status and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.jobRuns.WithLabelValues(t.job, status).Inc()
	t.metrics.jobDuration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// RegisterGaugeFunc exposes a value sampled at scrape time, such as pool
// statistics.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
